// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// UnknownVersion is reported when a document header carries no PDF marker.
const UnknownVersion = "unknown"

// Header names the output columns in their fixed order.
var Header = []string{
	"Title",
	"Author",
	"Creator",
	"Created",
	"Modified",
	"Subject",
	"Keywords",
	"Description",
	"Producer",
	"PDF Version",
	"File Path",
}

// Record is one normalized output row. Every field is always present; missing
// metadata is represented by the empty string.
type Record struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Creator     string `json:"creator"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
	Subject     string `json:"subject"`
	Keywords    string `json:"keywords"`
	Description string `json:"description"`
	Producer    string `json:"producer"`
	PDFVersion  string `json:"pdf_version"`
	FilePath    string `json:"file_path"`
}

// Values returns the record fields in Header order.
func (r Record) Values() []string {
	return []string{
		r.Title,
		r.Author,
		r.Creator,
		r.Created,
		r.Modified,
		r.Subject,
		r.Keywords,
		r.Description,
		r.Producer,
		r.PDFVersion,
		r.FilePath,
	}
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// FetchedDocument is a document persisted in the download directory.
type FetchedDocument struct {
	URL        string    `json:"url"`
	Path       string    `json:"path"`
	SHA256     string    `json:"sha256"`
	Size       int64     `json:"size"`
	StatusCode int       `json:"status_code"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// ProcessedDocument pairs a fetched document with the record emitted for it.
type ProcessedDocument struct {
	Document FetchedDocument
	Record   Record
}

// Stage names the pipeline step a document reached.
type Stage string

// Per-document stages.
const (
	StageFetch    Stage = "fetch"
	StageMetadata Stage = "metadata"
	StageDone     Stage = "done"
)

// DocumentResult is the explicit outcome of processing one discovered link.
// Err is nil only when Stage is StageDone.
type DocumentResult struct {
	URL      string
	Stage    Stage
	Document FetchedDocument
	Record   Record
	Err      error
}

// OK reports whether the document produced a record.
func (r DocumentResult) OK() bool {
	return r.Err == nil && r.Stage == StageDone
}

// RunSummary describes a finished (or aborted) pipeline run.
type RunSummary struct {
	RunID            string              `json:"run_id"`
	PageURL          string              `json:"page_url"`
	OutputPath       string              `json:"output_path"`
	DownloadDir      string              `json:"download_dir"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	Links            []string            `json:"links"`
	Downloaded       []FetchedDocument   `json:"-"`
	Processed        []ProcessedDocument `json:"-"`
	FetchFailures    int                 `json:"fetch_failures"`
	MetadataFailures int                 `json:"metadata_failures"`
}

// Records returns the emitted rows in processing order.
func (s RunSummary) Records() []Record {
	out := make([]Record, 0, len(s.Processed))
	for _, p := range s.Processed {
		out = append(out, p.Record)
	}
	return out
}
