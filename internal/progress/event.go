// Package progress defines the event structures emitted by the scan engine.
package progress

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart        Stage = "RUN_START"
	StageLinksDiscovered Stage = "LINKS_DISCOVERED"
	StageFetchDone       Stage = "FETCH_DONE"
	StageFetchFailed     Stage = "FETCH_FAILED"
	StageMetadataFailed  Stage = "METADATA_FAILED"
	StageRecordEmitted   Stage = "RECORD_EMITTED"
	StageRunDone         Stage = "RUN_DONE"
	StageRunFailed       Stage = "RUN_FAILED"
)

// Event captures a single component of run progress.
type Event struct {
	// RunID identifies the pipeline run.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// URL is the page or document URL the event refers to.
	URL string
	// Path is the local file path for document events.
	Path string
	// Bytes carries the downloaded size for fetch completions.
	Bytes int64
	// Count carries link counts for discovery and row counts for run completion.
	Count int
	// Dur captures latency for fetches and whole runs.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageLinksDiscovered, StageRunDone, StageRunFailed:
	case StageFetchDone, StageFetchFailed, StageMetadataFailed, StageRecordEmitted:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Count < 0 {
		return errors.New("count must be >= 0")
	}
	return nil
}

// Site returns the lowercase host of the event URL, or "unknown".
func (e Event) Site() string {
	u, err := url.Parse(e.URL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
