package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// BlobStore persists raw document bytes under a name and returns where they landed.
type BlobStore interface {
	PutObject(ctx context.Context, name string, contentType string, data io.Reader) (string, error)
}

// StoreOpener returns a BlobStore rooted at dir, creating the directory if needed.
type StoreOpener func(dir string) (BlobStore, error)

// MetadataParser reads the document information dictionary of a local file.
type MetadataParser interface {
	ParseFile(ctx context.Context, path string) (Metadata, error)
}

// LinkDiscoverer returns the document links found on a page.
type LinkDiscoverer interface {
	Discover(ctx context.Context, pageURL string) ([]string, error)
}

// DocumentDownloader retrieves one document into a store.
type DocumentDownloader interface {
	Download(ctx context.Context, documentURL string, dest BlobStore) (FetchedDocument, error)
}

// RecordExtractor turns a local document into a normalized record.
type RecordExtractor interface {
	Extract(ctx context.Context, localPath string) (Record, error)
}

// TableWriter writes the output table in one pass.
type TableWriter interface {
	WriteTable(outputPath string, rows []Record) error
}

// Exporter receives the finished run after the table has been written.
type Exporter interface {
	Name() string
	Export(ctx context.Context, summary RunSummary) error
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RetryPolicy decides whether a failed fetch is attempted again.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for downloaded documents.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
