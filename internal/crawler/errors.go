package crawler

import "errors"

// Error taxonomy. Callers classify failures with errors.Is.
var (
	// ErrDiscovery marks a source page that could not be retrieved or parsed. Fatal.
	ErrDiscovery = errors.New("link discovery failed")
	// ErrFetch marks a document that could not be retrieved or persisted. Recoverable.
	ErrFetch = errors.New("document fetch failed")
	// ErrMetadata marks a document whose metadata could not be parsed. Recoverable.
	ErrMetadata = errors.New("metadata extraction failed")
	// ErrOutputWrite marks an output table that could not be opened or written. Fatal.
	ErrOutputWrite = errors.New("output write failed")
)
