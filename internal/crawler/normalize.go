package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Normalizer parses a local document and builds its record.
type Normalizer struct {
	parser MetadataParser
	logger *zap.Logger
}

// NewNormalizer constructs a Normalizer around a metadata parser.
func NewNormalizer(parser MetadataParser, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{parser: parser, logger: logger.Named("normalize")}
}

// Extract returns the normalized record for localPath, or an error wrapping
// ErrMetadata when the parser rejects the file.
func (n *Normalizer) Extract(ctx context.Context, localPath string) (Record, error) {
	meta, err := n.parser.ParseFile(ctx, localPath)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrMetadata, localPath, err)
	}
	version := SniffVersion(localPath, n.logger)
	n.logger.Debug("Extracted metadata",
		zap.String("path", localPath),
		zap.Int("fields", len(meta)),
		zap.String("version", version),
	)
	return NormalizeMetadata(meta, version), nil
}
