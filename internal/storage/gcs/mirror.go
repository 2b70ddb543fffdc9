package gcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/metascan/internal/crawler"
)

const (
	documentContentType = "application/pdf"
	tableContentType    = "text/csv; charset=utf-8"
)

// Mirror uploads a finished run's documents and table under
// <prefix>/<run id>/.
type Mirror struct {
	store  crawler.BlobStore
	prefix string
	logger *zap.Logger
}

// NewMirror builds a Mirror exporter over store.
func NewMirror(store crawler.BlobStore, prefix string, logger *zap.Logger) (*Mirror, error) {
	if store == nil {
		return nil, errors.New("mirror requires a blob store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mirror{store: store, prefix: prefix, logger: logger.Named("gcs")}, nil
}

// Name implements crawler.Exporter.
func (m *Mirror) Name() string { return "gcs" }

// Export uploads every downloaded document, then the table. Individual
// upload failures are collected and returned together.
func (m *Mirror) Export(ctx context.Context, summary crawler.RunSummary) error {
	var errs []error
	uploaded := 0
	for _, doc := range summary.Downloaded {
		name := path.Join(m.prefix, summary.RunID, "documents", filepath.Base(doc.Path))
		if err := m.upload(ctx, doc.Path, name, documentContentType); err != nil {
			errs = append(errs, err)
			continue
		}
		uploaded++
	}
	if summary.OutputPath != "" {
		name := path.Join(m.prefix, summary.RunID, filepath.Base(summary.OutputPath))
		if err := m.upload(ctx, summary.OutputPath, name, tableContentType); err != nil {
			errs = append(errs, err)
		}
	}
	m.logger.Info("Mirrored run artifacts",
		zap.String("run_id", summary.RunID),
		zap.Int("documents", uploaded),
		zap.Int("errors", len(errs)),
	)
	return errors.Join(errs...)
}

func (m *Mirror) upload(ctx context.Context, localPath, objectName, contentType string) error {
	// #nosec G304 -- paths come from the run summary.
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	uri, err := m.store.PutObject(ctx, objectName, contentType, f)
	if err != nil {
		return fmt.Errorf("upload %s: %w", localPath, err)
	}
	m.logger.Debug("Uploaded object", zap.String("path", localPath), zap.String("uri", uri))
	return nil
}
