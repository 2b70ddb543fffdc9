package crawler

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const documentContentType = "application/pdf"

// Downloader retrieves documents and persists them in a BlobStore.
type Downloader struct {
	fetcher Fetcher
	retry   RetryPolicy
	hasher  Hasher
	clock   Clock
	logger  *zap.Logger
}

// NewDownloader constructs a Downloader. retry and hasher may be nil.
func NewDownloader(fetcher Fetcher, retry RetryPolicy, hasher Hasher, clock Clock, logger *zap.Logger) *Downloader {
	if retry == nil {
		retry = noRetry{}
	}
	if clock == nil {
		clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		fetcher: fetcher,
		retry:   retry,
		hasher:  hasher,
		clock:   clock,
		logger:  logger.Named("fetch"),
	}
}

// Download fetches documentURL and writes the full body to dest under the
// URL's final path segment. An existing file of the same name is overwritten.
func (d *Downloader) Download(ctx context.Context, documentURL string, dest BlobStore) (FetchedDocument, error) {
	name := LocalFilename(documentURL)
	if name == "" {
		return FetchedDocument{}, fmt.Errorf("%w: %s: empty file name", ErrFetch, documentURL)
	}

	resp, err := d.fetchWithRetry(ctx, documentURL)
	if err != nil {
		return FetchedDocument{}, fmt.Errorf("%w: %s: %w", ErrFetch, documentURL, err)
	}

	path, err := dest.PutObject(ctx, name, documentContentType, bytes.NewReader(resp.Body))
	if err != nil {
		return FetchedDocument{}, fmt.Errorf("%w: persist %s: %w", ErrFetch, documentURL, err)
	}

	doc := FetchedDocument{
		URL:        documentURL,
		Path:       path,
		Size:       int64(len(resp.Body)),
		StatusCode: resp.StatusCode,
		FetchedAt:  d.clock.Now(),
	}
	if d.hasher != nil {
		sum, err := d.hasher.Hash(resp.Body)
		if err != nil {
			d.logger.Warn("Failed to hash document", zap.String("url", documentURL), zap.Error(err))
		} else {
			doc.SHA256 = sum
		}
	}
	return doc, nil
}

func (d *Downloader) fetchWithRetry(ctx context.Context, documentURL string) (FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		resp, err := d.fetcher.Fetch(ctx, FetchRequest{URL: documentURL})
		if err == nil {
			return resp, nil
		}
		if !d.retry.ShouldRetry(err, attempt) {
			return FetchResponse{}, err
		}
		wait := d.retry.Backoff(attempt)
		d.logger.Info("Retrying document fetch",
			zap.String("url", documentURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return FetchResponse{}, ctx.Err()
		case <-timer.C:
		}
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }
