package crawler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/metascan/internal/hash/sha256"
	"github.com/JakeFAU/metascan/internal/storage/memory"
)

type failingStore struct{ err error }

func (s failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", s.err
}

func TestDownloaderDownload(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	body := []byte("%PDF-1.4\nbody")
	url := "https://example.com/files/report.pdf"

	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: url}).
		Return(FetchResponse{URL: url, StatusCode: 200, Body: body}, nil)

	store := memory.NewBlobStore()
	d := NewDownloader(fetcher, nil, sha256.New(), fixedClock{t: now}, nil)

	doc, err := d.Download(context.Background(), url, store)
	require.NoError(t, err)

	assert.Equal(t, "memory://report.pdf", doc.Path)
	assert.Equal(t, url, doc.URL)
	assert.EqualValues(t, len(body), doc.Size)
	assert.Equal(t, 200, doc.StatusCode)
	assert.Equal(t, now, doc.FetchedAt)
	assert.Len(t, doc.SHA256, 64)

	stored, ok := store.Object("report.pdf")
	require.True(t, ok)
	assert.Equal(t, body, stored)
	assert.Equal(t, "application/pdf", store.ContentType("report.pdf"))
	fetcher.AssertExpectations(t)
}

func TestDownloaderOverwritesSameName(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: "https://a.example/x/doc.pdf"}).
		Return(FetchResponse{StatusCode: 200, Body: []byte("first")}, nil)
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: "https://b.example/y/doc.pdf"}).
		Return(FetchResponse{StatusCode: 200, Body: []byte("second")}, nil)

	d := NewDownloader(fetcher, nil, nil, nil, nil)
	_, err := d.Download(context.Background(), "https://a.example/x/doc.pdf", store)
	require.NoError(t, err)
	doc, err := d.Download(context.Background(), "https://b.example/y/doc.pdf", store)
	require.NoError(t, err)

	assert.Empty(t, doc.SHA256)
	assert.Equal(t, []string{"doc.pdf"}, store.Keys())
	stored, _ := store.Object("doc.pdf")
	assert.Equal(t, "second", string(stored))
}

func TestDownloaderEmptyFilename(t *testing.T) {
	t.Parallel()

	fetcher := new(MockFetcher)
	d := NewDownloader(fetcher, nil, nil, nil, nil)

	_, err := d.Download(context.Background(), "https://example.com/dir/", memory.NewBlobStore())
	require.ErrorIs(t, err, ErrFetch)
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestDownloaderFetchFailure(t *testing.T) {
	t.Parallel()

	url := "https://example.com/missing.pdf"
	fetchErr := errors.New("connection refused")
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: url}).Return(FetchResponse{}, fetchErr)

	store := memory.NewBlobStore()
	_, err := NewDownloader(fetcher, nil, nil, nil, nil).Download(context.Background(), url, store)
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorIs(t, err, fetchErr)
	assert.Empty(t, store.Keys())
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestDownloaderPersistFailure(t *testing.T) {
	t.Parallel()

	url := "https://example.com/a.pdf"
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: url}).
		Return(FetchResponse{StatusCode: 200, Body: []byte("%PDF-1.4")}, nil)

	diskErr := errors.New("disk full")
	_, err := NewDownloader(fetcher, nil, nil, nil, nil).Download(context.Background(), url, failingStore{err: diskErr})
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorIs(t, err, diskErr)
}

func TestDownloaderRetriesUntilSuccess(t *testing.T) {
	t.Parallel()

	url := "https://example.com/flaky.pdf"
	transient := errors.New("reset by peer")

	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: url}).Return(FetchResponse{}, transient).Once()
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: url}).
		Return(FetchResponse{StatusCode: 200, Body: []byte("%PDF-1.5")}, nil).Once()

	retry := new(MockRetryPolicy)
	retry.On("ShouldRetry", transient, 1).Return(true)
	retry.On("Backoff", 1).Return(time.Millisecond)

	doc, err := NewDownloader(fetcher, retry, nil, nil, nil).Download(context.Background(), url, memory.NewBlobStore())
	require.NoError(t, err)
	assert.Equal(t, "memory://flaky.pdf", doc.Path)
	fetcher.AssertNumberOfCalls(t, "Fetch", 2)
	retry.AssertExpectations(t)
}

func TestDownloaderStopsRetryingOnCancel(t *testing.T) {
	t.Parallel()

	url := "https://example.com/slow.pdf"
	transient := errors.New("timeout")
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, FetchRequest{URL: url}).Return(FetchResponse{}, transient)

	retry := new(MockRetryPolicy)
	retry.On("ShouldRetry", transient, 1).Return(true)
	retry.On("Backoff", 1).Return(time.Hour).Run(func(mock.Arguments) { cancel() })

	_, err := NewDownloader(fetcher, retry, nil, nil, nil).Download(ctx, url, memory.NewBlobStore())
	require.ErrorIs(t, err, ErrFetch)
	require.ErrorIs(t, err, context.Canceled)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}
