package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sampleSummary() RunSummary {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return RunSummary{
		RunID:            "run-1",
		PageURL:          "https://example.com/docs/",
		OutputPath:       "out.csv",
		DownloadDir:      "downloads",
		StartedAt:        start,
		FinishedAt:       start.Add(time.Minute),
		Links:            []string{"https://example.com/a.pdf", "https://example.com/b.pdf"},
		FetchFailures:    1,
		MetadataFailures: 0,
		Processed: []ProcessedDocument{
			{Record: Record{Title: "A", PDFVersion: "1.4", FilePath: "downloads/a.pdf"}},
		},
	}
}

func TestNewRunNotification(t *testing.T) {
	t.Parallel()

	n := NewRunNotification(sampleSummary())
	assert.Equal(t, "run-1", n.RunID)
	assert.Equal(t, 2, n.Links)
	assert.Equal(t, 1, n.Rows)
	assert.Equal(t, 1, n.FetchFailures)
	require.Len(t, n.Records, 1)
	assert.Equal(t, "A", n.Records[0].Title)
}

func TestNotifierExport(t *testing.T) {
	t.Parallel()

	pub := new(MockPublisher)
	summary := sampleSummary()
	pub.On("Publish", mock.Anything, "runs", NewRunNotification(summary)).Return("msg-1", nil)

	n, err := NewNotifier(pub, "runs", nil)
	require.NoError(t, err)
	assert.Equal(t, "pubsub", n.Name())
	require.NoError(t, n.Export(context.Background(), summary))
	pub.AssertExpectations(t)
}

func TestNotifierExportError(t *testing.T) {
	t.Parallel()

	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "runs", mock.Anything).Return("", errors.New("unavailable"))

	n, err := NewNotifier(pub, "runs", nil)
	require.NoError(t, err)
	err = n.Export(context.Background(), sampleSummary())
	require.ErrorContains(t, err, "run-1")
}

func TestNewNotifierValidation(t *testing.T) {
	t.Parallel()

	_, err := NewNotifier(nil, "runs", nil)
	require.Error(t, err)
	_, err = NewNotifier(new(MockPublisher), "", nil)
	require.Error(t, err)
}
