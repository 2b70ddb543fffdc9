package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunNotification is the message published once a run's table is written.
type RunNotification struct {
	RunID            string    `json:"run_id"`
	PageURL          string    `json:"page_url"`
	OutputPath       string    `json:"output_path"`
	DownloadDir      string    `json:"download_dir"`
	Links            int       `json:"links"`
	Rows             int       `json:"rows"`
	FetchFailures    int       `json:"fetch_failures"`
	MetadataFailures int       `json:"metadata_failures"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Records          []Record  `json:"records"`
}

// NewRunNotification condenses a summary into its published form.
func NewRunNotification(summary RunSummary) RunNotification {
	return RunNotification{
		RunID:            summary.RunID,
		PageURL:          summary.PageURL,
		OutputPath:       summary.OutputPath,
		DownloadDir:      summary.DownloadDir,
		Links:            len(summary.Links),
		Rows:             len(summary.Processed),
		FetchFailures:    summary.FetchFailures,
		MetadataFailures: summary.MetadataFailures,
		StartedAt:        summary.StartedAt,
		FinishedAt:       summary.FinishedAt,
		Records:          summary.Records(),
	}
}

// Notifier publishes a RunNotification for every finished run.
type Notifier struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// NewNotifier builds an Exporter that announces runs on topic.
func NewNotifier(publisher Publisher, topic string, logger *zap.Logger) (*Notifier, error) {
	if publisher == nil {
		return nil, errors.New("notifier requires a publisher")
	}
	if topic == "" {
		return nil, errors.New("notifier requires a topic")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{publisher: publisher, topic: topic, logger: logger.Named("notifier")}, nil
}

// Name implements Exporter.
func (n *Notifier) Name() string { return "pubsub" }

// Export implements Exporter.
func (n *Notifier) Export(ctx context.Context, summary RunSummary) error {
	msgID, err := n.publisher.Publish(ctx, n.topic, NewRunNotification(summary))
	if err != nil {
		return fmt.Errorf("publish run %s: %w", summary.RunID, err)
	}
	n.logger.Info("Published run notification",
		zap.String("run_id", summary.RunID),
		zap.String("topic", n.topic),
		zap.String("message_id", msgID),
	)
	return nil
}
