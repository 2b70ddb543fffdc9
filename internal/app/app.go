// Package app initializes and holds long-lived services for one scan, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/metascan/internal/clock/system"
	"github.com/JakeFAU/metascan/internal/config"
	"github.com/JakeFAU/metascan/internal/crawler"
	collyfetcher "github.com/JakeFAU/metascan/internal/fetcher/colly"
	"github.com/JakeFAU/metascan/internal/fetcher/headless"
	"github.com/JakeFAU/metascan/internal/hash/sha256"
	"github.com/JakeFAU/metascan/internal/id/uuid"
	"github.com/JakeFAU/metascan/internal/pdfmeta"
	"github.com/JakeFAU/metascan/internal/policy/ratelimit"
	"github.com/JakeFAU/metascan/internal/progress"
	"github.com/JakeFAU/metascan/internal/progress/sinks"
	"github.com/JakeFAU/metascan/internal/publisher/pubsub"
	"github.com/JakeFAU/metascan/internal/storage/gcs"
	"github.com/JakeFAU/metascan/internal/storage/local"
	"github.com/JakeFAU/metascan/internal/storage/postgres"
	"github.com/JakeFAU/metascan/internal/table"
)

// App holds the engine and the resources it borrows.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	recorder *progress.Recorder
	engine   *crawler.Engine
	closers  []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Option customizes how optional services are dialed.
type Option func(*options)

type options struct {
	storageOpts []option.ClientOption
	pubsubOpts  []option.ClientOption
}

// WithStorageOptions passes client options to the GCS mirror client.
func WithStorageOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.storageOpts = append(o.storageOpts, opts...) }
}

// WithPubSubOptions passes client options to the Pub/Sub client.
func WithPubSubOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.pubsubOpts = append(o.pubsubOpts, opts...) }
}

// New builds every pipeline stage from cfg. Optional exporters that cannot be
// reached are logged and left out; the CSV table does not depend on them.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	metrics, err := crawler.NewMetrics(a.registry)
	if err != nil {
		return nil, err
	}
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.recorder = progress.NewRecorder(logger, sinks.NewLogSink(logger), promSink)

	var limiter crawler.Limiter
	if cfg.HTTP.RateLimitRPS > 0 {
		l, err := ratelimit.New(ratelimit.Config{RPS: cfg.HTTP.RateLimitRPS, Burst: cfg.HTTP.RateLimitBurst}, a.registry)
		if err != nil {
			return nil, err
		}
		limiter = l
	}

	fetcher := crawler.InstrumentFetcher(crawler.LimitFetcher(collyfetcher.New(collyfetcher.Config{
		UserAgent:         cfg.HTTP.UserAgent,
		RespectRobots:     cfg.HTTP.RespectRobots,
		Timeout:           cfg.HTTP.Timeout,
		MaxBodyBytes:      cfg.HTTP.MaxBodyBytes,
		FailOnErrorStatus: cfg.HTTP.FailOnErrorStatus,
	}), limiter), metrics)

	discoverer := crawler.NewDiscoverer(fetcher, logger)
	if mode := cfg.RenderMode(); mode != crawler.RenderOff {
		renderer, err := headless.New(headless.Config{
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
			SettleDelay:       cfg.Headless.SettleDelay,
			ExecPath:          cfg.Headless.ExecPath,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
		a.closers = append(a.closers, namedCloser{name: "headless", close: renderer.Close})
		detector := crawler.NewHeuristicDetector(cfg.Discovery.JSMinBytes, cfg.Discovery.JSSelectors, cfg.Discovery.JSKeywords)
		discoverer.WithRenderer(crawler.InstrumentFetcher(crawler.LimitFetcher(renderer, limiter), metrics), mode, detector)
		logger.Info("Headless discovery enabled", zap.String("mode", string(mode)))
	}

	clock := system.New()
	retry := crawler.NewExponentialRetryPolicy(cfg.HTTP.MaxRetries, cfg.HTTP.BackoffInitial, cfg.HTTP.BackoffMax)

	engine, err := crawler.NewEngine(crawler.EngineDeps{
		Discoverer: discoverer,
		Downloader: crawler.NewDownloader(fetcher, retry, sha256.New(), clock, logger),
		Extractor:  crawler.NewNormalizer(pdfmeta.New(), logger),
		Writer:     table.NewWriter(logger),
		OpenStore:  local.Open,
		Exporters:  a.buildExporters(ctx, o),
		Emitter:    a.recorder,
		IDs:        uuid.New(),
		Clock:      clock,
	}, logger)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.engine = engine
	return a, nil
}

func (a *App) buildExporters(ctx context.Context, o options) []crawler.Exporter {
	var exporters []crawler.Exporter

	if bucket := a.cfg.Storage.GCSBucket; bucket != "" {
		if exp, err := a.gcsMirror(ctx, bucket, o.storageOpts); err != nil {
			a.logger.Warn("GCS mirror disabled", zap.String("bucket", bucket), zap.Error(err))
		} else {
			exporters = append(exporters, exp)
		}
	}

	if a.cfg.DB.DSN != "" {
		if exp, err := a.recordStore(ctx); err != nil {
			a.logger.Warn("Postgres sink disabled", zap.Error(err))
		} else {
			exporters = append(exporters, exp)
		}
	}

	if a.cfg.PubSub.ProjectID != "" && a.cfg.PubSub.Topic != "" {
		if exp, err := a.notifier(ctx, o.pubsubOpts); err != nil {
			a.logger.Warn("Pub/Sub notifications disabled", zap.String("topic", a.cfg.PubSub.Topic), zap.Error(err))
		} else {
			exporters = append(exporters, exp)
		}
	}

	for _, exp := range exporters {
		a.logger.Info("Exporter enabled", zap.String("exporter", exp.Name()))
	}
	return exporters
}

func (a *App) gcsMirror(ctx context.Context, bucket string, opts []option.ClientOption) (crawler.Exporter, error) {
	client, err := gcs.NewClient(ctx, bucket, a.logger, opts...)
	if err != nil {
		return nil, err
	}
	store, err := gcs.New(client, gcs.Config{Bucket: bucket})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	mirror, err := gcs.NewMirror(store, a.cfg.Storage.GCSPrefix, a.logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{name: "gcs", close: client.Close})
	return mirror, nil
}

func (a *App) recordStore(ctx context.Context) (crawler.Exporter, error) {
	store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{name: "postgres", close: func() error {
		store.Close()
		return nil
	}})
	return store, nil
}

func (a *App) notifier(ctx context.Context, opts []option.ClientOption) (crawler.Exporter, error) {
	pub, err := pubsub.Dial(ctx, a.cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	n, err := crawler.NewNotifier(pub, a.cfg.PubSub.Topic, a.logger)
	if err != nil {
		_ = pub.Close()
		return nil, err
	}
	a.closers = append(a.closers, namedCloser{name: "pubsub", close: pub.Close})
	return n, nil
}

// Run resolves the output path and executes one scan. The metrics textfile is
// written whatever the outcome.
func (a *App) Run(ctx context.Context) (crawler.RunSummary, error) {
	outputPath, err := table.ResolveOutputPath(a.cfg.Scan.Name)
	if err != nil {
		return crawler.RunSummary{}, err
	}

	summary, runErr := a.engine.Run(ctx, a.cfg.Scan.URL, outputPath, a.cfg.Scan.DownloadDir)

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := prometheus.WriteToTextfile(path, a.registry); err != nil {
			a.logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		} else {
			a.logger.Debug("Wrote metrics textfile", zap.String("path", path))
		}
	}
	return summary, runErr
}

// Registry exposes the collectors filled during the run.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Close releases every service in reverse construction order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.recorder != nil {
		if err := a.recorder.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
