package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/metascan/internal/progress"
)

// Engine runs the metascan pipeline: discover links, then download and
// normalize each document in order, then write the table once.
type Engine struct {
	discoverer LinkDiscoverer
	downloader DocumentDownloader
	extractor  RecordExtractor
	writer     TableWriter
	openStore  StoreOpener
	exporters  []Exporter
	emitter    progress.Emitter
	ids        IDGenerator
	clock      Clock
	logger     *zap.Logger
}

// EngineDeps groups the collaborators of an Engine. Exporters, Emitter, IDs
// and Clock are optional.
type EngineDeps struct {
	Discoverer LinkDiscoverer
	Downloader DocumentDownloader
	Extractor  RecordExtractor
	Writer     TableWriter
	OpenStore  StoreOpener
	Exporters  []Exporter
	Emitter    progress.Emitter
	IDs        IDGenerator
	Clock      Clock
}

// NewEngine wires the pipeline stages together.
func NewEngine(deps EngineDeps, logger *zap.Logger) (*Engine, error) {
	switch {
	case deps.Discoverer == nil:
		return nil, errors.New("engine requires a link discoverer")
	case deps.Downloader == nil:
		return nil, errors.New("engine requires a document downloader")
	case deps.Extractor == nil:
		return nil, errors.New("engine requires a record extractor")
	case deps.Writer == nil:
		return nil, errors.New("engine requires a table writer")
	case deps.OpenStore == nil:
		return nil, errors.New("engine requires a store opener")
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Discard
	}
	if deps.Clock == nil {
		deps.Clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		discoverer: deps.Discoverer,
		downloader: deps.Downloader,
		extractor:  deps.Extractor,
		writer:     deps.Writer,
		openStore:  deps.OpenStore,
		exporters:  append([]Exporter(nil), deps.Exporters...),
		emitter:    deps.Emitter,
		ids:        deps.IDs,
		clock:      deps.Clock,
		logger:     logger.Named("engine"),
	}, nil
}

// Run executes one scan of pageURL. Per-document failures are logged and
// skipped; discovery, download directory and output failures abort the run.
// Files already downloaded stay on disk whatever the outcome.
func (e *Engine) Run(ctx context.Context, pageURL, outputPath, downloadDir string) (RunSummary, error) {
	summary := RunSummary{
		RunID:       e.newRunID(),
		PageURL:     pageURL,
		OutputPath:  outputPath,
		DownloadDir: downloadDir,
		StartedAt:   e.clock.Now(),
	}
	logger := e.logger.With(zap.String("run_id", summary.RunID))
	e.emit(ctx, summary.RunID, progress.Event{Stage: progress.StageRunStart, URL: pageURL})

	store, err := e.openStore(downloadDir)
	if err != nil {
		return e.fail(ctx, summary, fmt.Errorf("prepare download dir %s: %w", downloadDir, err))
	}

	links, err := e.discoverer.Discover(ctx, pageURL)
	if err != nil {
		return e.fail(ctx, summary, err)
	}
	summary.Links = links
	e.emit(ctx, summary.RunID, progress.Event{Stage: progress.StageLinksDiscovered, URL: pageURL, Count: len(links)})

	var interrupted error
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			interrupted = err
			logger.Warn("Run interrupted; writing rows collected so far", zap.Error(err))
			break
		}
		result := e.processLink(ctx, logger, summary.RunID, link, store)
		switch {
		case result.OK():
			summary.Downloaded = append(summary.Downloaded, result.Document)
			summary.Processed = append(summary.Processed, ProcessedDocument{
				Document: result.Document,
				Record:   result.Record,
			})
		case result.Stage == StageFetch:
			summary.FetchFailures++
		default:
			summary.Downloaded = append(summary.Downloaded, result.Document)
			summary.MetadataFailures++
		}
	}

	if err := e.writer.WriteTable(outputPath, summary.Records()); err != nil {
		return e.fail(ctx, summary, err)
	}
	summary.FinishedAt = e.clock.Now()
	logger.Info("Wrote metadata table",
		zap.String("path", outputPath),
		zap.Int("rows", len(summary.Processed)),
		zap.Int("links", len(links)),
		zap.Int("fetch_failures", summary.FetchFailures),
		zap.Int("metadata_failures", summary.MetadataFailures),
	)

	if interrupted != nil {
		return e.fail(ctx, summary, fmt.Errorf("run interrupted: %w", interrupted))
	}

	e.export(ctx, logger, summary)
	e.emit(ctx, summary.RunID, progress.Event{
		Stage: progress.StageRunDone,
		URL:   pageURL,
		Path:  outputPath,
		Count: len(summary.Processed),
		Dur:   summary.FinishedAt.Sub(summary.StartedAt),
	})
	return summary, nil
}

// processLink downloads and normalizes one document. The returned Stage tells
// the caller how far it got; a non-nil Err means no record is emitted.
func (e *Engine) processLink(ctx context.Context, logger *zap.Logger, runID, link string, store BlobStore) DocumentResult {
	result := DocumentResult{URL: link, Stage: StageFetch}

	logger.Info("Download PDF", zap.String("url", link))
	start := e.clock.Now()
	doc, err := e.downloader.Download(ctx, link, store)
	if err != nil {
		result.Err = err
		logger.Warn("Skipping document: fetch failed", zap.String("url", link), zap.Error(err))
		e.emit(ctx, runID, progress.Event{Stage: progress.StageFetchFailed, URL: link, Note: err.Error()})
		return result
	}
	result.Document = doc
	result.Stage = StageMetadata
	e.emit(ctx, runID, progress.Event{
		Stage: progress.StageFetchDone,
		URL:   link,
		Path:  doc.Path,
		Bytes: doc.Size,
		Dur:   nonNegative(e.clock.Now().Sub(start)),
	})

	logger.Info("Extract metadata", zap.String("path", doc.Path))
	record, err := e.extractor.Extract(ctx, doc.Path)
	if err != nil {
		result.Err = err
		logger.Warn("Skipping document: metadata unreadable",
			zap.String("url", link),
			zap.String("path", doc.Path),
			zap.Error(err),
		)
		e.emit(ctx, runID, progress.Event{Stage: progress.StageMetadataFailed, URL: link, Path: doc.Path, Note: err.Error()})
		return result
	}
	record.FilePath = doc.Path
	result.Record = record
	result.Stage = StageDone
	e.emit(ctx, runID, progress.Event{Stage: progress.StageRecordEmitted, URL: link, Path: doc.Path})
	return result
}

func (e *Engine) export(ctx context.Context, logger *zap.Logger, summary RunSummary) {
	for _, exp := range e.exporters {
		if err := exp.Export(ctx, summary); err != nil {
			logger.Warn("Exporter failed", zap.String("exporter", exp.Name()), zap.Error(err))
			continue
		}
		logger.Debug("Exporter finished", zap.String("exporter", exp.Name()))
	}
}

func (e *Engine) fail(ctx context.Context, summary RunSummary, err error) (RunSummary, error) {
	summary.FinishedAt = e.clock.Now()
	e.emit(ctx, summary.RunID, progress.Event{
		Stage: progress.StageRunFailed,
		URL:   summary.PageURL,
		Dur:   nonNegative(summary.FinishedAt.Sub(summary.StartedAt)),
		Note:  err.Error(),
	})
	return summary, err
}

// emit stamps and forwards an event. Sinks still see the event when the run
// context is cancelled.
func (e *Engine) emit(ctx context.Context, runID string, evt progress.Event) {
	evt.RunID = runID
	if evt.TS.IsZero() {
		evt.TS = e.clock.Now()
	}
	e.emitter.Emit(context.WithoutCancel(ctx), evt)
}

func (e *Engine) newRunID() string {
	if e.ids != nil {
		id, err := e.ids.NewID()
		if err == nil {
			return id
		}
		e.logger.Warn("Failed to generate run id", zap.Error(err))
	}
	return fmt.Sprintf("run-%d", e.clock.Now().UnixNano())
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
