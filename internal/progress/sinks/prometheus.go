package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/metascan/internal/progress"
)

// PrometheusSink exports run progress as Prometheus collectors. It owns the
// run, link, document and row counters plus the fetch latency histogram.
type PrometheusSink struct {
	runsStarted     prometheus.Counter
	runsCompleted   *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	linksDiscovered prometheus.Counter
	documents       *prometheus.CounterVec
	fetchBytes      *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	rowsWritten     prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metascan_runs_started_total",
			Help: "Total scan runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metascan_runs_completed_total",
			Help: "Total scan runs completed partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "metascan_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"result"}),
		linksDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metascan_links_discovered_total",
			Help: "Document links found on source pages.",
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metascan_documents_total",
			Help: "Documents processed partitioned by outcome.",
		}, []string{"outcome"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metascan_fetch_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "metascan_fetch_duration_seconds",
			Help:    "Document fetch duration per site.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"site"}),
		rowsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metascan_rows_written_total",
			Help: "Rows written to output tables.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.linksDiscovered,
		s.documents,
		s.fetchBytes,
		s.fetchDuration,
		s.rowsWritten,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageLinksDiscovered:
		s.linksDiscovered.Add(float64(evt.Count))
	case progress.StageFetchDone:
		s.handleFetchEvent(evt)
	case progress.StageFetchFailed:
		s.documents.WithLabelValues("fetch_failed").Inc()
	case progress.StageMetadataFailed:
		s.documents.WithLabelValues("metadata_failed").Inc()
	case progress.StageRecordEmitted:
		s.documents.WithLabelValues("emitted").Inc()
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.rowsWritten.Add(float64(evt.Count))
		s.observeRuntime(evt, "success")
	case progress.StageRunFailed:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeRuntime(evt, "error")
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	site := evt.Site()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(site).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(site).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) observeRuntime(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
