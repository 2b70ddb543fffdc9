package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts transport-level outcomes for every fetch.
type Metrics struct {
	requests       prometheus.Counter
	requestErrors  prometheus.Counter
	rateLimitHits  prometheus.Counter
	forbiddenHits  prometheus.Counter
	responseStatus *prometheus.CounterVec
}

// NewMetrics registers the transport collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metascan_requests_total",
			Help: "The total number of HTTP requests sent.",
		}),
		requestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metascan_request_errors_total",
			Help: "The total number of failed HTTP requests.",
		}),
		rateLimitHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metascan_rate_limit_hits_total",
			Help: "The total number of times a server answered 429.",
		}),
		forbiddenHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metascan_forbidden_hits_total",
			Help: "The total number of times a server answered 403.",
		}),
		responseStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metascan_responses_total",
			Help: "Responses received partitioned by status class.",
		}, []string{"class"}),
	}
	for _, c := range []prometheus.Collector{m.requests, m.requestErrors, m.rateLimitHits, m.forbiddenHits, m.responseStatus} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register transport collector: %w", err)
		}
	}
	return m, nil
}

// Observe records one fetch outcome. status is zero when no response arrived.
func (m *Metrics) Observe(status int, err error) {
	if m == nil {
		return
	}
	m.requests.Inc()
	switch status {
	case http.StatusTooManyRequests:
		m.rateLimitHits.Inc()
	case http.StatusForbidden:
		m.forbiddenHits.Inc()
	}
	if status > 0 {
		m.responseStatus.WithLabelValues(statusClass(status)).Inc()
	}
	if err != nil {
		m.requestErrors.Inc()
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// StatusCoder is implemented by fetch errors that still carry a status code.
type StatusCoder interface {
	StatusCode() int
}

type instrumentedFetcher struct {
	next    Fetcher
	metrics *Metrics
}

// InstrumentFetcher wraps next so every call is counted on m.
func InstrumentFetcher(next Fetcher, m *Metrics) Fetcher {
	if m == nil {
		return next
	}
	return &instrumentedFetcher{next: next, metrics: m}
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	resp, err := f.next.Fetch(ctx, req)
	status := resp.StatusCode
	var sc StatusCoder
	if status == 0 && errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	f.metrics.Observe(status, err)
	return resp, err
}
