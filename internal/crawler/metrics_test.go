package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "bad status" }
func (e statusErr) StatusCode() int { return e.code }

func TestInstrumentFetcherCountsOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	next := new(MockFetcher)
	next.On("Fetch", mock.Anything, FetchRequest{URL: "https://ok.example/"}).
		Return(FetchResponse{StatusCode: 200}, nil)
	next.On("Fetch", mock.Anything, FetchRequest{URL: "https://limited.example/"}).
		Return(FetchResponse{}, statusErr{code: 429})
	next.On("Fetch", mock.Anything, FetchRequest{URL: "https://forbidden.example/"}).
		Return(FetchResponse{StatusCode: 403}, nil)
	next.On("Fetch", mock.Anything, FetchRequest{URL: "https://down.example/"}).
		Return(FetchResponse{}, errors.New("dial tcp: refused"))

	f := InstrumentFetcher(next, m)
	for _, u := range []string{"https://ok.example/", "https://limited.example/", "https://forbidden.example/", "https://down.example/"} {
		_, _ = f.Fetch(context.Background(), FetchRequest{URL: u})
	}

	assert.InDelta(t, 4, testutil.ToFloat64(m.requests), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.requestErrors), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimitHits), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.forbiddenHits), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.responseStatus.WithLabelValues("2xx")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.responseStatus.WithLabelValues("4xx")), 0)
}

func TestInstrumentFetcherNilMetrics(t *testing.T) {
	t.Parallel()

	next := new(MockFetcher)
	assert.Same(t, Fetcher(next), InstrumentFetcher(next, nil))
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(301))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "other", statusClass(101))
}
