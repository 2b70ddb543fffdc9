package headless

import (
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesDurations(t *testing.T) {
	t.Parallel()

	_, err := New(Config{NavigationTimeout: -time.Second})
	require.Error(t, err)
	_, err = New(Config{SettleDelay: -time.Second})
	require.Error(t, err)

	fetcher, err := New(Config{UserAgent: "metascan"})
	require.NoError(t, err)
	require.NoError(t, fetcher.Close())
}

func TestFetcherDefaults(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{}
	assert.Equal(t, 30*time.Second, fetcher.navTimeout())
	assert.Equal(t, 500*time.Millisecond, fetcher.settleDelay())

	fetcher.cfg.NavigationTimeout = time.Second
	fetcher.cfg.SettleDelay = time.Millisecond
	assert.Equal(t, time.Second, fetcher.navTimeout())
	assert.Equal(t, time.Millisecond, fetcher.settleDelay())
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{
		"X-Test":  {"a", "b"},
		"X-One":   {"only"},
		"X-Empty": {},
	})
	assert.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	assert.Equal(t, "only", netHeaders["X-One"])
	assert.NotContains(t, netHeaders, "X-Empty")
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  203,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc", "X-Multi": []any{"1", 2}},
		},
	})
	// Subresources and later documents do not replace the page response.
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500, URL: "https://example.com/app.js"},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404, URL: "https://example.com/frame"},
	})

	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	assert.Equal(t, 203, status)
	assert.Equal(t, "abc", headers.Get("X-Request-ID"))
	assert.Equal(t, []string{"1", "2"}, headers.Values("X-Multi"))
	assert.Equal(t, "https://example.com/rendered", url)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://final", url)

	_, _, url = meta.snapshotWithFallbacks("https://req", "")
	assert.Equal(t, "https://req", url)
}
