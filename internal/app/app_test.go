package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gpubsub "cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/metascan/internal/app"
	"github.com/JakeFAU/metascan/internal/config"
	"github.com/JakeFAU/metascan/internal/crawler"
	"github.com/JakeFAU/metascan/internal/testutil"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><a href="/paper.pdf">paper</a></body></html>`)
	})
	mux.HandleFunc("/paper.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(testutil.BuildPDF("1.5", map[string]any{"Title": "Paper"}))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func loadConfig(t *testing.T, pageURL string, overrides map[string]any) config.Config {
	t.Helper()
	dir := t.TempDir()
	v := viper.New()
	v.Set("scan.url", pageURL)
	v.Set("scan.name", filepath.Join(dir, "out", "report"))
	v.Set("scan.download_dir", filepath.Join(dir, "downloads"))
	for k, val := range overrides {
		v.Set(k, val)
	}
	cfg, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestAppRunWritesTableAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	textfile := filepath.Join(t.TempDir(), "metascan.prom")
	cfg := loadConfig(t, srv.URL, map[string]any{
		"metrics.textfile":    textfile,
		"http.rate_limit_rps": 5,
	})

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close(context.Background())) })

	summary, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.Scan.Name+".csv", summary.OutputPath)
	require.Len(t, summary.Processed, 1)
	assert.Len(t, summary.Processed[0].Document.SHA256, 64)

	data, err := os.ReadFile(summary.OutputPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "Paper;"))
	assert.Contains(t, lines[1], ";1.5;")

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "metascan_requests_total 2")
	assert.Contains(t, string(metrics), "metascan_rows_written_total 1")
	assert.Contains(t, string(metrics), `metascan_rate_limit_delay_seconds_count{host="127.0.0.1"} 1`)
}

func TestAppRunDiscoveryFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	cfg := loadConfig(t, srv.URL, map[string]any{"http.fail_on_error_status": true})
	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	_, err = a.Run(context.Background())
	require.ErrorIs(t, err, crawler.ErrDiscovery)
	_, statErr := os.Stat(cfg.Scan.Name + ".csv")
	assert.True(t, os.IsNotExist(statErr))
}

func TestAppPublishesRunNotification(t *testing.T) {
	t.Parallel()

	psrv := pstest.NewServer()
	t.Cleanup(func() { _ = psrv.Close() })
	conn, err := grpc.NewClient(psrv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx := context.Background()
	admin, err := gpubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })
	_, err = admin.CreateTopic(ctx, "runs")
	require.NoError(t, err)

	srv := newSite(t)
	cfg := loadConfig(t, srv.URL, map[string]any{
		"pubsub.project_id": "test-project",
		"pubsub.topic":      "runs",
	})
	a, err := app.New(ctx, cfg, nil, app.WithPubSubOptions(option.WithGRPCConn(conn)))
	require.NoError(t, err)

	summary, err := a.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))

	msgs := psrv.Messages()
	require.Len(t, msgs, 1)
	var note crawler.RunNotification
	require.NoError(t, json.Unmarshal(msgs[0].Data, &note))
	assert.Equal(t, summary.RunID, note.RunID)
	assert.Equal(t, 1, note.Rows)
	assert.Equal(t, 1, note.Links)
}

func TestAppSkipsUnreachableMirror(t *testing.T) {
	t.Parallel()

	gcsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}))
	t.Cleanup(gcsSrv.Close)

	core, logs := observer.New(zapcore.InfoLevel)
	srv := newSite(t)
	cfg := loadConfig(t, srv.URL, map[string]any{"storage.gcs_bucket": "absent"})

	a, err := app.New(context.Background(), cfg, zap.New(core),
		app.WithStorageOptions(option.WithEndpoint(gcsSrv.URL), option.WithoutAuthentication()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Equal(t, 1, logs.FilterMessage("GCS mirror disabled").Len())
	assert.Zero(t, logs.FilterMessage("Exporter enabled").Len())

	_, err = a.Run(context.Background())
	require.NoError(t, err)
}
