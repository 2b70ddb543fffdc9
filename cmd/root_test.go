package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/metascan/internal/config"
	"github.com/JakeFAU/metascan/internal/crawler"
)

// MockRunner mocks the Runner interface.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context) (crawler.RunSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(crawler.RunSummary), args.Error(1)
}

func (m *MockRunner) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// withFakes swaps the factories for the duration of a test.
func withFakes(t *testing.T, runner Runner, captured *config.Config) {
	t.Helper()
	origApp, origLogger := newApp, newLogger
	t.Cleanup(func() { newApp, newLogger = origApp, origLogger })

	newLogger = func(bool, string) (*zap.Logger, error) { return zap.NewNop(), nil }
	newApp = func(_ context.Context, cfg config.Config, _ *zap.Logger) (Runner, error) {
		*captured = cfg
		if runner == nil {
			return nil, errors.New("no runner")
		}
		return runner, nil
	}
}

func execute(args ...string) error {
	cmd := newRootCmd(viper.New())
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func TestRootCmdRunsScan(t *testing.T) {
	t.Chdir(t.TempDir())

	runner := new(MockRunner)
	runner.On("Run", mock.Anything).Return(crawler.RunSummary{OutputPath: "report.csv"}, nil)
	runner.On("Close", mock.Anything).Return(nil)

	var cfg config.Config
	withFakes(t, runner, &cfg)

	err := execute("-u", "https://example.com/docs/", "-n", "report", "--timeout", "5s", "--headless", "auto")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/docs/", cfg.Scan.URL)
	assert.Equal(t, "report", cfg.Scan.Name)
	assert.Equal(t, "downloaded_pdfs", cfg.Scan.DownloadDir)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, crawler.RenderAuto, cfg.RenderMode())
	runner.AssertExpectations(t)
}

func TestRootCmdKeepsConfiguredTimeout(t *testing.T) {
	t.Chdir(t.TempDir())

	runner := new(MockRunner)
	runner.On("Run", mock.Anything).Return(crawler.RunSummary{}, nil)
	runner.On("Close", mock.Anything).Return(nil)

	var cfg config.Config
	withFakes(t, runner, &cfg)

	require.NoError(t, execute("--url", "https://example.com/", "--name", "out", "--download-dir", "pdfs"))
	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "pdfs", cfg.Scan.DownloadDir)
}

func TestRootCmdRequiresURL(t *testing.T) {
	t.Chdir(t.TempDir())

	var cfg config.Config
	withFakes(t, nil, &cfg)

	err := execute("-n", "report")
	require.ErrorContains(t, err, "scan.url is required")
}

func TestRootCmdPropagatesRunFailure(t *testing.T) {
	t.Chdir(t.TempDir())

	runner := new(MockRunner)
	runner.On("Run", mock.Anything).Return(crawler.RunSummary{}, crawler.ErrDiscovery)
	runner.On("Close", mock.Anything).Return(nil)

	var cfg config.Config
	withFakes(t, runner, &cfg)

	err := execute("-u", "https://example.com/", "-n", "report")
	require.ErrorIs(t, err, crawler.ErrDiscovery)
	runner.AssertCalled(t, "Close", mock.Anything)
}

func TestRootCmdAppInitFailure(t *testing.T) {
	t.Chdir(t.TempDir())

	var cfg config.Config
	withFakes(t, nil, &cfg)

	err := execute("-u", "https://example.com/", "-n", "report")
	require.ErrorContains(t, err, "failed to initialize application services")
}
