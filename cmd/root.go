// Package cmd defines the metascan command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/metascan/internal/app"
	"github.com/JakeFAU/metascan/internal/config"
	"github.com/JakeFAU/metascan/internal/crawler"
	"github.com/JakeFAU/metascan/internal/logging"
	pkgconfig "github.com/JakeFAU/metascan/pkg/config"
)

// Runner is the part of app.App the command drives.
type Runner interface {
	Run(ctx context.Context) (crawler.RunSummary, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.New(ctx, cfg, logger)
}

// newLogger is swapped in tests to keep output quiet.
var newLogger = logging.New

// newRootCmd creates the metascan command and binds its flags to v.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "metascan -u URL -n NAME",
		Short: "Collect metadata from every PDF linked on a web page",
		Long: `metascan fetches one web page, downloads each PDF it links to and
writes the documents' metadata (title, author, dates, keywords, producer,
header version and local path) to a semicolon-separated table.

Documents that cannot be downloaded or parsed are reported and skipped.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd.Context(), v, cfgFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./metascan.yaml)")
	flags.StringP("url", "u", "", "URL of the page to scan for PDF links")
	flags.StringP("name", "n", "", "output table name; .csv is appended when missing")
	flags.String("download-dir", "", "directory receiving downloaded documents (default downloaded_pdfs)")
	flags.String("headless", "", "render the page in a browser first: off, auto or always")
	flags.Duration("timeout", 0, "per-request timeout, 0 disables it (default 60s from config)")

	bindings := map[string]string{
		"scan.url":           "url",
		"scan.name":          "name",
		"scan.download_dir":  "download-dir",
		"discovery.headless": "headless",
		"http.timeout":       "timeout",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
	return cmd
}

func runScan(ctx context.Context, v *viper.Viper, cfgFile string) error {
	used, err := pkgconfig.Init(v, cfgFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	if used != "" {
		logger.Info("Using config file", zap.String("path", used))
	}

	appInstance, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	defer func() {
		if cerr := appInstance.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("Failed to close application services", zap.Error(cerr))
		}
	}()

	summary, err := appInstance.Run(ctx)
	if err != nil {
		return fmt.Errorf("run scan: %w", err)
	}
	logger.Info("Scan finished",
		zap.String("run_id", summary.RunID),
		zap.String("output", summary.OutputPath),
		zap.Int("links", len(summary.Links)),
		zap.Int("rows", len(summary.Processed)),
		zap.Int("fetch_failures", summary.FetchFailures),
		zap.Int("metadata_failures", summary.MetadataFailures),
	)
	return nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the scan.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(viper.New()).ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	logger, lerr := logging.New(false, "")
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "metascan: %v\n", err)
		os.Exit(1)
	}
	logger.Fatal("Command execution failed", zap.Error(err))
}
