// Package postgres exports scan results to Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/metascan/internal/crawler"
)

const defaultTable = "pdf_metadata"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for metadata rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RecordStore writes one row per emitted record plus one row per run. Runs
// live in <table>_runs.
type RecordStore struct {
	pool   txPool
	table  string
	logger *zap.Logger
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig, logger *zap.Logger) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRecordStoreWithPool(pool, cfg.Table, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool txPool, table string, logger *zap.Logger) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{pool: pool, table: table, logger: logger.Named("postgres")}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Name implements crawler.Exporter.
func (s *RecordStore) Name() string { return "postgres" }

// EnsureSchema creates the run and record tables when they do not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	runs := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s_runs (
	run_id            TEXT PRIMARY KEY,
	page_url          TEXT NOT NULL,
	output_path       TEXT NOT NULL,
	started_at        TIMESTAMPTZ NOT NULL,
	finished_at       TIMESTAMPTZ NOT NULL,
	links             INTEGER NOT NULL,
	rows_written      INTEGER NOT NULL,
	fetch_failures    INTEGER NOT NULL,
	metadata_failures INTEGER NOT NULL
)`, s.table)
	records := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT NOT NULL,
	position     INTEGER NOT NULL,
	source_url   TEXT NOT NULL,
	sha256       TEXT NOT NULL,
	title        TEXT NOT NULL,
	author       TEXT NOT NULL,
	creator      TEXT NOT NULL,
	created      TEXT NOT NULL,
	modified     TEXT NOT NULL,
	subject      TEXT NOT NULL,
	keywords     TEXT NOT NULL,
	description  TEXT NOT NULL,
	producer     TEXT NOT NULL,
	pdf_version  TEXT NOT NULL,
	file_path    TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
)`, s.table)
	for _, ddl := range []string{runs, records} {
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Export writes the run and its records in one transaction. Re-exporting the
// same run is a no-op.
func (s *RecordStore) Export(ctx context.Context, summary crawler.RunSummary) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	rollback := func(cause error) error {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(cause, fmt.Errorf("rollback: %w", rbErr))
		}
		return cause
	}

	runQuery := fmt.Sprintf(`
INSERT INTO %s_runs (
	run_id, page_url, output_path, started_at, finished_at,
	links, rows_written, fetch_failures, metadata_failures
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (run_id) DO NOTHING`, s.table)
	tag, err := tx.Exec(ctx, runQuery,
		summary.RunID,
		text(summary.PageURL),
		text(summary.OutputPath),
		summary.StartedAt,
		summary.FinishedAt,
		len(summary.Links),
		len(summary.Processed),
		summary.FetchFailures,
		summary.MetadataFailures,
	)
	if err != nil {
		return rollback(fmt.Errorf("insert run: %w", err))
	}
	if tag.RowsAffected() == 0 {
		s.logger.Info("Run already exported", zap.String("run_id", summary.RunID))
		return rollback(nil)
	}

	recordQuery := fmt.Sprintf(`
INSERT INTO %s (
	run_id, position, source_url, sha256,
	title, author, creator, created, modified, subject,
	keywords, description, producer, pdf_version, file_path
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`, s.table)
	for i, doc := range summary.Processed {
		r := doc.Record
		if _, err := tx.Exec(ctx, recordQuery,
			summary.RunID, i, text(doc.Document.URL), doc.Document.SHA256,
			text(r.Title), text(r.Author), text(r.Creator), text(r.Created), text(r.Modified), text(r.Subject),
			text(r.Keywords), text(r.Description), text(r.Producer), text(r.PDFVersion), text(r.FilePath),
		); err != nil {
			return rollback(fmt.Errorf("insert record %d: %w", i, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	s.logger.Info("Exported records",
		zap.String("run_id", summary.RunID),
		zap.String("table", s.table),
		zap.Int("rows", len(summary.Processed)),
	)
	return nil
}

// text makes s storable in a TEXT column: invalid UTF-8 becomes U+FFFD and
// NUL bytes, which Postgres rejects, are removed.
func text(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}
