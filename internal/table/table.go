// Package table writes metadata records as a semicolon-delimited table.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/metascan/internal/crawler"
)

const (
	// Delimiter separates fields within a row.
	Delimiter = ';'
	// Extension is appended to output names that lack it.
	Extension = ".csv"
)

// Write emits the header row followed by one row per record. Fields holding
// the delimiter, quotes or line breaks are quoted. Line endings follow the
// platform convention.
func Write(w io.Writer, rows []crawler.Record) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	cw.UseCRLF = runtime.GOOS == "windows"

	if err := cw.Write(crawler.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		values := row.Values()
		for j, v := range values {
			values[j] = strings.ToValidUTF8(v, "\uFFFD")
		}
		if err := cw.Write(values); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush table: %w", err)
	}
	return nil
}

// WriteFile creates or truncates outputPath and writes the table. The file is
// closed on every path; failures wrap crawler.ErrOutputWrite.
func WriteFile(outputPath string, rows []crawler.Record) (err error) {
	// #nosec G304 -- the operator chooses the output path.
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", crawler.ErrOutputWrite, outputPath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close %s: %w", crawler.ErrOutputWrite, outputPath, closeErr)
		}
	}()

	if err := Write(f, rows); err != nil {
		return fmt.Errorf("%w: %s: %w", crawler.ErrOutputWrite, outputPath, err)
	}
	return nil
}

// ResolveOutputPath appends Extension unless name already ends with it in
// any letter case, and creates the parent directory if one is named.
func ResolveOutputPath(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("output name is required")
	}
	if !strings.HasSuffix(strings.ToLower(name), Extension) {
		name += Extension
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("%w: create directory %s: %w", crawler.ErrOutputWrite, dir, err)
		}
	}
	return name, nil
}

// Writer adapts WriteFile to crawler.TableWriter and logs each write.
type Writer struct {
	logger *zap.Logger
}

// NewWriter returns a Writer.
func NewWriter(logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{logger: logger.Named("table")}
}

// WriteTable implements crawler.TableWriter.
func (w *Writer) WriteTable(outputPath string, rows []crawler.Record) error {
	if err := WriteFile(outputPath, rows); err != nil {
		w.logger.Error("Failed to write table", zap.String("path", outputPath), zap.Error(err))
		return err
	}
	w.logger.Debug("Table written", zap.String("path", outputPath), zap.Int("rows", len(rows)))
	return nil
}
