// Package pdfmeta reads the document information dictionary of PDF files.
package pdfmeta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"github.com/JakeFAU/metascan/internal/crawler"
)

// ErrMalformed is returned when the parser gives up on a file.
var ErrMalformed = errors.New("malformed pdf")

// Parser extracts metadata with github.com/ledongthuc/pdf.
type Parser struct{}

// New returns a Parser.
func New() *Parser { return &Parser{} }

// ParseFile opens path and parses its information dictionary.
func (p *Parser) ParseFile(ctx context.Context, path string) (crawler.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// #nosec G304 -- path comes from the download store.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return p.Parse(f, info.Size())
}

// Parse reads the trailer /Info dictionary. A document without one yields
// empty Metadata. Panics inside the parser on malformed input are returned as
// errors wrapping ErrMalformed.
func (p *Parser) Parse(r io.ReaderAt, size int64) (meta crawler.Metadata, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			meta = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()

	reader, err := pdf.NewReader(acceptModernHeader(r), size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	meta = crawler.Metadata{}
	info := reader.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return meta, nil
	}
	for _, key := range info.Keys() {
		if v, ok := convertValue(info.Key(key)); ok {
			meta[key] = v
		}
	}
	return meta, nil
}

// convertValue maps a PDF object onto Go values: text strings become string,
// arrays become []any and other scalars keep their natural type.
func convertValue(v pdf.Value) (any, bool) {
	switch v.Kind() {
	case pdf.String:
		return v.Text(), true
	case pdf.Name:
		return v.Name(), true
	case pdf.Integer:
		return v.Int64(), true
	case pdf.Real:
		return v.Float64(), true
	case pdf.Bool:
		return v.Bool(), true
	case pdf.Array:
		items := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			if item, ok := convertValue(v.Index(i)); ok {
				items = append(items, item)
			}
		}
		return items, true
	default:
		return nil, false
	}
}

// The parser only accepts 1.x headers. PDF 2.0 files keep the same trailer
// layout, so their header is presented to it as 1.7.
var (
	modernHeader = []byte("%PDF-2.")
	legacyHeader = []byte("%PDF-1.7")
)

type headerPatchedReader struct {
	r     io.ReaderAt
	patch []byte
}

func acceptModernHeader(r io.ReaderAt) io.ReaderAt {
	head := make([]byte, len(legacyHeader))
	if n, _ := r.ReadAt(head, 0); n < len(head) || !bytes.HasPrefix(head, modernHeader) {
		return r
	}
	return &headerPatchedReader{r: r, patch: legacyHeader}
}

func (h *headerPatchedReader) ReadAt(p []byte, off int64) (int, error) {
	n, err := h.r.ReadAt(p, off)
	if off < int64(len(h.patch)) {
		copy(p[:n], h.patch[off:])
	}
	return n, err
}
