package crawler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizerExtract(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.6\n..."), 0o600))

	parser := new(MockMetadataParser)
	parser.On("ParseFile", context.Background(), path).
		Return(Metadata{MetaTitle: "Stub", MetaKeywords: []string{"a", "b"}}, nil)

	record, err := NewNormalizer(parser, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Stub", record.Title)
	assert.Equal(t, "a, b", record.Keywords)
	assert.Equal(t, "1.6", record.PDFVersion)
	assert.Empty(t, record.FilePath)
	parser.AssertExpectations(t)
}

func TestNormalizerExtractParserFailure(t *testing.T) {
	t.Parallel()

	parser := new(MockMetadataParser)
	parser.On("ParseFile", context.Background(), "broken.pdf").Return(nil, errors.New("xref missing"))

	_, err := NewNormalizer(parser, nil).Extract(context.Background(), "broken.pdf")
	require.ErrorIs(t, err, ErrMetadata)
	assert.ErrorContains(t, err, "xref missing")
}
