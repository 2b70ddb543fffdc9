package crawler

import (
	"fmt"
	"strings"
)

// Document information dictionary keys read by the normalizer.
const (
	MetaTitle        = "Title"
	MetaAuthor       = "Author"
	MetaCreator      = "Creator"
	MetaCreationDate = "CreationDate"
	MetaModDate      = "ModDate"
	MetaSubject      = "Subject"
	MetaKeywords     = "Keywords"
	MetaDescription  = "Description"
	MetaProducer     = "Producer"
)

// KeywordSeparator joins list-valued keywords.
const KeywordSeparator = ", "

// Metadata is the loosely typed document information returned by a parser.
// Any key may be absent, and values may be strings, string lists or other scalars.
type Metadata map[string]any

// Lookup returns the raw value stored under key.
func (m Metadata) Lookup(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// NormalizeMetadata maps parser metadata onto the fixed record schema.
// FilePath is left empty for the caller to fill in.
func NormalizeMetadata(meta Metadata, version string) Record {
	return Record{
		Title:       meta.text(MetaTitle),
		Author:      meta.text(MetaAuthor),
		Creator:     meta.text(MetaCreator),
		Created:     meta.text(MetaCreationDate),
		Modified:    meta.text(MetaModDate),
		Subject:     meta.text(MetaSubject),
		Keywords:    meta.keywords(),
		Description: meta.text(MetaDescription),
		Producer:    meta.text(MetaProducer),
		PDFVersion:  version,
	}
}

func (m Metadata) text(key string) string {
	v, ok := m.Lookup(key)
	if !ok {
		return ""
	}
	return stringify(v)
}

func (m Metadata) keywords() string {
	v, ok := m.Lookup(MetaKeywords)
	if !ok {
		return ""
	}
	switch kw := v.(type) {
	case []string:
		return strings.Join(kw, KeywordSeparator)
	case []any:
		parts := make([]string, 0, len(kw))
		for _, item := range kw {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, KeywordSeparator)
	default:
		return stringify(v)
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
