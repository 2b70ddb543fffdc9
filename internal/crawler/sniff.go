package crawler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	headerPrefixLen = 8
	pdfMagic        = "%PDF-"
)

// SniffVersion reads the first bytes of the file at localPath and returns the
// version token after the %PDF- marker. Any failure yields UnknownVersion.
func SniffVersion(localPath string, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix, err := readPrefix(localPath, headerPrefixLen)
	if err != nil {
		logger.Warn("Error in extracting PDF version",
			zap.String("path", localPath),
			zap.Error(err),
		)
		return UnknownVersion
	}
	return VersionFromHeader(prefix)
}

// VersionFromHeader decodes prefix as UTF-8 (each maximal invalid sequence
// becomes one U+FFFD) and extracts the version token following the %PDF- marker.
func VersionFromHeader(prefix []byte) string {
	decoded := decodeReplacing(prefix)
	rest, ok := strings.CutPrefix(decoded, pdfMagic)
	if !ok {
		return UnknownVersion
	}
	return strings.TrimSpace(rest)
}

func readPrefix(path string, n int) ([]byte, error) {
	// #nosec G304 -- path comes from the download store.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	return buf[:read], nil
}

// decodeReplacing decodes b as UTF-8, substituting U+FFFD for every maximal
// subpart of an ill-formed sequence. A lone bad byte yields one replacement,
// as does a truncated multi-byte sequence.
func decodeReplacing(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			size = invalidPrefixLen(b)
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns how many bytes at the start of b form the maximal
// prefix of a well-formed sequence that never completes. It is at least 1.
func invalidPrefixLen(b []byte) int {
	lead := b[0]
	var need int
	lo, hi := byte(0x80), byte(0xBF)
	switch {
	case lead >= 0xC2 && lead <= 0xDF:
		need = 1
	case lead >= 0xE0 && lead <= 0xEF:
		need = 2
		if lead == 0xE0 {
			lo = 0xA0
		} else if lead == 0xED {
			hi = 0x9F
		}
	case lead >= 0xF0 && lead <= 0xF4:
		need = 3
		if lead == 0xF0 {
			lo = 0x90
		} else if lead == 0xF4 {
			hi = 0x8F
		}
	default:
		return 1
	}
	n := 1
	for i := 1; i <= need && i < len(b); i++ {
		if b[i] < lo || b[i] > hi {
			break
		}
		n++
		lo, hi = 0x80, 0xBF
	}
	return n
}
