// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// BuildPDF returns a minimal well-formed PDF with the given header version and
// document information dictionary. Info values may be string or []string; a
// nil info omits the dictionary entirely.
func BuildPDF(version string, info map[string]any) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version)

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [] /Count 0 >>",
	}
	if info != nil {
		objects = append(objects, infoDict(info))
	}

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R", len(objects)+1)
	if info != nil {
		buf.WriteString(" /Info 3 0 R")
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

// WritePDF writes BuildPDF output to dir/name and returns the path.
func WritePDF(t testing.TB, dir, name, version string, info map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, BuildPDF(version, info), 0o600); err != nil {
		t.Fatalf("write pdf fixture: %v", err)
	}
	return path
}

func infoDict(info map[string]any) string {
	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<<")
	for _, k := range keys {
		fmt.Fprintf(&b, " /%s ", k)
		switch v := info[k].(type) {
		case []string:
			b.WriteString("[")
			for i, item := range v {
				if i > 0 {
					b.WriteString(" ")
				}
				b.WriteString(literal(item))
			}
			b.WriteString("]")
		default:
			b.WriteString(literal(fmt.Sprint(v)))
		}
	}
	b.WriteString(" >>")
	return b.String()
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}
