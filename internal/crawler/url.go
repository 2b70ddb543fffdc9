package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DocumentExtension is the case-sensitive path suffix of document links.
const DocumentExtension = ".pdf"

// ParsePageURL validates an absolute http(s) page URL.
func ParsePageURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host in %q", rawURL)
	}
	return u, nil
}

// ResolveDocumentLink resolves href against base and reports whether its path
// ends in DocumentExtension. Fragments are dropped since they never reach the server.
func ResolveDocumentLink(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if !strings.HasSuffix(ref.Path, DocumentExtension) {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String(), true
}

// LocalFilename is the final "/"-delimited segment of a document URL.
// Two URLs sharing a final segment map to the same file.
func LocalFilename(documentURL string) string {
	idx := strings.LastIndex(documentURL, "/")
	return documentURL[idx+1:]
}
