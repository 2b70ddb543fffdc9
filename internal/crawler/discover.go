package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// RenderMode selects when the source page goes through a browser.
type RenderMode string

// Render modes.
const (
	RenderOff    RenderMode = "off"
	RenderAuto   RenderMode = "auto"
	RenderAlways RenderMode = "always"
)

// ParseRenderMode maps a config value onto a RenderMode. Empty means off.
func ParseRenderMode(raw string) (RenderMode, error) {
	switch mode := RenderMode(raw); mode {
	case "", RenderOff:
		return RenderOff, nil
	case RenderAuto, RenderAlways:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown render mode %q", raw)
	}
}

// Discoverer finds document links on a single page.
type Discoverer struct {
	fetcher  Fetcher
	renderer Fetcher
	detector Detector
	mode     RenderMode
	logger   *zap.Logger
}

// NewDiscoverer wires a page fetcher to the link extractor.
func NewDiscoverer(fetcher Fetcher, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{fetcher: fetcher, mode: RenderOff, logger: logger.Named("discover")}
}

// WithRenderer enables browser rendering of the source page. In RenderAuto
// mode the page is rendered only when the static fetch yields no links and
// detector flags it as client-rendered.
func (d *Discoverer) WithRenderer(renderer Fetcher, mode RenderMode, detector Detector) *Discoverer {
	if renderer == nil || mode == RenderOff {
		return d
	}
	d.renderer = renderer
	d.mode = mode
	d.detector = detector
	return d
}

// Discover fetches pageURL and returns the absolute document links it contains,
// in document order and without deduplication.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) ([]string, error) {
	base, err := ParsePageURL(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	fetcher := d.fetcher
	if d.mode == RenderAlways {
		fetcher = d.renderer
	}
	resp, err := fetcher.Fetch(ctx, FetchRequest{URL: base.String()})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrDiscovery, pageURL, err)
	}
	links, err := ExtractLinks(resp.Body, base)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrDiscovery, pageURL, err)
	}

	if len(links) == 0 && d.mode == RenderAuto && d.detector != nil && d.detector.NeedsJS(ctx, resp.Body) {
		d.logger.Info("Page looks client-rendered; retrying in browser", zap.String("page", pageURL))
		rendered, err := d.renderer.Fetch(ctx, FetchRequest{URL: base.String()})
		if err != nil {
			return nil, fmt.Errorf("%w: render %s: %w", ErrDiscovery, pageURL, err)
		}
		if links, err = ExtractLinks(rendered.Body, base); err != nil {
			return nil, fmt.Errorf("%w: parse rendered %s: %w", ErrDiscovery, pageURL, err)
		}
		resp = rendered
	}

	d.logger.Info("Found PDF links",
		zap.String("page", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("count", len(links)),
		zap.Strings("links", links),
	)
	return links, nil
}

// ExtractLinks enumerates <a href> targets in body and keeps those whose path
// ends in DocumentExtension, resolved against base.
func ExtractLinks(body []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	links := []string{}
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists {
			return
		}
		if link, ok := ResolveDocumentLink(base, href); ok {
			links = append(links, link)
		}
	})
	return links, nil
}
