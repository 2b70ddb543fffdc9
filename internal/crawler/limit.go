package crawler

import (
	"context"
	"fmt"
)

// Limiter paces requests, typically per host.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

type limitedFetcher struct {
	next    Fetcher
	limiter Limiter
}

// LimitFetcher makes every call on next wait for limiter first. A nil limiter
// returns next unchanged.
func LimitFetcher(next Fetcher, limiter Limiter) Fetcher {
	if limiter == nil {
		return next
	}
	return &limitedFetcher{next: next, limiter: limiter}
}

func (f *limitedFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	if err := f.limiter.Wait(ctx, req.URL); err != nil {
		return FetchResponse{}, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	return f.next.Fetch(ctx, req)
}
