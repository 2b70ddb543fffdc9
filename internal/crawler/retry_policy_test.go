package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(2, 10*time.Millisecond, 100*time.Millisecond)
	generic := errors.New("boom")

	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(generic, 1))
	assert.True(t, p.ShouldRetry(generic, 2))
	assert.False(t, p.ShouldRetry(generic, 3))
	assert.False(t, p.ShouldRetry(context.Canceled, 1))
	assert.False(t, p.ShouldRetry(fmt.Errorf("wrapped: %w", context.DeadlineExceeded), 1))
	assert.True(t, p.ShouldRetry(timeoutErr{timeout: true}, 1))
	assert.False(t, p.ShouldRetry(timeoutErr{timeout: false}, 1))
}

func TestExponentialRetryPolicyZeroRetries(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(-1, 0, 0)
	assert.False(t, p.ShouldRetry(errors.New("boom"), 1))
}

func TestExponentialRetryPolicyBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5, 10*time.Millisecond, 50*time.Millisecond)
	for attempt := 1; attempt <= 5; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 50*time.Millisecond, "attempt %d", attempt)
	}
	first := p.Backoff(1)
	assert.GreaterOrEqual(t, first, 10*time.Millisecond)
	assert.Less(t, first, 20*time.Millisecond)
}
