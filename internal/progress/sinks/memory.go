package sinks

import (
	"context"
	"sync"

	"github.com/JakeFAU/metascan/internal/progress"
)

// MemorySink buffers events for inspection, mainly in tests.
type MemorySink struct {
	mu     sync.RWMutex
	events []progress.Event
	closed bool
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Consume appends the batch.
func (s *MemorySink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

// Close marks the sink closed.
func (s *MemorySink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Events returns a copy of the recorded events.
func (s *MemorySink) Events() []progress.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]progress.Event, len(s.events))
	copy(out, s.events)
	return out
}

// Stages returns the recorded stages in order.
func (s *MemorySink) Stages() []progress.Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]progress.Stage, 0, len(s.events))
	for _, evt := range s.events {
		out = append(out, evt.Stage)
	}
	return out
}

// Closed reports whether Close was called.
func (s *MemorySink) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
