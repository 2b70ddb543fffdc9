package progress

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Recorder validates events and hands each one to every sink synchronously.
// Sink failures are logged and never reach the emitter.
type Recorder struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewRecorder builds a Recorder fanning out to sinks.
func NewRecorder(logger *zap.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		sinks:  append([]Sink(nil), sinks...),
		logger: logger.Named("progress"),
	}
}

// Emit forwards evt to all sinks in registration order.
func (r *Recorder) Emit(ctx context.Context, evt Event) {
	if err := evt.Validate(); err != nil {
		r.logger.Warn("Dropping invalid progress event", zap.String("stage", string(evt.Stage)), zap.Error(err))
		return
	}
	batch := []Event{evt}
	for i, sink := range r.sinks {
		if err := sink.Consume(ctx, batch); err != nil {
			r.logger.Warn("Progress sink failed",
				zap.Int("sink", i),
				zap.String("stage", string(evt.Stage)),
				zap.Error(err),
			)
		}
	}
}

// Close closes every sink and joins their errors.
func (r *Recorder) Close(ctx context.Context) error {
	var errs []error
	for i, sink := range r.sinks {
		if err := sink.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
