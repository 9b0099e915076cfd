package tempo

import (
	"context"
	"errors"
	"fmt"
)

// RangeError reports a caller-supplied offset, duration, or configuration
// field outside its valid range. It is always raised as a precondition
// check, before any heavy computation runs.
type RangeError struct {
	Field string
	Msg   string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("tempo: %s: %s", e.Field, e.Msg)
}

var (
	// ErrInsufficientSignal means the onset envelope lacks detectable
	// periodicity: silence, pure noise, or a track shorter than the
	// minimum analyzable window.
	ErrInsufficientSignal = errors.New("tempo: envelope has no detectable periodicity")

	// ErrCancelled means cooperative cancellation was observed between
	// pipeline stages.
	ErrCancelled = errors.New("tempo: analysis cancelled")
)

// checkCancelled maps context cancellation onto ErrCancelled. It is called
// between pipeline stages, never mid-stage.
func checkCancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return nil
}
