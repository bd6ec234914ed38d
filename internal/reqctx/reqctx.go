// Package reqctx carries the identity of one pipeline run through context.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type key int

const runKey key = 0

// RunContext identifies one Run or ScrapeLots invocation
type RunContext struct {
	RunID     string
	StartTime time.Time
}

// WithRun attaches a fresh run id to ctx
func WithRun(ctx context.Context) context.Context {
	return context.WithValue(ctx, runKey, &RunContext{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
	})
}

// FromContext returns the run attached to ctx, or a placeholder
func FromContext(ctx context.Context) *RunContext {
	if ctx != nil {
		if rc, ok := ctx.Value(runKey).(*RunContext); ok {
			return rc
		}
	}
	return &RunContext{
		RunID:     "unknown",
		StartTime: time.Now(),
	}
}

// RunID is shorthand for FromContext(ctx).RunID
func RunID(ctx context.Context) string {
	return FromContext(ctx).RunID
}

// RunError wraps an error with the run that produced it
type RunError struct {
	RunID string
	Err   error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RunID, e.Err)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError tags err with the run id from ctx. A nil err stays nil.
func NewRunError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &RunError{
		RunID: RunID(ctx),
		Err:   err,
	}
}
