package engine

import (
	"context"
	"time"

	"github.com/law-makers/lotscout/pkg/models"
)

// Renderer turns a URL into rendered markup and visible text after the page's
// JavaScript has run. Implementations hold at most one page at a time.
type Renderer interface {
	// Navigate loads url and waits up to timeout for the page to settle.
	// A timeout is not an error: the markup captured so far is returned with
	// Page.TimedOut set. An error means no document could be captured.
	Navigate(ctx context.Context, url string, timeout time.Duration) (*models.Page, error)

	// Release frees the underlying browser. Safe to call more than once.
	Release() error

	// Name returns the name of the renderer implementation
	Name() string
}

// Factory starts a Renderer scoped to one pipeline run.
type Factory func(ctx context.Context) (Renderer, error)
