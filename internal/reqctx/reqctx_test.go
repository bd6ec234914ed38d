package reqctx

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestWithRun(t *testing.T) {
	ctx := WithRun(context.Background())
	id := RunID(ctx)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("Expected uuid run id, got %q", id)
	}
	if RunID(ctx) != id {
		t.Error("Expected run id to be stable within a context")
	}
	if RunID(WithRun(context.Background())) == id {
		t.Error("Expected distinct ids per run")
	}
	if RunID(context.Background()) != "unknown" {
		t.Error("Expected placeholder without a run")
	}
}

func TestNewRunError(t *testing.T) {
	base := errors.New("renderer unavailable")
	ctx := WithRun(context.Background())

	err := NewRunError(ctx, base)
	if !errors.Is(err, base) {
		t.Error("Expected RunError to unwrap to the cause")
	}
	var re *RunError
	if !errors.As(err, &re) || re.RunID != RunID(ctx) {
		t.Errorf("Expected RunError with run id, got %v", err)
	}
	if NewRunError(ctx, nil) != nil {
		t.Error("Expected nil error to stay nil")
	}
}
