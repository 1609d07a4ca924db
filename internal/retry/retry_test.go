package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"ptolemies/internal/model"
)

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Options{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return model.NewError(model.ErrStoreUnavailable, "transient", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), DefaultOptions(), func(ctx context.Context) error {
		attempts++
		return model.NewError(model.ErrInvalidQuery, "bad input", nil)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for non-retryable error, got %d", attempts)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, DefaultOptions(), func(ctx context.Context) error {
		t.Fatal("fn should not be called with an already-cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
