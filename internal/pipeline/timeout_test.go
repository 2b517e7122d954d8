package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeout(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		v, err := withTimeout(context.Background(), time.Second, ErrItemTimeout, func(context.Context) (string, error) {
			return "ok", nil
		})
		if err != nil || v != "ok" {
			t.Errorf("got %q, %v", v, err)
		}
	})

	t.Run("times out and cancels work", func(t *testing.T) {
		cancelled := make(chan struct{})
		_, err := withTimeout(context.Background(), 20*time.Millisecond, ErrItemTimeout, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			close(cancelled)
			return "late", nil
		})
		if !errors.Is(err, ErrItemTimeout) {
			t.Fatalf("err = %v, want ErrItemTimeout", err)
		}
		select {
		case <-cancelled:
		case <-time.After(time.Second):
			t.Error("work context was not cancelled")
		}
	})

	t.Run("parent cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := withTimeout(ctx, time.Second, ErrItemTimeout, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})

	t.Run("panic becomes error", func(t *testing.T) {
		_, err := withTimeout(context.Background(), time.Second, ErrItemTimeout, func(context.Context) (int, error) {
			panic("adapter bug")
		})
		if err == nil {
			t.Error("expected error from panicking work")
		}
	})
}
