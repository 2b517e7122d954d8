package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"testing"
	"time"
)

type fakeRunner struct {
	size  int
	calls [][]int
	err   error
}

func (f *fakeRunner) Run(_ context.Context, indexes []int) Summary {
	f.calls = append(f.calls, indexes)
	return Summary{Err: f.err}
}

func (f *fakeRunner) RegistrySize() int { return f.size }

func TestSchedulerWindows(t *testing.T) {
	r := &fakeRunner{size: 5}
	s := NewScheduler(r, 2, time.Hour, slog.Default())

	for range 4 {
		s.tick(context.Background())
	}
	want := [][]int{{0, 1}, {2, 3}, {4, 0}, {1, 2}}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %v", r.calls)
	}
	for i := range want {
		if !slices.Equal(r.calls[i], want[i]) {
			t.Errorf("window %d = %v, want %v", i, r.calls[i], want[i])
		}
	}
}

func TestSchedulerRetriesSkippedWindow(t *testing.T) {
	r := &fakeRunner{size: 4, err: ErrRunInProgress}
	s := NewScheduler(r, 3, time.Hour, slog.Default())

	s.tick(context.Background())
	r.err = nil
	s.tick(context.Background())
	if !slices.Equal(r.calls[1], []int{0, 1, 2}) {
		t.Errorf("window after skip = %v, want the same window again", r.calls[1])
	}
}

func TestSchedulerWholeRegistry(t *testing.T) {
	r := &fakeRunner{size: 3}
	s := NewScheduler(r, 0, time.Hour, slog.Default())
	s.tick(context.Background())
	if !slices.Equal(r.calls[0], []int{0, 1, 2}) {
		t.Errorf("window = %v, want whole registry", r.calls[0])
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	r := &fakeRunner{size: 1}
	s := NewScheduler(r, 1, time.Hour, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	if len(r.calls) != 1 {
		t.Errorf("calls = %d, want the immediate run only", len(r.calls))
	}
}
