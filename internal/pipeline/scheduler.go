package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Runner executes one batch over the given adapter indexes.
type Runner interface {
	Run(ctx context.Context, indexes []int) Summary
	RegistrySize() int
}

// Scheduler runs successive windows of the adapter registry on an interval,
// wrapping around at the end.
type Scheduler struct {
	runner   Runner
	chunk    int
	interval time.Duration
	logger   *slog.Logger
	next     int
}

func NewScheduler(r Runner, chunk int, interval time.Duration, logger *slog.Logger) *Scheduler {
	if chunk <= 0 {
		chunk = r.RegistrySize()
	}
	return &Scheduler{runner: r, chunk: chunk, interval: interval, logger: logger}
}

// Run fires immediately, then once per interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "interval", s.interval, "chunk", s.chunk)
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	indexes := s.window()
	if len(indexes) == 0 {
		return
	}
	sum := s.runner.Run(ctx, indexes)
	if errors.Is(sum.Err, ErrRunInProgress) {
		s.logger.Info("scheduled run skipped, previous run still active")
		return
	}
	s.next = (s.next + len(indexes)) % s.runner.RegistrySize()
}

// window returns the next chunk of indexes without advancing.
func (s *Scheduler) window() []int {
	size := s.runner.RegistrySize()
	if size == 0 {
		return nil
	}
	n := min(s.chunk, size)
	indexes := make([]int, n)
	for i := range n {
		indexes[i] = (s.next + i) % size
	}
	return indexes
}
