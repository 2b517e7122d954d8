package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/web3-frozen/unlock-emissions/internal/adapters"
	"github.com/web3-frozen/unlock-emissions/internal/metrics"
	"github.com/web3-frozen/unlock-emissions/internal/store"
)

// IndexKey is the blob key of the protocol index.
const IndexKey = "emissionsProtocolsList"

const (
	defaultConcurrency  = 2
	defaultItemTimeout  = 180 * time.Second
	defaultBatchTimeout = 14 * time.Minute
)

// ProtocolProcessor processes one protocol definition and returns its slug.
type ProtocolProcessor interface {
	Process(ctx context.Context, def adapters.Definition, protocolName string) (string, error)
}

// RunRecorder persists run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, r store.Run) error
}

// Summary describes a finished run. Run never returns an error; a
// batch-level failure is reported and left in Err.
type Summary struct {
	RunID      string
	Selected   []string
	Succeeded  []string
	Failed     []string
	IndexSize  int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Record converts the summary into its stored form.
func (s Summary) Record() store.Run {
	r := store.Run{
		ID:         s.RunID,
		Selected:   s.Selected,
		Succeeded:  s.Succeeded,
		Failed:     s.Failed,
		IndexSize:  s.IndexSize,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
	if s.Err != nil {
		r.Error = s.Err.Error()
	}
	return r
}

// Orchestrator runs batches of adapters with bounded concurrency and merges
// their slugs into the protocol index.
type Orchestrator struct {
	registry adapters.Registry
	proc     ProtocolProcessor
	store    BlobStore
	reporter *Reporter
	logger   *slog.Logger

	concurrency  int
	itemTimeout  time.Duration
	batchTimeout time.Duration
	shuffle      func([]adapters.Entry)
	recorder     RunRecorder

	running  atomic.Bool
	inflight sync.WaitGroup
}

type Option func(*Orchestrator)

func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithItemTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.itemTimeout = d } }

func WithBatchTimeout(d time.Duration) Option { return func(o *Orchestrator) { o.batchTimeout = d } }

// WithShuffle replaces the random ordering of selected adapters.
func WithShuffle(fn func([]adapters.Entry)) Option { return func(o *Orchestrator) { o.shuffle = fn } }

func WithRunRecorder(r RunRecorder) Option { return func(o *Orchestrator) { o.recorder = r } }

func NewOrchestrator(reg adapters.Registry, proc ProtocolProcessor, bs BlobStore, reporter *Reporter, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:     reg,
		proc:         proc,
		store:        bs,
		reporter:     reporter,
		logger:       logger,
		concurrency:  defaultConcurrency,
		itemTimeout:  defaultItemTimeout,
		batchTimeout: defaultBatchTimeout,
		shuffle: func(entries []adapters.Entry) {
			rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegistrySize returns the number of adapters runs can address.
func (o *Orchestrator) RegistrySize() int { return len(o.registry) }

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Run processes the adapters at indexes. Only one run may be active at a
// time; a concurrent call returns immediately with ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context, indexes []int) Summary {
	return o.run(ctx, uuid.NewString(), indexes)
}

// Start launches a run in the background and returns its id. It fails with
// ErrRunInProgress when a run is already active.
func (o *Orchestrator) Start(ctx context.Context, indexes []int) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}
	id := uuid.NewString()
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		o.runLocked(ctx, id, indexes)
	}()
	return id, nil
}

// Wait blocks until every run has finished, including its reporting,
// recording and any batch work abandoned by a timeout, or until ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(ctx context.Context, id string, indexes []int) Summary {
	if !o.running.CompareAndSwap(false, true) {
		o.logger.Warn("batch run rejected", "run_id", id, "error", ErrRunInProgress)
		now := time.Now()
		return Summary{RunID: id, Err: ErrRunInProgress, StartedAt: now, FinishedAt: now}
	}
	o.inflight.Add(1)
	defer o.inflight.Done()
	return o.runLocked(ctx, id, indexes)
}

// runLocked expects the running flag to be held and releases it once the
// batch work has stopped, which may be after the batch timeout fired.
func (o *Orchestrator) runLocked(ctx context.Context, id string, indexes []int) Summary {
	b := &batch{}
	logger := o.logger.With("run_id", id)
	start := time.Now()
	logger.Info("batch run started", "indexes", len(indexes))

	o.inflight.Add(1)
	_, err := withTimeout(ctx, o.batchTimeout, ErrBatchTimeout, func(ctx context.Context) (struct{}, error) {
		defer o.inflight.Done()
		defer o.running.Store(false)
		return struct{}{}, o.process(ctx, indexes, b, logger)
	})

	sum := b.summary()
	sum.RunID = id
	sum.Err = err
	sum.StartedAt = start
	sum.FinishedAt = time.Now()

	metrics.RunDuration.Observe(sum.FinishedAt.Sub(start).Seconds())
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		logger.Error("batch run failed", "error", err)
		o.reporter.Fatal(context.WithoutCancel(ctx), err)
	} else {
		metrics.RunsTotal.WithLabelValues("ok").Inc()
		metrics.RunLastSuccess.SetToCurrentTime()
		logger.Info("batch run finished",
			"succeeded", len(sum.Succeeded),
			"failed", len(sum.Failed),
			"index_size", sum.IndexSize,
			"took", sum.FinishedAt.Sub(start).Round(time.Millisecond),
		)
	}

	if o.recorder != nil {
		if rerr := o.recorder.RecordRun(context.WithoutCancel(ctx), sum.Record()); rerr != nil {
			logger.Error("record run failed", "error", rerr)
		}
	}
	return sum
}

func (o *Orchestrator) process(ctx context.Context, indexes []int, b *batch, logger *slog.Logger) error {
	entries := o.registry.Select(indexes)
	o.shuffle(entries)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	b.setSelected(names)

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for _, e := range entries {
		g.Go(func() error {
			o.processAdapter(ctx, e, b, logger)
			return nil
		})
	}
	_ = g.Wait()

	// An abandoned batch must not touch the index.
	if err := ctx.Err(); err != nil {
		return err
	}

	size, err := o.mergeIndex(ctx, b.slugs())
	// Adapter failures are reported whether or not the merge succeeded.
	o.reporter.Failures(ctx, b.failures())
	if err != nil {
		return fmt.Errorf("merge protocol index: %w", err)
	}
	b.setIndexSize(size)
	metrics.IndexSize.Set(float64(size))
	return nil
}

// processAdapter resolves an adapter's definitions and processes each one
// concurrently, each under its own timeout. It returns once all settle.
func (o *Orchestrator) processAdapter(ctx context.Context, e adapters.Entry, b *batch, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	metrics.AdaptersActive.Inc()
	defer metrics.AdaptersActive.Dec()

	if e.Load == nil {
		logger.Error("adapter has no loader", "adapter", e.Name)
		b.fail(e.Name)
		return
	}
	defs, err := withTimeout(ctx, o.itemTimeout, ErrItemTimeout, func(ctx context.Context) ([]adapters.Definition, error) {
		return e.Load(ctx)
	})
	if err != nil {
		logger.Error("load adapter failed", "adapter", e.Name, "error", err)
		metrics.ProtocolsTotal.WithLabelValues(e.Name, "error").Inc()
		b.fail(e.Name)
		return
	}

	var wg sync.WaitGroup
	for _, def := range defs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			id, err := withTimeout(ctx, o.itemTimeout, ErrItemTimeout, func(ctx context.Context) (string, error) {
				return o.proc.Process(ctx, def, e.Name)
			})
			metrics.ProtocolDuration.WithLabelValues(e.Name).Observe(time.Since(start).Seconds())
			if err != nil {
				logger.Error("storing emissions failed", "adapter", e.Name, "error", err)
				metrics.ProtocolsTotal.WithLabelValues(e.Name, "error").Inc()
				b.fail(e.Name)
				return
			}
			metrics.ProtocolsTotal.WithLabelValues(e.Name, "ok").Inc()
			b.succeed(id)
		}()
	}
	wg.Wait()
}

// mergeIndex adds slugs to the stored protocol index and returns its new
// size. Existing entries are never removed.
func (o *Orchestrator) mergeIndex(ctx context.Context, slugs []string) (int, error) {
	obj, err := o.store.Get(ctx, IndexKey)
	if err != nil {
		return 0, err
	}

	var existing []string
	if obj.Body != "" {
		if err := json.Unmarshal([]byte(obj.Body), &existing); err != nil {
			return 0, fmt.Errorf("decode %s: %w", IndexKey, err)
		}
	}

	index := append(slices.Clone(existing), slugs...)
	slices.Sort(index)
	index = slices.Compact(index)
	if index == nil {
		index = []string{}
	}

	body, err := json.Marshal(index)
	if err != nil {
		return 0, err
	}
	if err := o.store.Put(ctx, IndexKey, string(body)); err != nil {
		return 0, err
	}
	return len(index), nil
}

// batch accumulates the outcome of one run across goroutines.
type batch struct {
	mu        sync.Mutex
	selected  []string
	succeeded []string
	failed    []string
	indexSize int
}

func (b *batch) setSelected(names []string) {
	b.mu.Lock()
	b.selected = names
	b.mu.Unlock()
}

func (b *batch) succeed(slug string) {
	b.mu.Lock()
	b.succeeded = append(b.succeeded, slug)
	b.mu.Unlock()
}

func (b *batch) fail(name string) {
	b.mu.Lock()
	b.failed = append(b.failed, name)
	b.mu.Unlock()
}

func (b *batch) setIndexSize(n int) {
	b.mu.Lock()
	b.indexSize = n
	b.mu.Unlock()
}

func (b *batch) slugs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.succeeded)
}

func (b *batch) failures() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.failed)
}

func (b *batch) summary() Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Summary{
		Selected:  slices.Clone(b.selected),
		Succeeded: slices.Clone(b.succeeded),
		Failed:    slices.Clone(b.failed),
		IndexSize: b.indexSize,
	}
}
