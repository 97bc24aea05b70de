package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harukit/echosync/pkg/adapter"
	"github.com/harukit/echosync/pkg/model"
	"github.com/harukit/echosync/pkg/repository"
)

// Config holds the operational tuning parameters of the sync engine
type Config struct {
	PageSize    int
	Concurrency int
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultConfig returns the default tuning parameters
func DefaultConfig() Config {
	return Config{
		PageSize:    100,
		Concurrency: 4,
		MaxAttempts: 5,
		BackoffBase: time.Second,
		BackoffMax:  30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = def.BackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = def.BackoffMax
	}
	return c
}

// Runner is the sync orchestrator. It owns the state machine
// Idle -> Running -> {Completed, Stopped, Failed} and is the only
// writer of the checkpoint. At most one run is active at a time.
type Runner struct {
	client      adapter.HistoryClient
	checkpoints *repository.CheckpointStore
	archive     *repository.Archive
	cfg         Config

	mu            sync.Mutex
	status        model.SyncStatus
	stopRequested bool
	done          chan struct{}
}

// New creates a sync runner. Zero config fields fall back to defaults.
func New(client adapter.HistoryClient, checkpoints *repository.CheckpointStore, archive *repository.Archive, cfg Config) *Runner {
	return &Runner{
		client:      client,
		checkpoints: checkpoints,
		archive:     archive,
		cfg:         cfg.withDefaults(),
		status:      model.SyncStatus{State: model.SyncIdle},
	}
}

// Start begins a sync run in the background. When a run is already
// active it is a no-op that returns the live run's status and false,
// so two starts can never race on the same checkpoint. The given
// context governs the whole run; pass a long-lived one, not a request
// context.
func (x *Runner) Start(ctx context.Context) (model.SyncStatus, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.status.State == model.SyncRunning {
		return x.status, false
	}

	now := time.Now().UTC()
	x.status = model.SyncStatus{
		State:     model.SyncRunning,
		RunID:     uuid.New().String(),
		StartedAt: &now,
	}
	x.stopRequested = false
	x.done = make(chan struct{})

	go x.run(ctx, x.done)

	return x.status, true
}

// Stop requests the active run to stop. The signal is observed at page
// boundaries only; the page in flight runs to completion so the
// checkpoint commit stays all-or-nothing.
func (x *Runner) Stop() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.stopRequested = true
}

// Status returns a copy of the current run status
func (x *Runner) Status() model.SyncStatus {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.status
}

// Wait blocks until the active run finishes or the context is done.
// Returns immediately when no run is active.
func (x *Runner) Wait(ctx context.Context) error {
	x.mu.Lock()
	done := x.done
	x.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *Runner) stopping() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stopRequested
}

func (x *Runner) bump(fn func(*model.Progress)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(&x.status.Progress)
}

func (x *Runner) policy() retryPolicy {
	return retryPolicy{
		maxAttempts: x.cfg.MaxAttempts,
		base:        x.cfg.BackoffBase,
		max:         x.cfg.BackoffMax,
	}
}
