package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

// Janitor periodically evicts terminal tasks past the retention window so the
// in-memory registry stays bounded.
type Janitor struct {
	queue     *Queue
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// NewJanitor creates a Janitor using the queue's JanitorInterval and Retention.
func NewJanitor(queue *Queue, logger *slog.Logger) *Janitor {
	cfg := queue.Config()
	return &Janitor{
		queue:     queue,
		interval:  cfg.JanitorInterval,
		retention: cfg.Retention,
		logger:    logger.With("component", "janitor"),
	}
}

// Start begins sweeping. Calling Start twice is a no-op.
func (j *Janitor) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel

	j.wg.Go(func() {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Sweep()
			}
		}
	})
}

// Stop halts sweeping.
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	j.wg.Wait()
}

// Sweep evicts expired terminal tasks once and returns how many were removed.
func (j *Janitor) Sweep() int {
	evicted := j.queue.EvictTerminal(j.retention)
	if evicted > 0 {
		j.logger.Info("evicted expired tasks",
			slog.Int("evicted", evicted),
			slog.Duration("retention", j.retention),
			slog.Int("remaining", j.queue.GetStats().Total))
	}
	return evicted
}
