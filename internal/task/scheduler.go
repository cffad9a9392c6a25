package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/scry-avatars/internal/domain"
	"github.com/phrazzld/scry-avatars/internal/platform/logger"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// Scheduler periodically dispatches pending tasks to workers. It only
// launches work and never waits on it from the tick loop.
type Scheduler struct {
	queue     *Queue
	processor Processor
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc

	// loop tracks the ticker goroutine, workers the dispatched attempts.
	loop    conc.WaitGroup
	workers conc.WaitGroup
}

// NewScheduler creates a Scheduler for queue. It does not start ticking until
// Start is called.
func NewScheduler(queue *Queue, processor Processor, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		queue:     queue,
		processor: processor,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start begins ticking at the queue's configured interval. Calling Start on a
// running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	interval := s.queue.Config().TickInterval
	s.logger.Info("starting scheduler",
		slog.Duration("tick_interval", interval),
		slog.Int("max_concurrent", s.queue.Config().MaxConcurrent))

	s.loop.Go(func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick()
			}
		}
	})
}

// Stop halts ticking and waits for in-flight workers to record their outcome.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.loop.Wait()
	s.logger.Info("scheduler stopped, waiting for in-flight workers",
		slog.Int("in_flight", s.queue.GetStats().CurrentProcessing))
	s.workers.Wait()
}

// Tick claims as many pending tasks as there are free slots and starts a
// worker for each. It returns the number of dispatched tasks.
func (s *Scheduler) Tick() int {
	claimed := s.queue.claimPending()
	for _, t := range claimed {
		s.workers.Go(func() {
			s.run(t)
		})
	}
	return len(claimed)
}

// Wait blocks until every dispatched worker has finished.
func (s *Scheduler) Wait() {
	s.workers.Wait()
}

// run executes one attempt of t and reports the outcome to the queue.
func (s *Scheduler) run(t AvatarTask) {
	log := s.logger.With(
		slog.String("task_id", t.ID),
		slog.String("user_id", t.UserID),
		slog.Int("attempt", t.Attempts),
		slog.Int("max_attempts", t.MaxAttempts),
	)
	ctx := logger.WithLogger(context.Background(), log)

	if timeout := s.queue.Config().TaskTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log.Info("processing task")
	start := time.Now()

	var err error
	var pc panics.Catcher
	pc.Try(func() {
		err = s.processor.Process(ctx, t)
	})
	if r := pc.Recovered(); r != nil {
		log.Error("worker panicked", slog.Any("panic", r.Value), slog.String("stack", string(r.Stack)))
		err = domain.NewIngestError(domain.KindInternal, fmt.Sprintf("worker panicked: %v", r.Value), nil)
	}

	updated, completeErr := s.queue.complete(t.ID, err)
	if completeErr != nil {
		log.Error("failed to record task outcome", slog.Any("error", completeErr))
		return
	}

	attrs := []any{
		slog.String("status", string(updated.Status)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	}
	switch updated.Status {
	case TaskStatusCompleted:
		log.Info("task completed", attrs...)
	case TaskStatusPending:
		log.Warn("task attempt failed, will retry",
			append(attrs, slog.String("error_kind", string(domain.KindOf(err))), slog.String("error", updated.Error))...)
	default:
		log.Error("task failed permanently",
			append(attrs, slog.String("error_kind", string(domain.KindOf(err))), slog.String("error", updated.Error))...)
	}
}
