package task

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-avatars/internal/redact"
	"golang.org/x/sync/semaphore"
)

// Queue is the in-memory registry of avatar tasks. It is the single owner of
// task records: every status change goes through it under one mutex, and the
// concurrency ceiling is enforced here so that claiming a slot and marking a
// task processing happen together.
type Queue struct {
	mu      sync.Mutex
	tasks   map[string]*AvatarTask
	claimed map[string]struct{}
	seq     uint64

	sem    *semaphore.Weighted
	config Config
	now    func() time.Time
	logger *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithClock overrides the time source.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue creates an empty Queue.
func NewQueue(config Config, logger *slog.Logger, opts ...QueueOption) *Queue {
	config = config.withDefaults()

	q := &Queue{
		tasks:   make(map[string]*AvatarTask),
		claimed: make(map[string]struct{}),
		sem:     semaphore.NewWeighted(int64(config.MaxConcurrent)),
		config:  config,
		now:     time.Now,
		logger:  logger.With("component", "task_queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Config returns the effective configuration.
func (q *Queue) Config() Config {
	return q.config
}

// AddTask registers a pending task and returns its id. It never performs I/O
// and never fails; the source URL is validated later by the worker.
func (q *Queue) AddTask(userID, sourceURL string) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := uuid.NewString()
	for q.tasks[id] != nil {
		id = uuid.NewString()
	}

	now := q.now()
	q.seq++
	q.tasks[id] = &AvatarTask{
		ID:          id,
		UserID:      strings.TrimSpace(userID),
		SourceURL:   strings.TrimSpace(sourceURL),
		Status:      TaskStatusPending,
		MaxAttempts: q.config.MaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
		seq:         q.seq,
	}

	q.logger.Debug("task queued",
		slog.String("task_id", id),
		slog.String("user_id", userID),
		slog.Int("queue_len", len(q.tasks)))

	return id
}

// GetTaskStatus returns a snapshot of the task, or ErrTaskNotFound.
func (q *Queue) GetTaskStatus(taskID string) (AvatarTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return AvatarTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return *t, nil
}

// GetUserLatestTask returns the user's task with the most recent CreatedAt.
// Ties go to the task submitted last. Returns ErrTaskNotFound if the user has
// no tasks. userID is trimmed the same way AddTask trims it.
func (q *Queue) GetUserLatestTask(userID string) (AvatarTask, error) {
	userID = strings.TrimSpace(userID)

	q.mu.Lock()
	defer q.mu.Unlock()

	var latest *AvatarTask
	for _, t := range q.tasks {
		if t.UserID != userID {
			continue
		}
		if latest == nil || newer(t, latest) {
			latest = t
		}
	}
	if latest == nil {
		return AvatarTask{}, fmt.Errorf("%w: no tasks for user %s", ErrTaskNotFound, userID)
	}
	return *latest, nil
}

// GetStats returns aggregate counts.
func (q *Queue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{
		Total:             len(q.tasks),
		CurrentProcessing: len(q.claimed),
		MaxConcurrent:     q.config.MaxConcurrent,
	}
	for _, t := range q.tasks {
		switch t.Status {
		case TaskStatusPending:
			stats.Pending++
		case TaskStatusProcessing:
			stats.Processing++
		case TaskStatusCompleted:
			stats.Completed++
		case TaskStatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// ListTasks returns snapshots of tasks oldest first, restricted to the given
// statuses when any are passed.
func (q *Queue) ListTasks(statuses ...TaskStatus) []AvatarTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	want := make(map[TaskStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}

	out := make([]AvatarTask, 0, len(q.tasks))
	for _, t := range q.tasks {
		if len(want) == 0 || want[t.Status] {
			out = append(out, *t)
		}
	}
	sortOldestFirst(out)
	return out
}

// claimPending moves up to the available number of pending tasks, oldest
// first, into processing. Each claimed task holds one semaphore slot until
// complete is called for it. Claiming counts as the start of an attempt.
func (q *Queue) claimPending() []AvatarTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]AvatarTask, 0)
	for _, t := range q.tasks {
		if t.Status == TaskStatusPending {
			pending = append(pending, *t)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sortOldestFirst(pending)

	now := q.now()
	claimed := make([]AvatarTask, 0, len(pending))
	for _, p := range pending {
		if _, busy := q.claimed[p.ID]; busy {
			continue
		}
		if !q.sem.TryAcquire(1) {
			break
		}

		t := q.tasks[p.ID]
		if err := t.transition(TaskStatusProcessing, now); err != nil {
			q.sem.Release(1)
			q.logger.Error("failed to claim task", slog.String("task_id", t.ID), slog.Any("error", err))
			continue
		}
		t.Attempts++
		q.claimed[t.ID] = struct{}{}
		claimed = append(claimed, *t)
	}

	if len(claimed) > 0 {
		q.logger.Debug("claimed pending tasks",
			slog.Int("claimed", len(claimed)),
			slog.Int("pending", len(pending)-len(claimed)),
			slog.Int("in_flight", len(q.claimed)))
	}
	return claimed
}

// complete records the outcome of the attempt for taskID and releases its
// slot. A failure re-queues the task while attempts remain, otherwise the
// task fails permanently.
func (q *Queue) complete(taskID string, result error) (AvatarTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return AvatarTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if _, held := q.claimed[taskID]; !held {
		return *t, fmt.Errorf("%w: %s is not claimed", ErrInvalidTransition, taskID)
	}

	next := TaskStatusCompleted
	if result != nil {
		next = TaskStatusPending
		if t.Attempts >= t.MaxAttempts {
			next = TaskStatusFailed
		}
	}

	if err := t.transition(next, q.now()); err != nil {
		return *t, err
	}
	if result != nil {
		t.Error = redact.Error(result)
	} else {
		t.Error = ""
	}

	delete(q.claimed, taskID)
	q.sem.Release(1)

	return *t, nil
}

// EvictTerminal deletes completed and failed tasks created more than the
// retention window ago. Pending, processing and claimed tasks are never
// removed. It returns the number of evicted tasks.
func (q *Queue) EvictTerminal(retention time.Duration) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-retention)
	evicted := 0
	for id, t := range q.tasks {
		if !t.Status.IsTerminal() || !t.CreatedAt.Before(cutoff) {
			continue
		}
		if _, held := q.claimed[id]; held {
			continue
		}
		delete(q.tasks, id)
		evicted++
	}
	return evicted
}

// newer reports whether a was created after b.
func newer(a, b *AvatarTask) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.seq > b.seq
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortOldestFirst(tasks []AvatarTask) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].seq < tasks[j].seq
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
