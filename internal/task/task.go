package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Common errors returned by the Queue
var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// transitions lists the allowed next states for each state. Terminal states
// have no entry.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusProcessing},
	TaskStatusProcessing: {TaskStatusPending, TaskStatusCompleted, TaskStatusFailed},
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo reports whether s -> next is allowed.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AvatarTask is a snapshot of one avatar ingestion task. Values returned by
// the Queue are copies; mutating them has no effect on the queue.
type AvatarTask struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	SourceURL   string     `json:"source_url"`
	Status      TaskStatus `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Error       string     `json:"error,omitempty"`

	// seq is the insertion order, used to break createdAt ties.
	seq uint64
}

// transition moves t to next, stamping UpdatedAt.
func (t *AvatarTask) transition(next TaskStatus, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Processor runs the ingestion pipeline for one dispatched task.
type Processor interface {
	// Process performs one attempt. A nil error completes the task; any
	// error is recorded and the task is retried until its attempts are
	// exhausted.
	Process(ctx context.Context, task AvatarTask) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, task AvatarTask) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, task AvatarTask) error {
	return f(ctx, task)
}

// Stats aggregates task counts for observability.
type Stats struct {
	Total             int `json:"total"`
	Pending           int `json:"pending"`
	Processing        int `json:"processing"`
	Completed         int `json:"completed"`
	Failed            int `json:"failed"`
	CurrentProcessing int `json:"current_processing"`
	MaxConcurrent     int `json:"max_concurrent"`
}
