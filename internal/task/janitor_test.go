package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_Sweep(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxAttempts = 1
	q, clock := newTestQueue(t, cfg)
	j := NewJanitor(q, discardLogger())

	done := q.AddTask("u1", "https://a.example.com")
	failed := q.AddTask("u2", "https://a.example.com")
	q.claimPending()
	_, err := q.complete(done, nil)
	require.NoError(t, err)
	_, err = q.complete(failed, errors.New("boom"))
	require.NoError(t, err)
	waiting := q.AddTask("u3", "https://a.example.com")

	clock.Advance(23 * time.Hour)
	assert.Equal(t, 0, j.Sweep(), "inside retention window")

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 2, j.Sweep())
	assert.Equal(t, 0, j.Sweep())

	task, err := q.GetTaskStatus(waiting)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPending, task.Status)
}

func TestJanitor_StartStop(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.JanitorInterval = 5 * time.Millisecond
	cfg.Retention = time.Hour
	q, clock := newTestQueue(t, cfg)

	id := q.AddTask("u1", "https://a.example.com")
	q.claimPending()
	_, err := q.complete(id, nil)
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	j := NewJanitor(q, discardLogger())
	j.Start()
	j.Start() // no-op

	require.Eventually(t, func() bool {
		return q.GetStats().Total == 0
	}, 2*time.Second, 5*time.Millisecond)

	j.Stop()
	j.Stop() // no-op
}
