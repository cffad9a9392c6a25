package task

import "time"

// Config holds the queue, scheduler and janitor settings.
type Config struct {
	// TickInterval is how often the scheduler dispatches pending tasks.
	TickInterval time.Duration

	// MaxConcurrent caps the number of tasks in processing, process-wide.
	MaxConcurrent int

	// MaxAttempts is the retry ceiling stamped on each task at submission.
	MaxAttempts int

	// JanitorInterval is how often terminal tasks are swept.
	JanitorInterval time.Duration

	// Retention is how long terminal tasks are kept after creation.
	Retention time.Duration

	// TaskTimeout bounds a single attempt. Zero means no deadline beyond
	// the fetch timeout.
	TaskTimeout time.Duration
}

// DefaultConfig returns a Config with the standard settings
func DefaultConfig() Config {
	return Config{
		TickInterval:    2 * time.Second,
		MaxConcurrent:   15,
		MaxAttempts:     3,
		JanitorInterval: time.Hour,
		Retention:       24 * time.Hour,
	}
}

// withDefaults replaces non-positive values with defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.JanitorInterval <= 0 {
		c.JanitorInterval = d.JanitorInterval
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.TaskTimeout < 0 {
		c.TaskTimeout = 0
	}
	return c
}
