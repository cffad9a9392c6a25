// Package task manages avatar ingestion tasks in memory.
//
// A Queue owns every task record and enforces the process-wide concurrency
// ceiling. A Scheduler claims pending tasks oldest first on a fixed tick and
// runs each attempt in its own goroutine through a Processor. Failed attempts
// return the task to pending until MaxAttempts is reached. A Janitor evicts
// completed and failed tasks once they are older than the retention window.
//
// Task state machine:
//
//	pending --dispatch--> processing --success--> completed
//	processing --failure, attempts < max--> pending
//	processing --failure, attempts == max--> failed
package task
