// Package scheduler provides the single-threaded cooperative task queue a
// grid runs on. Every grid callback (render passes, debounce timers,
// content-load notifications) executes as a task on one scheduler, so grid
// state is never touched by two goroutines at once.
//
// Two implementations are provided:
//   - [Loop] runs tasks on a dedicated goroutine with real timers.
//   - [Manual] runs tasks when the host calls Flush, with a fake clock
//     advanced explicitly. Tests and host-driven event loops use it.
package scheduler

import "time"

// Scheduler queues tasks for sequential execution.
type Scheduler interface {
	// Post enqueues task to run after every task already queued.
	Post(task func())

	// AfterFunc posts task once d has elapsed.
	AfterFunc(d time.Duration, task func()) Timer

	// Now returns the scheduler's current time.
	Now() time.Time
}

// Timer is a pending AfterFunc task.
type Timer interface {
	// Stop prevents the task from running. It reports whether the call
	// stopped the timer, false if the task already ran or was stopped.
	Stop() bool
}
