package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"
)

// Loop is a goroutine-backed Scheduler. Post is safe from any goroutine;
// tasks run in order on the goroutine that called Run.
type Loop struct {
	clock clock.WithDelayedExecution

	mu    sync.Mutex
	tasks []func()
	wake  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a Loop using the real clock.
func NewLoop() *Loop {
	return NewLoopWithClock(clock.RealClock{})
}

// NewLoopWithClock creates a Loop with a custom clock.
func NewLoopWithClock(c clock.WithDelayedExecution) *Loop {
	return &Loop{
		clock: c,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Run executes tasks until ctx is cancelled. Tasks still queued at that
// point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
		for {
			task := l.next()
			if task == nil {
				break
			}
			task()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil
	}
	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return task
}

// Post implements Scheduler.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do posts fn and blocks until it has run, ctx is cancelled, or the loop
// has stopped.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	l.Post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return context.Canceled
	}
}

// Now implements Scheduler.
func (l *Loop) Now() time.Time { return l.clock.Now() }

// AfterFunc implements Scheduler. The task is posted onto the loop when the
// clock fires; a Stop that happens before the posted task runs still wins.
func (l *Loop) AfterFunc(d time.Duration, task func()) Timer {
	t := &loopTimer{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped.CompareAndSwap(false, true) {
				task()
			}
		})
	})
	return t
}

type loopTimer struct {
	timer   clock.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	if !t.stopped.CompareAndSwap(false, true) {
		return false
	}
	t.timer.Stop()
	return true
}
