package scheduler

import (
	"sort"
	"sync"
	"time"

	testingclock "k8s.io/utils/clock/testing"
)

// Manual is a deterministic Scheduler. Tasks run only inside Flush and
// timers fire only inside Advance, both on the caller's goroutine.
type Manual struct {
	clock *testingclock.FakePassiveClock

	mu     sync.Mutex
	tasks  []func()
	timers []*manualTimer
	seq    int
}

// NewManual creates a Manual scheduler starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{clock: testingclock.NewFakePassiveClock(t)}
}

// Post implements Scheduler.
func (m *Manual) Post(task func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()
}

// Now implements Scheduler.
func (m *Manual) Now() time.Time { return m.clock.Now() }

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, task func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, at: m.clock.Now().Add(d), seq: m.seq, task: task}
	m.timers = append(m.timers, t)
	return t
}

// Pending returns the number of queued tasks.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Flush runs queued tasks, including tasks they post, until the queue is
// empty. It returns the number of tasks run.
func (m *Manual) Flush() int {
	n := 0
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return n
		}
		task := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()

		task()
		n++
	}
}

// Advance moves the clock forward by d. Each timer due within the window
// fires at its deadline, in deadline order, and the queue is flushed after
// each one, so tasks observe the clock at the moment their timer fired.
func (m *Manual) Advance(d time.Duration) {
	end := m.clock.Now().Add(d)
	m.Flush()
	for {
		t := m.nextDue(end)
		if t == nil {
			break
		}
		m.clock.SetTime(t.at)
		m.Post(t.task)
		m.Flush()
	}
	m.clock.SetTime(end)
	m.Flush()
}

func (m *Manual) nextDue(end time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].at.Equal(m.timers[j].at) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].at.Before(m.timers[j].at)
	})
	if len(m.timers) == 0 || m.timers[0].at.After(end) {
		return nil
	}
	t := m.timers[0]
	m.timers = m.timers[1:]
	t.fired = true
	return t
}

type manualTimer struct {
	m     *Manual
	at    time.Time
	seq   int
	task  func()
	fired bool
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.fired {
		return false
	}
	for i, x := range t.m.timers {
		if x == t {
			t.m.timers = append(t.m.timers[:i], t.m.timers[i+1:]...)
			t.fired = true
			return true
		}
	}
	return false
}
