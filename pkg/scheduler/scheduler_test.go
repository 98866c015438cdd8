package scheduler

import (
	"context"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualPostAndFlush(t *testing.T) {
	m := NewManual(epoch)
	var order []int

	m.Post(func() {
		order = append(order, 1)
		m.Post(func() { order = append(order, 3) })
	})
	m.Post(func() { order = append(order, 2) })

	if m.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", m.Pending())
	}
	if n := m.Flush(); n != 3 {
		t.Errorf("Flush ran %d tasks, want 3", n)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v", order)
	}
}

func TestManualTimers(t *testing.T) {
	m := NewManual(epoch)
	var fired []string
	var at []time.Duration

	record := func(name string) func() {
		return func() {
			fired = append(fired, name)
			at = append(at, m.Now().Sub(epoch))
		}
	}
	m.AfterFunc(30*time.Millisecond, record("b"))
	m.AfterFunc(10*time.Millisecond, record("a"))
	stopped := m.AfterFunc(20*time.Millisecond, record("never"))
	m.AfterFunc(30*time.Millisecond, record("c"))

	if !stopped.Stop() {
		t.Error("Stop on pending timer should report true")
	}
	if stopped.Stop() {
		t.Error("second Stop should report false")
	}

	m.Advance(25 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "a" || at[0] != 10*time.Millisecond {
		t.Fatalf("after 25ms fired=%v at=%v", fired, at)
	}

	m.Advance(5 * time.Millisecond)
	if len(fired) != 3 || fired[1] != "b" || fired[2] != "c" {
		t.Errorf("same deadline should fire in creation order: %v", fired)
	}
	if m.Now().Sub(epoch) != 30*time.Millisecond {
		t.Errorf("Now = %v", m.Now().Sub(epoch))
	}
}

func TestManualTimerScheduledFromTimer(t *testing.T) {
	m := NewManual(epoch)
	count := 0
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			m.AfterFunc(10*time.Millisecond, tick)
		}
	}
	m.AfterFunc(10*time.Millisecond, tick)

	m.Advance(100 * time.Millisecond)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLoop()
	go func() { _ = l.Run(ctx) }()

	var order []int
	for i := range 5 {
		l.Post(func() { order = append(order, i) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v", order)
		}
	}

	fired := make(chan struct{})
	l.AfterFunc(time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	ran := false
	timer := l.AfterFunc(time.Hour, func() { ran = true })
	if !timer.Stop() {
		t.Error("Stop should report true")
	}
	_ = l.Do(ctx, func() {})
	if ran {
		t.Error("stopped timer ran")
	}
}

func TestLoopDoAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop()
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if err := l.Do(context.Background(), func() {}); err == nil {
		t.Error("Do on a stopped loop should fail")
	}
}
