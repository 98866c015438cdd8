// Package container tracks the grid container: its measured size, the
// content size written after each render, and the debounced resize signal.
package container

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/scheduler"
)

// Options configures a Manager.
type Options struct {
	Horizontal        bool
	AutoResize        bool
	ResizeDebounce    time.Duration
	MaxResizeDebounce time.Duration
	Scheduler         scheduler.Scheduler
	BoxModel          dom.BoxModel
	Viewport          *Viewport
	Logger            *log.Logger

	// OnResize runs on the scheduler when a debounced resize fires.
	OnResize func()
}

// Manager owns the container element's geometry.
type Manager struct {
	el       *html.Node
	opts     Options
	logger   *log.Logger
	orgStyle dom.StyleSnapshot
	rect     dom.Rect

	resizeTimer scheduler.Timer
	maxTimer    scheduler.Timer
	unsubscribe func()
	destroyed   bool
}

// Status is the serializable container state.
type Status struct {
	Rect dom.Rect `json:"rect"`
}

// NewManager takes over el: it snapshots el's style, makes el a positioning
// context when it has none, measures it and, with AutoResize, subscribes to
// the viewport.
func NewManager(el *html.Node, opts Options) *Manager {
	if opts.Viewport == nil {
		opts.Viewport = DefaultViewport()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.OnResize == nil {
		opts.OnResize = func() {}
	}
	m := &Manager{
		el:       el,
		opts:     opts,
		logger:   opts.Logger,
		orgStyle: dom.SnapshotStyle(el),
	}
	if dom.StyleValue(el, "position") == "" {
		dom.SetStyle(el, "position", "relative")
	}
	m.rect = opts.BoxModel.Measure(el)
	if opts.AutoResize {
		m.unsubscribe = opts.Viewport.Subscribe(func() {
			opts.Scheduler.Post(m.ScheduleResize)
		})
	}
	return m
}

// SetOnResize replaces the debounced resize callback.
func (m *Manager) SetOnResize(fn func()) {
	if fn == nil {
		fn = func() {}
	}
	m.opts.OnResize = fn
}

// Element returns the container element.
func (m *Manager) Element() *html.Node { return m.el }

// Rect returns the last measured rect.
func (m *Manager) Rect() dom.Rect { return m.rect }

// InlineSize returns the last measured size along the inline axis.
func (m *Manager) InlineSize() float64 {
	return inlineSize(m.rect, m.opts.Horizontal)
}

// ContentSize returns the last recorded size along the content axis.
func (m *Manager) ContentSize() float64 {
	if m.opts.Horizontal {
		return m.rect.Width
	}
	return m.rect.Height
}

func inlineSize(r dom.Rect, horizontal bool) float64 {
	if horizontal {
		return r.Height
	}
	return r.Width
}

// Changed reports whether the container's current inline size differs from
// the recorded one, without recording it.
func (m *Manager) Changed() bool {
	return inlineSize(m.opts.BoxModel.Measure(m.el), m.opts.Horizontal) != m.InlineSize()
}

// ChangedFrom reports whether the current inline size differs from st's.
func (m *Manager) ChangedFrom(st Status) bool {
	return inlineSize(m.opts.BoxModel.Measure(m.el), m.opts.Horizontal) != inlineSize(st.Rect, m.opts.Horizontal)
}

// Resize re-measures the container and reports whether its inline size
// changed.
func (m *Manager) Resize() bool {
	prev := m.InlineSize()
	m.rect = m.opts.BoxModel.Measure(m.el)
	return m.InlineSize() != prev
}

// SetContentSize writes the content-axis size onto the container.
func (m *Manager) SetContentSize(size float64) {
	if size < 0 {
		m.logger.Warn("negative content size clamped", "value", size)
		size = 0
	}
	if m.opts.Horizontal {
		dom.SetStyle(m.el, "width", dom.Px(size))
		m.rect.Width = size
		return
	}
	dom.SetStyle(m.el, "height", dom.Px(size))
	m.rect.Height = size
}

// ScheduleResize registers one resize signal. The resize fires once no
// signal arrived for ResizeDebounce, or once MaxResizeDebounce elapsed
// since the first pending signal, whichever comes first.
func (m *Manager) ScheduleResize() {
	if m.destroyed {
		return
	}
	sched := m.opts.Scheduler
	ceiling, debounce := m.opts.MaxResizeDebounce, m.opts.ResizeDebounce
	if m.maxTimer == nil && ceiling > 0 && ceiling >= debounce {
		m.maxTimer = sched.AfterFunc(ceiling, m.fireResize)
	}
	if m.resizeTimer != nil {
		m.resizeTimer.Stop()
	}
	m.resizeTimer = sched.AfterFunc(debounce, m.fireResize)
}

func (m *Manager) fireResize() {
	m.stopTimers()
	if m.destroyed {
		return
	}
	m.logger.Debug("container resize")
	m.opts.OnResize()
}

// PendingResize reports whether a debounced resize is waiting.
func (m *Manager) PendingResize() bool {
	return m.resizeTimer != nil || m.maxTimer != nil
}

func (m *Manager) stopTimers() {
	if m.resizeTimer != nil {
		m.resizeTimer.Stop()
		m.resizeTimer = nil
	}
	if m.maxTimer != nil {
		m.maxTimer.Stop()
		m.maxTimer = nil
	}
}

// Status captures the container state.
func (m *Manager) Status() Status {
	return Status{Rect: m.rect}
}

// SetStatus restores the recorded rect. The container is left untouched
// until the next SetContentSize; the original style snapshot taken at
// construction is kept.
func (m *Manager) SetStatus(st Status) {
	m.rect = st.Rect
}

// Destroy cancels pending resizes, detaches from the viewport and, unless
// preserveUI is set, restores the container's original style.
func (m *Manager) Destroy(preserveUI bool) {
	if m.destroyed {
		return
	}
	m.destroyed = true
	m.stopTimers()
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	if !preserveUI {
		dom.RestoreStyle(m.el, m.orgStyle)
	}
}
