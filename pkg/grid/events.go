package grid

import (
	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/item"
)

// RenderCompleteEvent is emitted once per completed render pass.
type RenderCompleteEvent struct {
	IsResize bool

	// Mounted lists items applied for the first time. It is a subset of Updated.
	Mounted []*item.Item

	// Updated lists items re-measured in this pass plus every item whose
	// applied geometry changed.
	Updated []*item.Item
}

// ContentErrorEvent is emitted for each image that failed to load.
type ContentErrorEvent struct {
	// Element is the item's element, Target the failed image.
	Element *html.Node
	Target  *html.Node
	Item    *item.Item

	update func()
	done   bool
}

// Update re-measures the item in one additional render. Calls after the
// first are ignored.
func (e *ContentErrorEvent) Update() {
	if e.done || e.update == nil {
		return
	}
	e.done = true
	e.update()
}

type listener[T any] struct {
	id int
	fn func(T)
}

// listeners is an ordered subscriber list. Unsubscribing during emit is safe.
type listeners[T any] struct {
	next int
	subs []listener[T]
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.next++
	id := l.next
	l.subs = append(l.subs, listener[T]{id: id, fn: fn})
	return func() {
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners[T]) emit(ev T) {
	for _, s := range l.subs {
		s.fn(ev)
	}
}

func (l *listeners[T]) clear() {
	l.subs = nil
}

// OnRenderComplete subscribes fn to render completion. The returned
// function unsubscribes.
func (g *Grid) OnRenderComplete(fn func(RenderCompleteEvent)) func() {
	return g.renderComplete.add(fn)
}

// OnContentError subscribes fn to content errors. The returned function
// unsubscribes.
func (g *Grid) OnContentError(fn func(*ContentErrorEvent)) func() {
	return g.contentError.add(fn)
}
