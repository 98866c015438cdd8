package container

import (
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/gridflow/pkg/dom"
)

// DefaultViewportSize is the initial size of the process-wide viewport.
var DefaultViewportSize = dom.Size{Width: 1280, Height: 720}

var (
	defaultViewport     *Viewport
	defaultViewportOnce sync.Once
)

// DefaultViewport returns the process-wide viewport shared by every
// Manager that does not bring its own.
func DefaultViewport() *Viewport {
	defaultViewportOnce.Do(func() {
		defaultViewport = NewViewport(DefaultViewportSize)
	})
	return defaultViewport
}

// Viewport is the area hosting root containers. One resize signal fans out
// to every subscriber; each subscriber debounces on its own.
type Viewport struct {
	mu   sync.Mutex
	size dom.Size
	subs map[int]func()
	seq  int
}

// NewViewport creates a Viewport of the given size.
func NewViewport(size dom.Size) *Viewport {
	return &Viewport{size: size, subs: map[int]func(){}}
}

// Size implements dom.SizeProvider.
func (v *Viewport) Size() dom.Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

// Subscribe registers fn for resize signals.
func (v *Viewport) Subscribe(fn func()) (unsubscribe func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	id := v.seq
	v.subs[id] = fn
	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.subs, id)
	}
}

// Subscribers returns the number of live subscriptions.
func (v *Viewport) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Resize records a new size and signals every subscriber, even when the
// size is unchanged.
func (v *Viewport) Resize(size dom.Size) {
	v.mu.Lock()
	v.size = size
	ids := slices.Sorted(maps.Keys(v.subs))
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, v.subs[id])
	}
	v.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
