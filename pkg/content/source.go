package content

import (
	"maps"
	"slices"
	"sync"

	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/dom"
)

// ImageState is the load state of one image.
type ImageState int

const (
	Pending ImageState = iota
	Complete
	Failed
)

func (s ImageState) String() string {
	switch s {
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return "pending"
}

// Source reports image load states. Implementations may invoke watch
// callbacks from any goroutine.
type Source interface {
	State(img *html.Node) ImageState

	// Watch calls fn once when img settles. If img has already settled, fn
	// is called before Watch returns. The returned func detaches fn.
	Watch(img *html.Node, fn func(ImageState)) (cancel func())
}

// MemorySource is a host-driven Source: images without a src are complete,
// every other image is pending until the host calls Load or Fail. A settled
// state belongs to the src the image had at the time; pointing the image at
// another src makes it pending again.
type MemorySource struct {
	mu       sync.Mutex
	states   map[*html.Node]settled
	sizes    map[*html.Node]dom.Size
	watchers map[*html.Node]map[int]func(ImageState)
	seq      int
}

type settled struct {
	src   string
	state ImageState
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		states:   map[*html.Node]settled{},
		sizes:    map[*html.Node]dom.Size{},
		watchers: map[*html.Node]map[int]func(ImageState){},
	}
}

// State implements Source.
func (s *MemorySource) State(img *html.Node) ImageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(img)
}

func (s *MemorySource) stateLocked(img *html.Node) ImageState {
	src, _ := dom.Attr(img, "src")
	if rec, ok := s.states[img]; ok && rec.src == src {
		return rec.state
	}
	if src == "" {
		return Complete
	}
	return Pending
}

// Watch implements Source.
func (s *MemorySource) Watch(img *html.Node, fn func(ImageState)) func() {
	s.mu.Lock()
	if st := s.stateLocked(img); st != Pending {
		s.mu.Unlock()
		fn(st)
		return func() {}
	}
	s.seq++
	id := s.seq
	if s.watchers[img] == nil {
		s.watchers[img] = map[int]func(ImageState){}
	}
	s.watchers[img][id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers[img], id)
	}
}

// Watchers returns the number of callbacks attached to img.
func (s *MemorySource) Watchers(img *html.Node) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[img])
}

// Load marks img complete with the given natural size.
func (s *MemorySource) Load(img *html.Node, width, height float64) {
	s.mu.Lock()
	s.sizes[img] = dom.Size{Width: width, Height: height}
	s.mu.Unlock()
	s.settle(img, Complete)
}

// Fail marks img failed.
func (s *MemorySource) Fail(img *html.Node) {
	s.settle(img, Failed)
}

func (s *MemorySource) settle(img *html.Node, st ImageState) {
	src, _ := dom.Attr(img, "src")
	s.mu.Lock()
	s.states[img] = settled{src: src, state: st}
	fns := s.watchers[img]
	delete(s.watchers, img)
	s.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(fns)) {
		fns[id](st)
	}
}

// NaturalSize implements dom.MediaSizer.
func (s *MemorySource) NaturalSize(img *html.Node) (dom.Size, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateLocked(img) != Complete {
		return dom.Size{}, false
	}
	sz, ok := s.sizes[img]
	return sz, ok
}

var (
	_ Source         = (*MemorySource)(nil)
	_ dom.MediaSizer = (*MemorySource)(nil)
)
