// Package content decides when an item's media has reached a size-stable
// state and re-enters items into the render pipeline when it does.
//
// An item is Ready when it declares its size through hint attributes, opts
// out with the skip hint, or when none of its images is still loading.
// Loading items get a watcher per pending image; once every watched image
// has settled the tracker posts the item back through the scheduler.
//
// Images the [Policy] considers deferred (by default loading="lazy" or the
// prefixed lazy hint) do not hold an item back when the policy mode is
// [LazyImmediate]: the item is Ready at once and is re-entered later when
// the deferred image settles.
package content

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/item"
	"github.com/matzehuels/gridflow/pkg/observability"
	"github.com/matzehuels/gridflow/pkg/scheduler"
)

// Mode selects how deferred images are treated.
type Mode int

const (
	// LazyImmediate treats deferred images as ready and re-renders when
	// they settle.
	LazyImmediate Mode = iota
	// LazyWait waits for deferred images like any other image.
	LazyWait
)

// Policy configures readiness decisions.
type Policy struct {
	Mode Mode

	// IsDeferred reports whether img is lazily loaded. Nil uses
	// [DefaultDeferred] with the tracker's attribute prefix.
	IsDeferred func(img *html.Node) bool
}

// DefaultDeferred returns the default deferred-image predicate.
func DefaultDeferred(prefix string) func(*html.Node) bool {
	return func(img *html.Node) bool {
		if v, _ := dom.Attr(img, "loading"); v == "lazy" {
			return true
		}
		_, ok := dom.Attr(img, prefix+"lazy")
		return ok
	}
}

// Result is the outcome of classifying one item.
type Result struct {
	Ready bool

	// Failed lists images whose current src failed and has not been
	// reported before. Pointing an image at a new src re-arms reporting.
	Failed []*html.Node
}

// Tracker classifies items and watches their pending media.
// All methods must be called from the scheduler's goroutine.
type Tracker struct {
	sched     scheduler.Scheduler
	source    Source
	policy    Policy
	logger    *log.Logger
	onSettled func(*item.Item)

	watches  map[*item.Item]map[*html.Node]func()
	reported map[*html.Node]string
	closed   bool
}

// Options configures a Tracker.
type Options struct {
	Scheduler scheduler.Scheduler
	Source    Source
	Policy    Policy
	Prefix    string
	Logger    *log.Logger

	// OnSettled runs on the scheduler when all watched images of an item
	// have settled.
	OnSettled func(*item.Item)
}

// NewTracker creates a Tracker. A nil Source uses an empty MemorySource.
func NewTracker(opts Options) *Tracker {
	if opts.Source == nil {
		opts.Source = NewMemorySource()
	}
	if opts.Policy.IsDeferred == nil {
		opts.Policy.IsDeferred = DefaultDeferred(opts.Prefix)
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.OnSettled == nil {
		opts.OnSettled = func(*item.Item) {}
	}
	return &Tracker{
		sched:     opts.Scheduler,
		source:    opts.Source,
		policy:    opts.Policy,
		logger:    opts.Logger,
		onSettled: opts.OnSettled,
		watches:   map[*item.Item]map[*html.Node]func(){},
		reported:  map[*html.Node]string{},
	}
}

// Classify decides whether it can be measured now and updates its
// ContentState. Pending images get watchers.
func (t *Tracker) Classify(it *item.Item) Result {
	if it.Element == nil {
		return Result{Ready: true}
	}
	if _, ok := it.HintSize(); ok || it.Skip() {
		it.ContentState = item.Ready
		return Result{Ready: true}
	}

	var res Result
	loading, errored := false, false
	for _, img := range dom.Images(it.Element) {
		switch t.source.State(img) {
		case Complete:
		case Failed:
			errored = true
			src, _ := dom.Attr(img, "src")
			if prev, ok := t.reported[img]; !ok || prev != src {
				t.reported[img] = src
				res.Failed = append(res.Failed, img)
			}
		case Pending:
			if t.policy.Mode == LazyWait || !t.policy.IsDeferred(img) {
				loading = true
			}
			t.watch(it, img)
		}
	}

	switch {
	case loading:
		it.ContentState = item.Loading
		it.UpdateState = item.WaitLoading
	case errored:
		it.ContentState = item.Errored
		res.Ready = true
	default:
		it.ContentState = item.Ready
		res.Ready = true
	}
	return res
}

func (t *Tracker) watch(it *item.Item, img *html.Node) {
	if t.closed {
		return
	}
	w := t.watches[it]
	if w == nil {
		w = map[*html.Node]func(){}
		t.watches[it] = w
	}
	if _, ok := w[img]; ok {
		return
	}
	// Settlement always goes through the scheduler, so the entry is in
	// place before any callback can observe it.
	w[img] = t.source.Watch(img, func(st ImageState) {
		t.sched.Post(func() { t.settle(it, img, st) })
	})
}

func (t *Tracker) settle(it *item.Item, img *html.Node, st ImageState) {
	if t.closed {
		return
	}
	w, ok := t.watches[it]
	if !ok {
		return
	}
	if _, ok := w[img]; !ok {
		return
	}
	delete(w, img)

	src, _ := dom.Attr(img, "src")
	if st == Failed {
		observability.Content().OnContentError(context.Background(), src)
		t.logger.Debug("image failed", "src", src)
	} else {
		observability.Content().OnContentReady(context.Background(), src)
		t.logger.Debug("image loaded", "src", src)
	}

	if len(w) > 0 {
		return
	}
	delete(t.watches, it)
	it.UpdateState = item.NeedUpdate
	t.onSettled(it)
}

func (t *Tracker) watching(it *item.Item) bool {
	return len(t.watches[it]) > 0
}

// Pending returns the number of items with pending watchers.
func (t *Tracker) Pending() int {
	return len(t.watches)
}

// Cancel detaches every watcher of it and drops the failure records of its
// images.
func (t *Tracker) Cancel(it *item.Item) {
	for _, cancel := range t.watches[it] {
		cancel()
	}
	delete(t.watches, it)
	if it.Element != nil {
		for _, img := range dom.Images(it.Element) {
			delete(t.reported, img)
		}
	}
}

// Close detaches all watchers. No callback runs afterwards.
func (t *Tracker) Close() {
	for it := range t.watches {
		t.Cancel(it)
	}
	t.closed = true
}
