// Package renderer owns the binding between container children and Items.
// It resolves Items from the DOM, measures them, and writes assigned
// geometry back onto their elements as inline styles.
package renderer

import (
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/item"
)

// Percentage targets.
const (
	PercentPosition = "position"
	PercentSize     = "size"
)

// Options configures a Renderer.
type Options struct {
	Horizontal      bool
	Percentage      []string
	IsEqualSize     bool
	IsConstantSize  bool
	UseTransform    bool
	AttributePrefix string
	BoxModel        dom.BoxModel
	Logger          *log.Logger
}

// Renderer resolves, measures and applies items.
type Renderer struct {
	opts          Options
	logger        *log.Logger
	initialRect   *dom.Rect
	containerRect dom.Rect
}

// Status is the serializable renderer state.
type Status struct {
	InitialRect   *dom.Rect `json:"initialRect,omitempty"`
	ContainerRect dom.Rect  `json:"containerRect"`
}

// New creates a Renderer. BoxModel is required.
func New(opts Options) *Renderer {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Renderer{opts: opts, logger: logger}
}

// SetContainerRect sets the rect used as the base for percentage units.
func (r *Renderer) SetContainerRect(rect dom.Rect) {
	r.containerRect = rect
}

// Status captures the renderer state.
func (r *Renderer) Status() Status {
	st := Status{ContainerRect: r.containerRect}
	if r.initialRect != nil {
		rect := *r.initialRect
		st.InitialRect = &rect
	}
	return st
}

// SetStatus restores the renderer state.
func (r *Renderer) SetStatus(st Status) {
	r.containerRect = st.ContainerRect
	r.initialRect = nil
	if st.InitialRect != nil {
		rect := *st.InitialRect
		r.initialRect = &rect
	}
}

// Diff describes a structural change. Indices refer to the previous list
// (Removed, first of each pair) and the next list (Added, second of each pair).
type Diff struct {
	Added      []int
	Removed    []int
	Maintained [][2]int
	Changed    [][2]int
}

// Empty reports whether the structure is unchanged.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Resolve reconciles prev against the container's current element
// children. Items follow their elements; new elements get new Items.
func (r *Renderer) Resolve(prev []*item.Item, container *html.Node) ([]*item.Item, Diff) {
	index := make(map[*html.Node]int, len(prev))
	for i, it := range prev {
		index[it.Element] = i
	}

	var (
		diff Diff
		next []*item.Item
		kept = make([]bool, len(prev))
	)
	for i, el := range dom.Children(container) {
		if j, ok := index[el]; ok {
			next = append(next, prev[j])
			kept[j] = true
			diff.Maintained = append(diff.Maintained, [2]int{j, i})
			continue
		}
		it := item.New(el, r.opts.Horizontal, r.opts.AttributePrefix)
		next = append(next, it)
		diff.Added = append(diff.Added, i)
	}
	for j, ok := range kept {
		if !ok {
			diff.Removed = append(diff.Removed, j)
		}
	}
	diff.Changed = reordered(diff.Maintained)
	return next, diff
}

// reordered returns the maintained pairs whose relative order changed.
// Maintained is sorted by next index; an item moved when its rank among
// maintained items differs between the two lists.
func reordered(maintained [][2]int) [][2]int {
	prevOrder := make([]int, len(maintained))
	for i, m := range maintained {
		prevOrder[i] = m[0]
	}
	slices.Sort(prevOrder)

	var changed [][2]int
	for rank, m := range maintained {
		if prevOrder[rank] != m[0] {
			changed = append(changed, m)
		}
	}
	return changed
}

// Measure reads each attached item's box. It returns the items measured.
func (r *Renderer) Measure(items []*item.Item, container *html.Node) []*item.Item {
	var measured []*item.Item
	for _, it := range items {
		if it.Element == nil || !dom.Contains(container, it.Element) {
			continue
		}
		if r.opts.IsConstantSize && it.Measured {
			it.UpdateState = item.Updated
			continue
		}

		var rect dom.Rect
		switch size, ok := it.HintSize(); {
		case r.opts.IsEqualSize && r.initialRect != nil:
			rect = dom.Rect{Width: r.initialRect.Width, Height: r.initialRect.Height}
		case ok:
			rect = dom.Rect{Width: size.Width, Height: size.Height}
		default:
			rect = r.opts.BoxModel.Measure(it.Element)
		}

		it.Rect = rect
		if !it.Measured {
			it.OrgRect = rect
			it.Measured = true
		}
		if r.initialRect == nil {
			initial := rect
			r.initialRect = &initial
		}
		it.UpdateState = item.Updated
		measured = append(measured, it)
	}
	return measured
}

var styleOrder = []string{"position", "left", "top", "width", "height", "transform"}

// Apply writes each item's assigned geometry onto its element. Detached
// elements are skipped. Applying the same geometry twice leaves the markup
// unchanged.
func (r *Renderer) Apply(items []*item.Item, container *html.Node) {
	for _, it := range items {
		if it.Element == nil || !dom.Contains(container, it.Element) {
			continue
		}
		styles := r.styles(it)
		order := slices.DeleteFunc(slices.Clone(styleOrder), func(k string) bool {
			_, ok := styles[k]
			return !ok
		})
		dom.SetStyles(it.Element, styles, order)
	}
}

func (r *Renderer) styles(it *item.Item) map[string]string {
	css := it.CSSRect
	out := map[string]string{"position": "absolute"}

	for _, f := range []struct {
		name string
		v    *float64
	}{{"width", css.Width}, {"height", css.Height}} {
		if f.v == nil {
			continue
		}
		v := *f.v
		if v < 0 {
			r.logger.Warn("negative size clamped", "item", it.Key, "prop", f.name, "value", v)
			v = 0
		}
		out[f.name] = r.length(f.name, v, PercentSize)
	}

	if r.opts.UseTransform {
		var left, top float64
		if css.Left != nil {
			left = *css.Left
		}
		if css.Top != nil {
			top = *css.Top
		}
		out["left"], out["top"] = "0px", "0px"
		out["transform"] = "translate(" + dom.Px(left) + ", " + dom.Px(top) + ")"
		return out
	}
	if css.Left != nil {
		out["left"] = r.length("left", *css.Left, PercentPosition)
	}
	if css.Top != nil {
		out["top"] = r.length("top", *css.Top, PercentPosition)
	}
	return out
}

func (r *Renderer) length(prop string, v float64, kind string) string {
	if !slices.Contains(r.opts.Percentage, kind) {
		return dom.Px(v)
	}
	base := r.containerRect.Width
	if prop == "top" || prop == "height" {
		base = r.containerRect.Height
	}
	if base <= 0 {
		return dom.Px(v)
	}
	return dom.Percent(v / base * 100)
}

// Restore writes each element's original style attribute back.
func (r *Renderer) Restore(items []*item.Item) {
	for _, it := range items {
		if it.Element != nil {
			dom.RestoreStyle(it.Element, it.OrgStyle)
		}
	}
}
