// Package item defines the Item model: one managed element together with
// its measured box, the geometry a layout strategy assigned to it, and its
// content and render lifecycle states.
//
// Geometry is exposed in direction-agnostic terms. For a vertical grid the
// inline axis is horizontal (left/width) and the content axis is vertical
// (top/height); a horizontal grid swaps them.
package item

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"k8s.io/utils/ptr"

	"github.com/matzehuels/gridflow/pkg/dom"
)

// MountState tracks whether an item has ever been applied.
type MountState int

const (
	Unchecked MountState = iota
	Mounted
	Unmounted
)

// UpdateState tracks whether an item must be measured again.
type UpdateState int

const (
	NeedUpdate UpdateState = iota
	WaitLoading
	Updated
)

// ContentState is the readiness of an item's media.
type ContentState int

const (
	Unknown ContentState = iota
	Loading
	Ready
	Errored
)

func (s ContentState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// CSSRect is the geometry assigned by a layout strategy. Nil fields are
// left to the element's own flow.
type CSSRect struct {
	Top    *float64 `json:"top,omitempty"`
	Left   *float64 `json:"left,omitempty"`
	Width  *float64 `json:"width,omitempty"`
	Height *float64 `json:"height,omitempty"`
}

// Equal reports whether both rects define the same fields with the same values.
func (r CSSRect) Equal(o CSSRect) bool {
	return ptr.Equal(r.Top, o.Top) && ptr.Equal(r.Left, o.Left) &&
		ptr.Equal(r.Width, o.Width) && ptr.Equal(r.Height, o.Height)
}

// Clone returns a deep copy.
func (r CSSRect) Clone() CSSRect {
	return CSSRect{
		Top:    clonePtr(r.Top),
		Left:   clonePtr(r.Left),
		Width:  clonePtr(r.Width),
		Height: clonePtr(r.Height),
	}
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return ptr.To(*p)
}

// Item is one managed element.
type Item struct {
	Key        string
	Element    *html.Node
	Horizontal bool

	// Rect is the last measured box; OrgRect the first one.
	Rect    dom.Rect
	OrgRect dom.Rect
	CSSRect CSSRect

	Measured     bool
	MountState   MountState
	UpdateState  UpdateState
	ContentState ContentState

	// OrgStyle is the element's style attribute before the grid touched it.
	OrgStyle dom.StyleSnapshot

	// Attributes holds the element's attributes under the grid prefix,
	// with the prefix stripped.
	Attributes map[string]string
}

// New creates an Item for el, snapshotting its style and reading prefixed
// attributes.
func New(el *html.Node, horizontal bool, prefix string) *Item {
	it := &Item{
		Key:        uuid.NewString(),
		Element:    el,
		Horizontal: horizontal,
		OrgStyle:   dom.SnapshotStyle(el),
	}
	it.ReadAttributes(prefix)
	return it
}

// ReadAttributes refreshes Attributes from the element.
func (it *Item) ReadAttributes(prefix string) {
	it.Attributes = map[string]string{}
	if it.Element == nil {
		return
	}
	for _, a := range it.Element.Attr {
		if a.Namespace == "" && strings.HasPrefix(a.Key, prefix) {
			it.Attributes[strings.TrimPrefix(a.Key, prefix)] = a.Val
		}
	}
}

// Skip reports whether the item opted out of content tracking.
func (it *Item) Skip() bool {
	_, ok := it.Attributes["skip"]
	return ok
}

// HintSize returns the size declared by the width and height attributes.
func (it *Item) HintSize() (dom.Size, bool) {
	w, errW := strconv.ParseFloat(it.Attributes["width"], 64)
	h, errH := strconv.ParseFloat(it.Attributes["height"], 64)
	if errW != nil || errH != nil {
		return dom.Size{}, false
	}
	return dom.Size{Width: w, Height: h}, true
}

// InlinePos returns the assigned inline position, falling back to the measured one.
func (it *Item) InlinePos() float64 {
	if it.Horizontal {
		return ptr.Deref(it.CSSRect.Top, it.Rect.Top)
	}
	return ptr.Deref(it.CSSRect.Left, it.Rect.Left)
}

// ContentPos returns the assigned content position, falling back to the measured one.
func (it *Item) ContentPos() float64 {
	if it.Horizontal {
		return ptr.Deref(it.CSSRect.Left, it.Rect.Left)
	}
	return ptr.Deref(it.CSSRect.Top, it.Rect.Top)
}

// InlineSize returns the assigned inline size, falling back to the measured one.
func (it *Item) InlineSize() float64 {
	if it.Horizontal {
		return ptr.Deref(it.CSSRect.Height, it.Rect.Height)
	}
	return ptr.Deref(it.CSSRect.Width, it.Rect.Width)
}

// ContentSize returns the assigned content size, falling back to the measured one.
func (it *Item) ContentSize() float64 {
	if it.Horizontal {
		return ptr.Deref(it.CSSRect.Width, it.Rect.Width)
	}
	return ptr.Deref(it.CSSRect.Height, it.Rect.Height)
}

// MeasuredInlineSize ignores assigned geometry.
func (it *Item) MeasuredInlineSize() float64 {
	if it.Horizontal {
		return it.Rect.Height
	}
	return it.Rect.Width
}

// MeasuredContentSize ignores assigned geometry.
func (it *Item) MeasuredContentSize() float64 {
	if it.Horizontal {
		return it.Rect.Width
	}
	return it.Rect.Height
}

func (it *Item) SetInlinePos(v float64) {
	if it.Horizontal {
		it.CSSRect.Top = ptr.To(v)
	} else {
		it.CSSRect.Left = ptr.To(v)
	}
}

func (it *Item) SetContentPos(v float64) {
	if it.Horizontal {
		it.CSSRect.Left = ptr.To(v)
	} else {
		it.CSSRect.Top = ptr.To(v)
	}
}

func (it *Item) SetInlineSize(v float64) {
	if it.Horizontal {
		it.CSSRect.Height = ptr.To(v)
	} else {
		it.CSSRect.Width = ptr.To(v)
	}
}

func (it *Item) SetContentSize(v float64) {
	if it.Horizontal {
		it.CSSRect.Width = ptr.To(v)
	} else {
		it.CSSRect.Height = ptr.To(v)
	}
}
