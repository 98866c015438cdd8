package dom

import (
	"strconv"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultLineHeight is the height of one line of text in [FlowBoxModel].
const DefaultLineHeight = 18

// Rect is a measured box in pixels.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Size is a width and height in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoxModel measures elements.
type BoxModel interface {
	Measure(n *html.Node) Rect
}

// SizeProvider reports the size of the area hosting root elements.
type SizeProvider interface {
	Size() Size
}

// MediaSizer reports the natural size of loaded media.
type MediaSizer interface {
	NaturalSize(img *html.Node) (Size, bool)
}

// FixedSize is a constant SizeProvider.
type FixedSize Size

// Size implements SizeProvider.
func (s FixedSize) Size() Size { return Size(s) }

// FlowBoxModel is a block-flow approximation of CSS box sizing:
//   - explicit width/height from inline style, in px or % of the parent
//   - images sized by attributes, else by natural size, else zero
//   - a direct text run is one LineHeight tall
//   - otherwise height is the sum of in-flow element children
//   - width defaults to the parent's width; parentless nodes use the viewport
//
// Absolutely positioned children are out of flow and do not contribute to
// their parent's height. display:none yields an empty box.
type FlowBoxModel struct {
	Viewport   SizeProvider
	LineHeight float64
	Media      MediaSizer
}

// Measure implements BoxModel.
func (m *FlowBoxModel) Measure(n *html.Node) Rect {
	if hidden(n) {
		return Rect{}
	}
	w := m.width(n)
	r := Rect{Width: w, Height: m.height(n, w)}
	if v, pct, ok := ParseLength(StyleValue(n, "top")); ok && !pct {
		r.Top = v
	}
	if v, pct, ok := ParseLength(StyleValue(n, "left")); ok && !pct {
		r.Left = v
	}
	return r
}

func (m *FlowBoxModel) viewport() Size {
	if m.Viewport == nil {
		return Size{}
	}
	return m.Viewport.Size()
}

func (m *FlowBoxModel) lineHeight() float64 {
	if m.LineHeight > 0 {
		return m.LineHeight
	}
	return DefaultLineHeight
}

func (m *FlowBoxModel) parentWidth(n *html.Node) float64 {
	if n.Parent == nil || n.Parent.Type != html.ElementNode {
		return m.viewport().Width
	}
	return m.width(n.Parent)
}

func (m *FlowBoxModel) parentHeight(n *html.Node) (float64, bool) {
	if n.Parent == nil || n.Parent.Type != html.ElementNode {
		return m.viewport().Height, true
	}
	v, pct, ok := ParseLength(StyleValue(n.Parent, "height"))
	if !ok {
		return 0, false
	}
	if pct {
		ph, ok := m.parentHeight(n.Parent)
		return ph * v / 100, ok
	}
	return v, true
}

func (m *FlowBoxModel) width(n *html.Node) float64 {
	if hidden(n) {
		return 0
	}
	if v, pct, ok := ParseLength(StyleValue(n, "width")); ok {
		if pct {
			return m.parentWidth(n) * v / 100
		}
		return v
	}
	if n.DataAtom == atom.Img {
		return m.imageSize(n).Width
	}
	return m.parentWidth(n)
}

func (m *FlowBoxModel) height(n *html.Node, width float64) float64 {
	if hidden(n) {
		return 0
	}
	if v, pct, ok := ParseLength(StyleValue(n, "height")); ok {
		if !pct {
			return v
		}
		if ph, ok := m.parentHeight(n); ok {
			return ph * v / 100
		}
	}
	if n.DataAtom == atom.Img {
		sz := m.imageSize(n)
		if sz.Width > 0 && width != sz.Width {
			return sz.Height * width / sz.Width
		}
		return sz.Height
	}

	var h float64
	if HasText(n) {
		h += m.lineHeight()
	}
	for _, c := range Children(n) {
		if StyleValue(c, "position") == "absolute" {
			continue
		}
		h += m.height(c, m.width(c))
	}
	return h
}

// imageSize resolves an image's size from attributes and natural size,
// preserving aspect ratio when only one dimension is given.
func (m *FlowBoxModel) imageSize(n *html.Node) Size {
	aw, hasW := numAttr(n, "width")
	ah, hasH := numAttr(n, "height")
	if hasW && hasH {
		return Size{aw, ah}
	}

	var nat Size
	var hasNat bool
	if m.Media != nil {
		nat, hasNat = m.Media.NaturalSize(n)
	}
	switch {
	case !hasNat || nat.Width <= 0 || nat.Height <= 0:
		return Size{aw, ah}
	case hasW:
		return Size{aw, nat.Height * aw / nat.Width}
	case hasH:
		return Size{nat.Width * ah / nat.Height, ah}
	}
	return nat
}

func numAttr(n *html.Node, key string) (float64, bool) {
	s, ok := Attr(n, key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func hidden(n *html.Node) bool {
	if _, ok := Attr(n, "hidden"); ok {
		return true
	}
	return StyleValue(n, "display") == "none"
}
