package item

import "github.com/matzehuels/gridflow/pkg/dom"

// Status is the serializable form of an Item. The element binding is not
// part of it; restoring binds statuses to elements by position.
type Status struct {
	Key          string            `json:"key"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	OrgRect      dom.Rect          `json:"orgRect"`
	Rect         dom.Rect          `json:"rect"`
	CSSRect      CSSRect           `json:"cssRect"`
	Measured     bool              `json:"measured"`
	MountState   MountState        `json:"mountState"`
	UpdateState  UpdateState       `json:"updateState"`
	ContentState ContentState      `json:"contentState"`
	OrgStyle     dom.StyleSnapshot `json:"orgStyle"`
}

// Status captures the item.
func (it *Item) Status() Status {
	attrs := make(map[string]string, len(it.Attributes))
	for k, v := range it.Attributes {
		attrs[k] = v
	}
	return Status{
		Key:          it.Key,
		Attributes:   attrs,
		OrgRect:      it.OrgRect,
		Rect:         it.Rect,
		CSSRect:      it.CSSRect.Clone(),
		Measured:     it.Measured,
		MountState:   it.MountState,
		UpdateState:  it.UpdateState,
		ContentState: it.ContentState,
		OrgStyle:     it.OrgStyle,
	}
}

// SetStatus overwrites the item's state. The element binding is kept.
func (it *Item) SetStatus(s Status) {
	it.Key = s.Key
	it.Attributes = make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		it.Attributes[k] = v
	}
	it.OrgRect = s.OrgRect
	it.Rect = s.Rect
	it.CSSRect = s.CSSRect.Clone()
	it.Measured = s.Measured
	it.MountState = s.MountState
	it.UpdateState = s.UpdateState
	it.ContentState = s.ContentState
	it.OrgStyle = s.OrgStyle
}
