package grid

import (
	"math"
	"reflect"

	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

// PropertyKind tags a dynamic property.
type PropertyKind int

const (
	// Property is stored and never triggers a render.
	Property PropertyKind = iota + 1
	// RenderProperty schedules a render when its value changes.
	RenderProperty
)

func (k PropertyKind) String() string {
	switch k {
	case Property:
		return "property"
	case RenderProperty:
		return "renderProperty"
	}
	return "invalid"
}

// PropertyDef declares a dynamic property. A non-nil Default fixes the
// property's type: later values must have that type, or be numbers that
// convert to it without loss.
type PropertyDef struct {
	Name    string
	Kind    PropertyKind
	Default any
}

// Built-in property names.
const (
	PropGap                    = "gap"
	PropDefaultDirection       = "defaultDirection"
	PropRenderOnPropertyChange = "renderOnPropertyChange"
	PropPreserveUIOnDestroy    = "preserveUIOnDestroy"
)

func builtinProperties(o Options) []PropertyDef {
	return []PropertyDef{
		{PropGap, RenderProperty, o.Gap},
		{PropDefaultDirection, Property, o.DefaultDirection},
		{PropRenderOnPropertyChange, Property, o.RenderOnPropertyChange},
		{PropPreserveUIOnDestroy, Property, o.PreserveUIOnDestroy},
	}
}

type propertySlot struct {
	def   PropertyDef
	value any
}

// coerce converts v to the slot's type or fails.
func (s *propertySlot) coerce(v any) (any, error) {
	name := s.def.Name
	switch name {
	case PropGap:
		f, ok := toFloat(v)
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidProperty, "%s must be a number, got %T", name, v)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return nil, errors.New(errors.ErrCodeInvalidProperty, "%s must be >= 0, got %v", name, f)
		}
		return f, nil
	case PropDefaultDirection:
		var d strategy.Direction
		switch x := v.(type) {
		case strategy.Direction:
			d = x
		case string:
			d = strategy.Direction(x)
		default:
			return nil, errors.New(errors.ErrCodeInvalidProperty, "%s must be a direction, got %T", name, v)
		}
		if d != strategy.Start && d != strategy.End {
			return nil, errors.New(errors.ErrCodeInvalidProperty, "%s must be %q or %q, got %q", name, strategy.Start, strategy.End, d)
		}
		return d, nil
	}

	def := s.def.Default
	if def == nil || v == nil {
		return v, nil
	}
	want := reflect.TypeOf(def)
	got := reflect.ValueOf(v)
	if got.Type() == want {
		return v, nil
	}
	if isNumber(want.Kind()) && isNumber(got.Kind()) {
		if cv, ok := convertLossless(got, want); ok {
			return cv, nil
		}
	}
	return nil, errors.New(errors.ErrCodeInvalidProperty, "%s must be %s, got %T", name, want, v)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !isNumber(rv.Kind()) {
		return 0, false
	}
	cv, ok := convertLossless(rv, reflect.TypeOf(float64(0)))
	if !ok {
		return 0, false
	}
	return cv.(float64), true
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}

// convertLossless converts v to t if converting back yields v again.
func convertLossless(v reflect.Value, t reflect.Type) (any, bool) {
	if !v.CanConvert(t) {
		return nil, false
	}
	if isUnsigned(t.Kind()) && !isUnsigned(v.Kind()) && v.Convert(reflect.TypeOf(float64(0))).Float() < 0 {
		return nil, false
	}
	out := v.Convert(t)
	if !out.CanConvert(v.Type()) || out.Convert(v.Type()).Interface() != v.Interface() {
		return nil, false
	}
	if t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64 {
		if f := out.Float(); math.IsNaN(f) {
			return nil, false
		}
	}
	return out.Interface(), true
}

// sameValue is strict equality. Values whose type is not comparable never
// compare equal.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// =============================================================================
// Grid accessors
// =============================================================================

// Properties lists the declared property names in declaration order.
func (g *Grid) Properties() []string {
	return append([]string(nil), g.propNames...)
}

// Get returns the current value of a declared property.
func (g *Grid) Get(name string) (any, error) {
	slot, ok := g.props[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidProperty, "unknown property %q", name)
	}
	return slot.value, nil
}

// Set assigns a declared property. Assigning the current value is a no-op.
// A changed render property schedules a render when renderOnPropertyChange
// is on.
func (g *Grid) Set(name string, v any) error {
	slot, ok := g.props[name]
	if !ok {
		return errors.New(errors.ErrCodeInvalidProperty, "unknown property %q", name)
	}
	cv, err := slot.coerce(v)
	if err != nil {
		return err
	}
	if sameValue(slot.value, cv) {
		return nil
	}
	slot.value = cv
	g.logger.Debug("property changed", "name", name, "value", cv)
	if slot.def.Kind == RenderProperty && g.RenderOnPropertyChange() {
		g.scheduleRender(renderRequest{})
	}
	return nil
}

// Gap returns the gap between items.
func (g *Grid) Gap() float64 {
	v, _ := g.props[PropGap].value.(float64)
	return v
}

// SetGap sets the gap between items.
func (g *Grid) SetGap(v float64) error { return g.Set(PropGap, v) }

// DefaultDirection returns the direction used when a render names none.
func (g *Grid) DefaultDirection() strategy.Direction {
	v, _ := g.props[PropDefaultDirection].value.(strategy.Direction)
	return v
}

// SetDefaultDirection sets the default render direction.
func (g *Grid) SetDefaultDirection(d strategy.Direction) error {
	return g.Set(PropDefaultDirection, d)
}

// RenderOnPropertyChange reports whether changed render properties
// schedule a render.
func (g *Grid) RenderOnPropertyChange() bool {
	v, _ := g.props[PropRenderOnPropertyChange].value.(bool)
	return v
}

// SetRenderOnPropertyChange toggles rendering on property changes.
func (g *Grid) SetRenderOnPropertyChange(v bool) error {
	return g.Set(PropRenderOnPropertyChange, v)
}

// PreserveUIOnDestroy reports whether Destroy keeps applied styles.
func (g *Grid) PreserveUIOnDestroy() bool {
	v, _ := g.props[PropPreserveUIOnDestroy].value.(bool)
	return v
}

// SetPreserveUIOnDestroy toggles keeping applied styles on Destroy.
func (g *Grid) SetPreserveUIOnDestroy(v bool) error {
	return g.Set(PropPreserveUIOnDestroy, v)
}
