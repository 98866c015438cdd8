// Package strategy defines the layout strategy contract and the built-in
// strategies.
//
// A strategy receives the items to place in DOM order, a direction and the
// outline to start from, assigns each item's layout geometry through the
// item's Set* accessors, and returns the resulting outlines. Strategies
// must not touch the DOM and must not change anything but item geometry.
//
// The outline is the edge the items are laid against: the first item of
// each track touches it, and the gap only separates items placed in the
// same call. For direction End the returned End outline, advanced by the
// gap, is a valid starting outline for a later End call that appends more
// items; for Start the returned Start outline plays the same role for
// prepends.
package strategy

import (
	"sort"
	"sync"

	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/item"
)

// Direction is the layout direction.
type Direction string

const (
	// Start lays items out before the outline (prepend).
	Start Direction = "start"
	// End lays items out after the outline (append).
	End Direction = "end"
)

// Outlines are the reference lines before and after a layout, one value
// per track.
type Outlines struct {
	Start []float64 `json:"start"`
	End   []float64 `json:"end"`
}

// Clone returns a deep copy.
func (o Outlines) Clone() Outlines {
	return Outlines{Start: clone(o.Start), End: clone(o.End)}
}

func clone(s []float64) []float64 {
	if s == nil {
		return []float64{}
	}
	return append([]float64(nil), s...)
}

// Env is the container context of a layout call.
type Env struct {
	InlineSize float64
	Gap        float64
	Horizontal bool
}

// Strategy places items.
type Strategy interface {
	Name() string
	Apply(env Env, items []*item.Item, dir Direction, outline []float64) Outlines
}

// Params are strategy parameters, typically decoded from a config file.
type Params map[string]any

// Factory builds a strategy from params.
type Factory func(Params) (Strategy, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a strategy available to New. Registering a name twice
// replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Names lists registered strategies.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New builds the named strategy.
func New(name string, p Params) (Strategy, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidStrategy, "unknown strategy %q (available: %v)", name, Names())
	}
	return f(p)
}

func init() {
	Register("stack", func(Params) (Strategy, error) { return Stack{}, nil })
	Register("masonry", NewMasonry)
}
