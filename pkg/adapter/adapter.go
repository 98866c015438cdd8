// Package adapter is the contract host frameworks use to drive a grid.
//
// A host mounts a grid on a container it owns, pushes prop updates as
// they change and unmounts when the container goes away:
//
//	c := adapter.NewComponent(opts)
//	if err := c.Mount(el, adapter.Props{"gap": 8}); err != nil { ... }
//	c.Update(adapter.Props{"gap": 12})
//	c.Unmount()
//
// Only declared dynamic properties can change after mount; every other
// option is fixed at construction.
package adapter

import (
	"maps"
	"reflect"
	"slices"

	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/grid"
)

// Props maps dynamic property names to values.
type Props map[string]any

// Adapter is implemented once per host framework.
type Adapter interface {
	Mount(container *html.Node, props Props) error
	Update(props Props) error
	Unmount()
}

// Component is the framework-neutral Adapter. It builds a grid on mount,
// forwards changed props through grid.Set and destroys the grid on unmount.
type Component struct {
	opts    grid.Options
	grid    *grid.Grid
	props   Props
	onMount func(*grid.Grid)
}

var _ Adapter = (*Component)(nil)

// NewComponent returns a Component that mounts grids configured by opts.
func NewComponent(opts grid.Options) *Component {
	return &Component{opts: opts}
}

// OnMount registers fn to run right after the grid is constructed, before
// the first render is scheduled. Event subscriptions belong here.
func (c *Component) OnMount(fn func(*grid.Grid)) {
	c.onMount = fn
}

// Grid returns the mounted grid, or nil.
func (c *Component) Grid() *grid.Grid { return c.grid }

// Mount constructs the grid over container, applies props and schedules
// the first render.
func (c *Component) Mount(container *html.Node, props Props) error {
	if c.grid != nil {
		return errors.New(errors.ErrCodeInvalidInput, "component is already mounted")
	}
	g, err := grid.New(container, c.opts)
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(props)) {
		if err := g.Set(name, props[name]); err != nil {
			g.Destroy(grid.DestroyOptions{})
			return err
		}
	}
	c.grid = g
	c.props = maps.Clone(props)
	if c.onMount != nil {
		c.onMount(g)
	}
	g.RenderItems(grid.RenderOptions{})
	return nil
}

// Update forwards the props whose value changed since the last call.
// Props are applied in name order; the first failure stops the update.
func (c *Component) Update(props Props) error {
	if c.grid == nil {
		return errors.New(errors.ErrCodeInvalidInput, "component is not mounted")
	}
	for _, name := range slices.Sorted(maps.Keys(props)) {
		v := props[name]
		if old, ok := c.props[name]; ok && equal(old, v) {
			continue
		}
		if err := c.grid.Set(name, v); err != nil {
			return err
		}
		if c.props == nil {
			c.props = Props{}
		}
		c.props[name] = v
	}
	return nil
}

// Unmount destroys the grid. It is safe to call more than once.
func (c *Component) Unmount() {
	if c.grid == nil {
		return
	}
	c.grid.Destroy(grid.DestroyOptions{})
	c.grid = nil
	c.props = nil
}

// equal compares comparable values; anything else counts as changed and
// is left to the grid's own equality check.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	return t == reflect.TypeOf(b) && t.Comparable() && a == b
}
