package adapter

import (
	"testing"
	"time"

	"github.com/matzehuels/gridflow/pkg/container"
	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/grid"
	"github.com/matzehuels/gridflow/pkg/scheduler"
)

const markup = `<div><div>a</div><div>b</div></div>`

func newComponent(t *testing.T) (*Component, *scheduler.Manual, *container.Viewport, *int) {
	t.Helper()
	sched := scheduler.NewManual(time.Unix(0, 0))
	vp := container.NewViewport(dom.Size{Width: 400, Height: 300})
	opts := grid.DefaultOptions()
	opts.Scheduler = sched
	opts.Viewport = vp
	renders := new(int)
	c := NewComponent(opts)
	c.OnMount(func(g *grid.Grid) {
		g.OnRenderComplete(func(grid.RenderCompleteEvent) { *renders++ })
	})
	return c, sched, vp, renders
}

func TestComponentLifecycle(t *testing.T) {
	c, sched, vp, renders := newComponent(t)
	el, _ := dom.ParseContainer(markup)
	orig := dom.OuterHTML(el)

	if err := c.Mount(el, Props{"gap": 6}); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	sched.Flush()
	if *renders != 1 {
		t.Fatalf("renders after mount = %d, want 1", *renders)
	}
	if got := dom.StyleValue(dom.Children(el)[1], "top"); got != "24px" {
		t.Errorf("second top = %q, want 24px", got)
	}

	steps := []struct {
		props   Props
		renders int
	}{
		{Props{"gap": 6}, 1},
		{Props{"gap": 6.0}, 1},
		{Props{"defaultDirection": "end"}, 1},
		{Props{"gap": 2}, 2},
		{Props{"gap": 2, "preserveUIOnDestroy": false}, 2},
	}
	for _, s := range steps {
		if err := c.Update(s.props); err != nil {
			t.Fatalf("Update(%v): %v", s.props, err)
		}
		sched.Flush()
		if *renders != s.renders {
			t.Errorf("after Update(%v): renders = %d, want %d", s.props, *renders, s.renders)
		}
	}

	c.Unmount()
	c.Unmount()
	if got := dom.OuterHTML(el); got != orig {
		t.Errorf("markup after unmount:\n got %s\nwant %s", got, orig)
	}
	if vp.Subscribers() != 0 {
		t.Error("viewport subscription leaked")
	}
	if c.Grid() != nil {
		t.Error("grid still attached after unmount")
	}
}

func TestComponentErrors(t *testing.T) {
	c, _, _, _ := newComponent(t)
	el, _ := dom.ParseContainer(markup)

	if err := c.Update(Props{"gap": 1}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Update before mount err = %v", err)
	}
	if err := c.Mount(el, Props{"gap": -1}); !errors.Is(err, errors.ErrCodeInvalidProperty) {
		t.Errorf("Mount with bad prop err = %v", err)
	}
	if c.Grid() != nil {
		t.Error("failed mount left a grid behind")
	}
	if err := c.Mount(el, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.Mount(el, nil); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("double mount err = %v", err)
	}
	if err := c.Update(Props{"unknown": true}); !errors.Is(err, errors.ErrCodeInvalidProperty) {
		t.Errorf("unknown prop err = %v", err)
	}
}
