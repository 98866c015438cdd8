package grid

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/container"
	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/item"
	"github.com/matzehuels/gridflow/pkg/scheduler"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

const threeDivs = `<div id="c"><div>a</div><div>b</div><div>c</div></div>`

type harness struct {
	grid     *Grid
	sched    *scheduler.Manual
	viewport *container.Viewport
	source   *content.MemorySource
	events   []RenderCompleteEvent
}

func newHarness(t *testing.T, markup string, mutate func(*Options)) *harness {
	t.Helper()
	el, err := dom.ParseContainer(markup)
	if err != nil {
		t.Fatalf("ParseContainer: %v", err)
	}
	return newHarnessOn(t, el, container.NewViewport(dom.Size{Width: 1280, Height: 720}), mutate)
}

func newHarnessOn(t *testing.T, el *html.Node, vp *container.Viewport, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		sched:    scheduler.NewManual(time.Unix(0, 0)),
		viewport: vp,
		source:   content.NewMemorySource(),
	}
	opts := DefaultOptions()
	opts.Scheduler = h.sched
	opts.Viewport = h.viewport
	opts.Source = h.source
	if mutate != nil {
		mutate(&opts)
	}
	g, err := New(el, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.OnRenderComplete(func(ev RenderCompleteEvent) { h.events = append(h.events, ev) })
	h.grid = g
	return h
}

func (h *harness) render(t *testing.T) RenderCompleteEvent {
	t.Helper()
	before := len(h.events)
	h.grid.RenderItems(RenderOptions{})
	h.sched.Flush()
	if len(h.events) != before+1 {
		t.Fatalf("renders = %d, want %d", len(h.events)-before, 1)
	}
	return h.events[len(h.events)-1]
}

func tops(g *Grid) []string {
	var out []string
	for _, c := range g.Children() {
		out = append(out, dom.StyleValue(c, "top"))
	}
	return out
}

func TestRenderStack(t *testing.T) {
	h := newHarness(t, threeDivs, nil)
	ev := h.render(t)

	if ev.IsResize {
		t.Error("first render should not be a resize")
	}
	if len(ev.Mounted) != 3 || len(ev.Updated) != 3 {
		t.Errorf("mounted=%d updated=%d, want 3 and 3", len(ev.Mounted), len(ev.Updated))
	}
	if got := dom.StyleValue(h.grid.Container(), "height"); got != "54px" {
		t.Errorf("container height = %q, want 54px", got)
	}
	if got := h.grid.Outlines().End; !slices.Equal(got, []float64{54}) {
		t.Errorf("End outline = %v, want [54]", got)
	}
	if got, want := tops(h.grid), []string{"0px", "18px", "36px"}; !slices.Equal(got, want) {
		t.Errorf("tops = %v, want %v", got, want)
	}
	for _, c := range h.grid.Children() {
		if got := dom.StyleValue(c, "position"); got != "absolute" {
			t.Errorf("item position = %q, want absolute", got)
		}
	}
	if h.grid.State() != Idle {
		t.Errorf("state = %v, want idle", h.grid.State())
	}
}

func TestRenderStartDirectionWithGap(t *testing.T) {
	h := newHarness(t, threeDivs, func(o *Options) { o.Gap = 10 })
	h.render(t)
	want := []string{"0px", "28px", "56px"}
	if got := tops(h.grid); !slices.Equal(got, want) {
		t.Fatalf("end tops = %v, want %v", got, want)
	}

	if err := h.grid.SetDefaultDirection(strategy.Start); err != nil {
		t.Fatal(err)
	}
	h.render(t)
	if got := tops(h.grid); !slices.Equal(got, want) {
		t.Errorf("start tops = %v, want %v", got, want)
	}
	if got := h.grid.Outlines(); !slices.Equal(got.Start, []float64{0}) || !slices.Equal(got.End, []float64{74}) {
		t.Errorf("outlines = %+v, want start [0] end [74]", got)
	}
	if got := dom.StyleValue(h.grid.Container(), "height"); got != "74px" {
		t.Errorf("container height = %q, want 74px", got)
	}
}

func TestRenderEmptyContainer(t *testing.T) {
	h := newHarness(t, `<div></div>`, nil)
	ev := h.render(t)
	if len(ev.Updated) != 0 || len(ev.Mounted) != 0 {
		t.Errorf("empty render reported items: %+v", ev)
	}
	if got := dom.StyleValue(h.grid.Container(), "height"); got != "0px" {
		t.Errorf("container height = %q, want 0px", got)
	}
}

func TestRenderCoalescing(t *testing.T) {
	h := newHarness(t, threeDivs, nil)
	h.render(t)

	h.grid.RenderItems(RenderOptions{})
	h.grid.RenderItems(RenderOptions{Direction: strategy.End})
	h.grid.UpdateItems()
	h.grid.Resize()
	if err := h.grid.SetGap(4); err != nil {
		t.Fatal(err)
	}
	if h.grid.State() != RenderScheduled {
		t.Fatalf("state = %v, want renderScheduled", h.grid.State())
	}
	if n := h.sched.Pending(); n != 1 {
		t.Fatalf("posted tasks = %d, want 1", n)
	}
	h.sched.Flush()

	if len(h.events) != 2 {
		t.Fatalf("renders = %d, want 2", len(h.events))
	}
	if !h.events[1].IsResize {
		t.Error("merged request lost the resize flag")
	}
	if got, want := tops(h.grid), []string{"0px", "22px", "44px"}; !slices.Equal(got, want) {
		t.Errorf("tops = %v, want %v", got, want)
	}
}

func TestRenderDuringRenderQueuesFollowUp(t *testing.T) {
	h := newHarness(t, threeDivs, nil)
	calls := 0
	h.grid.OnRenderComplete(func(RenderCompleteEvent) {
		calls++
		if calls == 1 {
			h.grid.RenderItems(RenderOptions{})
			h.grid.RenderItems(RenderOptions{})
		}
	})
	h.grid.RenderItems(RenderOptions{})
	h.sched.Flush()
	if calls != 2 {
		t.Errorf("renders = %d, want 2", calls)
	}
}

func TestProperties(t *testing.T) {
	tests := []struct {
		name       string
		set        func(g *Grid) error
		wantRender bool
		wantCode   errors.Code
	}{
		{"gap same value", func(g *Grid) error { return g.SetGap(0) }, false, ""},
		{"gap same value as int", func(g *Grid) error { return g.Set(PropGap, 0) }, false, ""},
		{"gap changed", func(g *Grid) error { return g.SetGap(10) }, true, ""},
		{"gap changed as int", func(g *Grid) error { return g.Set(PropGap, 10) }, true, ""},
		{"gap negative", func(g *Grid) error { return g.SetGap(-1) }, false, errors.ErrCodeInvalidProperty},
		{"gap wrong type", func(g *Grid) error { return g.Set(PropGap, "10px") }, false, errors.ErrCodeInvalidProperty},
		{"direction is plain property", func(g *Grid) error { return g.SetDefaultDirection(strategy.Start) }, false, ""},
		{"direction from string", func(g *Grid) error { return g.Set(PropDefaultDirection, "start") }, false, ""},
		{"direction invalid", func(g *Grid) error { return g.Set(PropDefaultDirection, "up") }, false, errors.ErrCodeInvalidProperty},
		{"preserveUI is plain property", func(g *Grid) error { return g.SetPreserveUIOnDestroy(true) }, false, ""},
		{"bool wrong type", func(g *Grid) error { return g.Set(PropPreserveUIOnDestroy, 1) }, false, errors.ErrCodeInvalidProperty},
		{"unknown property", func(g *Grid) error { return g.Set("columns", 3) }, false, errors.ErrCodeInvalidProperty},
		{"render disabled", func(g *Grid) error {
			if err := g.SetRenderOnPropertyChange(false); err != nil {
				return err
			}
			return g.SetGap(5)
		}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, threeDivs, nil)
			h.render(t)

			err := tt.set(h.grid)
			if tt.wantCode != "" {
				if !errors.Is(err, tt.wantCode) {
					t.Fatalf("err = %v, want code %s", err, tt.wantCode)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			h.sched.Flush()
			if got := len(h.events) == 2; got != tt.wantRender {
				t.Errorf("rendered = %v, want %v", got, tt.wantRender)
			}
		})
	}
}

func TestUserProperties(t *testing.T) {
	h := newHarness(t, threeDivs, func(o *Options) {
		o.Properties = []PropertyDef{
			{Name: "columns", Kind: RenderProperty, Default: 2},
			{Name: "label", Kind: Property, Default: "grid"},
			{Name: "tags", Kind: RenderProperty},
		}
	})
	h.render(t)

	steps := []struct {
		name    string
		value   any
		renders int
		wantErr bool
	}{
		{"columns", 2.0, 1, false},
		{"columns", 2.5, 1, true},
		{"columns", 3, 2, false},
		{"label", "other", 2, false},
		{"label", 3, 2, true},
		{"tags", []string{"a"}, 3, false},
		{"tags", []string{"a"}, 4, false},
	}
	for _, s := range steps {
		err := h.grid.Set(s.name, s.value)
		if (err != nil) != s.wantErr {
			t.Fatalf("Set(%s, %v) err = %v, wantErr %v", s.name, s.value, err, s.wantErr)
		}
		h.sched.Flush()
		if len(h.events) != s.renders {
			t.Fatalf("after Set(%s, %v): renders = %d, want %d", s.name, s.value, len(h.events), s.renders)
		}
	}
	if v, _ := h.grid.Get("columns"); v != 3 {
		t.Errorf("columns = %v (%T), want int 3", v, v)
	}
	if _, err := h.grid.Get("missing"); !errors.Is(err, errors.ErrCodeInvalidProperty) {
		t.Errorf("Get(missing) err = %v", err)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	src := newHarness(t, threeDivs, nil)
	src.render(t)
	want := dom.OuterHTML(src.grid.Container())

	data, err := json.Marshal(src.grid.Status())
	if err != nil {
		t.Fatal(err)
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatal(err)
	}

	dst := newHarness(t, threeDivs, nil)
	before := dom.OuterHTML(dst.grid.Container())
	if err := dst.grid.SetStatus(st); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if dst.grid.State() != RenderScheduled {
		t.Errorf("state = %v, want render scheduled", dst.grid.State())
	}
	if got := dom.OuterHTML(dst.grid.Container()); got != before {
		t.Errorf("SetStatus touched the DOM before rendering:\n got %s\nwant %s", got, before)
	}
	dst.sched.Flush()

	if len(dst.events) != 1 {
		t.Fatalf("reconciliation renders = %d, want 1", len(dst.events))
	}
	if dst.events[0].IsResize {
		t.Error("reconciliation render on identical content should not be a resize")
	}
	if got := dom.OuterHTML(dst.grid.Container()); got != want {
		t.Errorf("markup after reconciliation:\n got %s\nwant %s", got, want)
	}
	for i, it := range dst.grid.Items() {
		if it.Key != st.Items[i].Key {
			t.Errorf("item %d key = %s, want %s", i, it.Key, st.Items[i].Key)
		}
	}
}

func TestStatusOntoResizedContainer(t *testing.T) {
	src := newHarness(t, threeDivs, nil)
	src.render(t)
	st := src.grid.Status()

	el, _ := dom.ParseContainer(threeDivs)
	dst := newHarnessOn(t, el, container.NewViewport(dom.Size{Width: 800, Height: 600}), nil)
	if err := dst.grid.SetStatus(st); err != nil {
		t.Fatal(err)
	}
	dst.sched.Flush()
	if len(dst.events) != 1 || !dst.events[0].IsResize {
		t.Fatalf("events = %+v, want one resize render", dst.events)
	}
	if n := len(dst.events[0].Updated); n != 3 {
		t.Errorf("updated = %d, want 3", n)
	}
}

func TestSetStatusMismatch(t *testing.T) {
	src := newHarness(t, threeDivs, nil)
	src.render(t)
	st := src.grid.Status()

	dst := newHarness(t, `<div><div>a</div></div>`, nil)
	if err := dst.grid.SetStatus(st); !errors.Is(err, errors.ErrCodeInvalidStatus) {
		t.Errorf("err = %v, want INVALID_STATUS", err)
	}
	dst.grid.Destroy(DestroyOptions{})
	if err := dst.grid.SetStatus(st); !errors.Is(err, errors.ErrCodeDestroyed) {
		t.Errorf("err = %v, want DESTROYED", err)
	}
}

func TestSyncReorder(t *testing.T) {
	h := newHarness(t, threeDivs, nil)
	h.render(t)
	before := h.grid.Items()

	kids := h.grid.Children()
	a, b := kids[0], kids[1]
	el := h.grid.Container()
	el.RemoveChild(b)
	el.InsertBefore(b, a)

	if !h.grid.SyncElements(RenderOptions{}) {
		t.Fatal("SyncElements reported no change after reorder")
	}
	h.sched.Flush()

	items := h.grid.Items()
	if items[0] != before[1] || items[1] != before[0] || items[2] != before[2] {
		t.Error("items did not follow their elements")
	}
	got := []string{dom.StyleValue(a, "top"), dom.StyleValue(b, "top"), dom.StyleValue(kids[2], "top")}
	if want := []string{"18px", "0px", "36px"}; !slices.Equal(got, want) {
		t.Errorf("tops a,b,c = %v, want %v", got, want)
	}
	if last := h.events[len(h.events)-1]; len(last.Updated) != 2 || len(last.Mounted) != 0 {
		t.Errorf("updated=%d mounted=%d, want 2 and 0", len(last.Updated), len(last.Mounted))
	}
	if h.grid.SyncElements(RenderOptions{}) {
		t.Error("second SyncElements reported a change")
	}
}

func TestSyncAddRemove(t *testing.T) {
	h := newHarness(t, threeDivs, nil)
	h.render(t)

	el := h.grid.Container()
	el.RemoveChild(h.grid.Children()[0])
	added := dom.NewElement("div")
	added.AppendChild(&html.Node{Type: html.TextNode, Data: "d"})
	el.AppendChild(added)
	el.AppendChild(dom.NewElement("div", html.Attribute{Key: "data-grid-width", Val: "10"}, html.Attribute{Key: "data-grid-height", Val: "30"}))

	if !h.grid.SyncElements(RenderOptions{}) {
		t.Fatal("SyncElements reported no change")
	}
	h.sched.Flush()

	if got := len(h.grid.Items()); got != 4 {
		t.Fatalf("items = %d, want 4", got)
	}
	if got := h.grid.Outlines().End; !slices.Equal(got, []float64{84}) {
		t.Errorf("End outline = %v, want [84]", got)
	}
	last := h.events[len(h.events)-1]
	if len(last.Mounted) != 2 {
		t.Errorf("mounted = %d, want 2", len(last.Mounted))
	}
	for _, it := range last.Mounted {
		if !slices.Contains(last.Updated, it) {
			t.Error("mounted item missing from updated")
		}
	}
}

func TestDebouncedResize(t *testing.T) {
	tests := []struct {
		name     string
		debounce time.Duration
		ceiling  time.Duration
		signals  []time.Duration
		checks   map[time.Duration]int
	}{
		{
			name:     "trailing",
			debounce: 50 * time.Millisecond,
			signals:  []time.Duration{0, 30, 60, 90},
			checks:   map[time.Duration]int{120: 0, 139: 0, 140: 1, 200: 1},
		},
		{
			name:     "ceiling",
			debounce: 50 * time.Millisecond,
			ceiling:  200 * time.Millisecond,
			signals:  []time.Duration{0, 30, 60, 90, 120, 150, 180, 210, 240},
			checks:   map[time.Duration]int{199: 0, 200: 1, 250: 1, 290: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, threeDivs, func(o *Options) {
				o.ResizeDebounce = tt.debounce
				o.MaxResizeDebounce = tt.ceiling
			})
			h.render(t)
			base := len(h.events)

			var marks []time.Duration
			for _, s := range tt.signals {
				marks = append(marks, s*time.Millisecond)
			}
			for c := range tt.checks {
				marks = append(marks, c*time.Millisecond)
			}
			slices.Sort(marks)
			marks = slices.Compact(marks)

			var now time.Duration
			for _, m := range marks {
				h.sched.Advance(m - now)
				now = m
				if slices.Contains(tt.signals, m/time.Millisecond) {
					h.viewport.Resize(dom.Size{Width: 1000, Height: 720})
					h.sched.Flush()
				}
				if want, ok := tt.checks[m/time.Millisecond]; ok {
					if got := len(h.events) - base; got != want {
						t.Errorf("at %v: renders = %d, want %d", m, got, want)
					}
				}
			}
			for _, ev := range h.events[base:] {
				if !ev.IsResize {
					t.Error("resize render without IsResize")
				}
			}
		})
	}
}

func TestIdleWaitsForResize(t *testing.T) {
	h := newHarness(t, threeDivs, func(o *Options) { o.ResizeDebounce = 50 * time.Millisecond })
	h.render(t)
	if !h.grid.Idle() {
		t.Fatal("grid should be idle after render")
	}
	if got := h.grid.ContentSize(); got != 54 {
		t.Errorf("content size = %v, want 54", got)
	}

	h.viewport.Resize(dom.Size{Width: 1000, Height: 720})
	h.sched.Flush()
	if h.grid.Idle() {
		t.Error("grid should not be idle while a resize is debounced")
	}
	h.sched.Advance(50 * time.Millisecond)
	h.sched.Flush()
	if !h.grid.Idle() {
		t.Errorf("grid should be idle after the resize render, state = %v", h.grid.State())
	}
}

func TestContentErrorUpdate(t *testing.T) {
	markup := `<div><div><img src="a.png"></div><div>b</div></div>`

	t.Run("async failure", func(t *testing.T) {
		h := newHarness(t, markup, nil)
		errs := 0
		h.grid.OnContentError(func(ev *ContentErrorEvent) {
			errs++
			ev.Update()
			ev.Update()
		})
		h.render(t)
		img := dom.Images(h.grid.Container())[0]
		if h.grid.Pending() != 1 {
			t.Fatalf("pending = %d, want 1", h.grid.Pending())
		}

		h.source.Fail(img)
		h.sched.Flush()

		if errs != 1 {
			t.Errorf("content errors = %d, want 1", errs)
		}
		if len(h.events) != 3 {
			t.Errorf("renders = %d, want 3", len(h.events))
		}
		if got := h.grid.Items()[0].ContentState; got != item.Errored {
			t.Errorf("content state = %v, want errored", got)
		}
	})

	t.Run("fallback also fails", func(t *testing.T) {
		h := newHarness(t, markup, nil)
		var srcs []string
		h.grid.OnContentError(func(ev *ContentErrorEvent) {
			src, _ := dom.Attr(ev.Target, "src")
			srcs = append(srcs, src)
			if src == "a.png" {
				dom.SetAttr(ev.Target, "src", "fallback.png")
				ev.Update()
			}
		})
		h.render(t)
		img := dom.Images(h.grid.Container())[0]

		h.source.Fail(img)
		h.sched.Flush()
		if h.grid.Pending() != 1 {
			t.Fatalf("pending = %d, want fallback to be watched", h.grid.Pending())
		}

		h.source.Fail(img)
		h.sched.Flush()
		if want := []string{"a.png", "fallback.png"}; !slices.Equal(srcs, want) {
			t.Errorf("content errors for %v, want %v", srcs, want)
		}
		if h.grid.Pending() != 0 {
			t.Errorf("pending = %d, want 0", h.grid.Pending())
		}
	})

	t.Run("failed before render", func(t *testing.T) {
		h := newHarness(t, markup, nil)
		var got *ContentErrorEvent
		h.grid.OnContentError(func(ev *ContentErrorEvent) {
			got = ev
			ev.Update()
		})
		h.source.Fail(dom.Images(h.grid.Container())[0])
		h.grid.RenderItems(RenderOptions{})
		h.sched.Flush()

		if got == nil {
			t.Fatal("no content error")
		}
		if got.Element != h.grid.Children()[0] || got.Item != h.grid.Items()[0] {
			t.Error("event does not reference the failing item")
		}
		if len(h.events) != 2 {
			t.Errorf("renders = %d, want 2", len(h.events))
		}
	})

	t.Run("no update", func(t *testing.T) {
		h := newHarness(t, markup, nil)
		h.source.Fail(dom.Images(h.grid.Container())[0])
		h.render(t)
		if got := tops(h.grid); !slices.Equal(got, []string{"0px", "0px"}) {
			t.Errorf("tops = %v, want failed item collapsed to 0", got)
		}
	})
}

func TestContentReadiness(t *testing.T) {
	markup := `<div><div><img src="a.png"></div><div>b</div></div>`

	h := newHarness(t, markup, nil)
	first := h.render(t)
	if len(first.Updated) != 1 {
		t.Fatalf("updated = %d, want only the ready item", len(first.Updated))
	}
	if got := h.grid.Items()[0].ContentState; got != item.Loading {
		t.Errorf("content state = %v, want loading", got)
	}

	h.source.Load(dom.Images(h.grid.Container())[0], 100, 40)
	h.sched.Flush()

	if len(h.events) != 2 {
		t.Fatalf("renders = %d, want 2", len(h.events))
	}
	if got := tops(h.grid); !slices.Equal(got, []string{"0px", "40px"}) {
		t.Errorf("tops = %v", got)
	}
	if got := dom.StyleValue(h.grid.Container(), "height"); got != "58px" {
		t.Errorf("container height = %q, want 58px", got)
	}
	if h.grid.Pending() != 0 {
		t.Errorf("pending = %d, want 0", h.grid.Pending())
	}
}

func TestLazyImages(t *testing.T) {
	markup := `<div><div><img loading="lazy" src="a.png"></div><div>b</div></div>`

	h := newHarness(t, markup, nil)
	first := h.render(t)
	if len(first.Mounted) != 2 {
		t.Errorf("mounted = %d, want 2", len(first.Mounted))
	}

	h.source.Load(dom.Images(h.grid.Container())[0], 100, 40)
	h.sched.Flush()
	if len(h.events) != 2 {
		t.Fatalf("renders = %d, want 2", len(h.events))
	}
	if got := h.events[1].Updated; len(got) < 1 || got[0] != h.grid.Items()[0] {
		t.Error("settled lazy item not updated")
	}

	w := newHarness(t, markup, func(o *Options) { o.Content.Mode = content.LazyWait })
	if ev := w.render(t); len(ev.Mounted) != 1 {
		t.Errorf("LazyWait mounted = %d, want 1", len(ev.Mounted))
	}
}

func TestDestroy(t *testing.T) {
	markup := `<div id="c" style="color: red"><div class="x">a</div><div style="margin: 1px">b</div><div><img src="p.png"></div></div>`

	t.Run("restores markup", func(t *testing.T) {
		el, _ := dom.ParseContainer(markup)
		want := dom.OuterHTML(el)
		h := newHarnessOn(t, el, container.NewViewport(dom.Size{Width: 1280, Height: 720}), nil)
		h.render(t)
		if dom.OuterHTML(h.grid.Container()) == want {
			t.Fatal("render did not change markup")
		}
		img := dom.Images(h.grid.Container())[0]

		h.grid.Destroy(DestroyOptions{})
		if got := dom.OuterHTML(h.grid.Container()); got != want {
			t.Errorf("markup after destroy:\n got %s\nwant %s", got, want)
		}
		if h.grid.State() != Destroyed {
			t.Errorf("state = %v", h.grid.State())
		}
		if n := h.viewport.Subscribers(); n != 0 {
			t.Errorf("viewport subscribers = %d, want 0", n)
		}
		if n := h.source.Watchers(img); n != 0 {
			t.Errorf("image watchers = %d, want 0", n)
		}

		h.grid.RenderItems(RenderOptions{})
		h.source.Load(img, 10, 10)
		h.viewport.Resize(dom.Size{Width: 10, Height: 10})
		h.sched.Advance(time.Second)
		if len(h.events) != 1 {
			t.Errorf("renders after destroy = %d", len(h.events)-1)
		}
	})

	t.Run("cancels scheduled render", func(t *testing.T) {
		h := newHarness(t, markup, nil)
		h.grid.RenderItems(RenderOptions{})
		h.grid.Destroy(DestroyOptions{})
		h.sched.Flush()
		if len(h.events) != 0 {
			t.Errorf("renders = %d, want 0", len(h.events))
		}
	})

	for _, viaProperty := range []bool{false, true} {
		name := "preserveUI option"
		if viaProperty {
			name = "preserveUI property"
		}
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, markup, nil)
			h.render(t)
			want := dom.OuterHTML(h.grid.Container())
			if viaProperty {
				if err := h.grid.SetPreserveUIOnDestroy(true); err != nil {
					t.Fatal(err)
				}
				h.grid.Destroy(DestroyOptions{})
			} else {
				h.grid.Destroy(DestroyOptions{PreserveUI: true})
			}
			if got := dom.OuterHTML(h.grid.Container()); got != want {
				t.Errorf("preserved markup changed:\n got %s\nwant %s", got, want)
			}
		})
	}
}

func TestNewValidation(t *testing.T) {
	el, _ := dom.ParseContainer(threeDivs)
	tests := []struct {
		name   string
		el     *html.Node
		mutate func(*Options)
		code   errors.Code
	}{
		{"nil container", nil, nil, errors.ErrCodeInvalidInput},
		{"no scheduler", el, func(o *Options) { o.Scheduler = nil }, errors.ErrCodeInvalidOption},
		{"negative gap", el, func(o *Options) { o.Gap = -2 }, errors.ErrCodeInvalidOption},
		{"bad percentage", el, func(o *Options) { o.Percentage = []string{"margin"} }, errors.ErrCodeInvalidOption},
		{"bad prefix", el, func(o *Options) { o.AttributePrefix = "data grid" }, errors.ErrCodeInvalidOption},
		{"duplicate property", el, func(o *Options) {
			o.Properties = []PropertyDef{{Name: PropGap, Kind: Property}}
		}, errors.ErrCodeInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Scheduler = scheduler.NewManual(time.Unix(0, 0))
			opts.Viewport = container.NewViewport(dom.Size{Width: 100, Height: 100})
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			if _, err := New(tt.el, opts); !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestHorizontalTransformPercentage(t *testing.T) {
	h := newHarness(t, `<div style="height: 200px"><div style="width: 50px">a</div><div style="width: 30px">b</div></div>`, func(o *Options) {
		o.Horizontal = true
		o.Percentage = []string{"position"}
	})
	h.render(t)

	if got := dom.StyleValue(h.grid.Container(), "width"); got != "80px" {
		t.Errorf("container width = %q, want 80px", got)
	}
	kids := h.grid.Children()
	if got := dom.StyleValue(kids[1], "left"); got != "62.5%" {
		t.Errorf("second left = %q, want 62.5%%", got)
	}

	tr := newHarness(t, threeDivs, func(o *Options) { o.UseTransform = true })
	tr.render(t)
	if got := dom.StyleValue(tr.grid.Children()[2], "transform"); got != "translate(0px, 36px)" {
		t.Errorf("transform = %q", got)
	}
}
