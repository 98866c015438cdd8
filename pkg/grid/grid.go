// Package grid implements the grid controller: it owns the items of one
// container element, runs the render pipeline on a cooperative scheduler
// and exposes dynamic properties, status snapshots and render events.
//
// # Render pipeline
//
// Every trigger (structural sync, a changed render property, a debounced
// container resize, content becoming ready, an explicit render call, a
// status restore) merges into one pending request and posts at most one
// render task. A pass then:
//
//  1. resolves items from the container children when a sync is pending,
//  2. re-measures the container; an inline size change marks the pass as
//     a resize and every item as needing an update,
//  3. classifies items that are not up to date through the content tracker,
//  4. emits ContentError events for newly failed images,
//  5. measures the ready items,
//  6. runs the strategy over every laid-out item in DOM order,
//  7. writes the container content size and applies item geometry,
//  8. emits RenderComplete.
//
// Triggers raised while a pass runs queue exactly one follow-up pass.
//
// # Threading
//
// A Grid is not safe for concurrent use. All methods and all event
// handlers run on the scheduler's goroutine.
package grid

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/container"
	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/item"
	"github.com/matzehuels/gridflow/pkg/observability"
	"github.com/matzehuels/gridflow/pkg/renderer"
	"github.com/matzehuels/gridflow/pkg/scheduler"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

// State is the controller's render state.
type State int

const (
	Idle State = iota
	RenderScheduled
	Rendering
	Destroyed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RenderScheduled:
		return "renderScheduled"
	case Rendering:
		return "rendering"
	case Destroyed:
		return "destroyed"
	}
	return "unknown"
}

// RenderOptions parameterize an explicit render.
type RenderOptions struct {
	// UseResize forces a full re-measure of every item.
	UseResize bool
	// Direction overrides the defaultDirection property.
	Direction strategy.Direction
	// Outline overrides the outline the strategy starts from.
	Outline []float64
}

// DestroyOptions parameterize Destroy.
type DestroyOptions struct {
	// PreserveUI keeps the applied styles. The preserveUIOnDestroy
	// property has the same effect.
	PreserveUI bool
}

// Status is the serializable grid state.
type Status struct {
	Items            []item.Status     `json:"items"`
	Outlines         strategy.Outlines `json:"outlines"`
	ContainerManager container.Status  `json:"containerManager"`
	ItemRenderer     renderer.Status   `json:"itemRenderer"`
}

// renderRequest is the merged state of every trigger since the last pass.
type renderRequest struct {
	useResize bool
	sync      bool
	direction strategy.Direction
	outline   []float64
}

func (r *renderRequest) merge(o renderRequest) {
	r.useResize = r.useResize || o.useResize
	r.sync = r.sync || o.sync
	if o.direction != "" {
		r.direction = o.direction
	}
	if o.outline != nil {
		r.outline = o.outline
	}
}

// Grid lays out the element children of one container.
type Grid struct {
	el       *html.Node
	opts     Options
	logger   *log.Logger
	sched    scheduler.Scheduler
	strategy strategy.Strategy
	renderer ItemRenderer
	manager  ContainerManager
	tracker  *content.Tracker

	props     map[string]*propertySlot
	propNames []string

	items    []*item.Item
	resolved bool
	outlines strategy.Outlines

	state    State
	req      renderRequest
	followUp bool
	requeue  []*item.Item

	renderComplete listeners[RenderCompleteEvent]
	contentError   listeners[*ContentErrorEvent]
}

// New creates a grid over el. Nothing is rendered until a trigger fires;
// call RenderItems for the first layout.
func New(el *html.Node, opts Options) (*Grid, error) {
	if el == nil || el.Type != html.ElementNode {
		return nil, errors.New(errors.ErrCodeInvalidInput, "container must be an element")
	}
	if opts.DefaultDirection == "" {
		opts.DefaultDirection = strategy.End
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Viewport == nil {
		opts.Viewport = container.DefaultViewport()
	}
	if opts.Source == nil {
		opts.Source = content.NewMemorySource()
	}
	if opts.Media == nil {
		if m, ok := opts.Source.(dom.MediaSizer); ok {
			opts.Media = m
		}
	}
	if opts.BoxModel == nil {
		opts.BoxModel = &dom.FlowBoxModel{
			Viewport:   opts.Viewport,
			LineHeight: dom.DefaultLineHeight,
			Media:      opts.Media,
		}
	}

	g := &Grid{
		el:       el,
		opts:     opts,
		logger:   opts.Logger,
		sched:    opts.Scheduler,
		strategy: opts.Strategy,
		props:    map[string]*propertySlot{},
		outlines: strategy.Outlines{Start: []float64{}, End: []float64{}},
	}
	for _, def := range append(builtinProperties(opts), opts.Properties...) {
		g.props[def.Name] = &propertySlot{def: def, value: def.Default}
		g.propNames = append(g.propNames, def.Name)
	}

	g.tracker = content.NewTracker(content.Options{
		Scheduler: opts.Scheduler,
		Source:    opts.Source,
		Policy:    opts.Content,
		Prefix:    opts.AttributePrefix,
		Logger:    opts.Logger,
		OnSettled: func(*item.Item) { g.scheduleRender(renderRequest{}) },
	})

	if opts.ExternalItemRenderer != nil {
		g.renderer = opts.ExternalItemRenderer
	} else {
		g.renderer = renderer.New(renderer.Options{
			Horizontal:      opts.Horizontal,
			Percentage:      opts.Percentage,
			IsEqualSize:     opts.IsEqualSize,
			IsConstantSize:  opts.IsConstantSize,
			UseTransform:    opts.UseTransform,
			AttributePrefix: opts.AttributePrefix,
			BoxModel:        opts.BoxModel,
			Logger:          opts.Logger,
		})
	}

	onResize := func() { g.scheduleRender(renderRequest{useResize: true}) }
	if opts.ExternalContainerManager != nil {
		g.manager = opts.ExternalContainerManager
		g.manager.SetOnResize(onResize)
	} else {
		g.manager = container.NewManager(el, container.Options{
			Horizontal:        opts.Horizontal,
			AutoResize:        opts.AutoResize,
			ResizeDebounce:    opts.ResizeDebounce,
			MaxResizeDebounce: opts.MaxResizeDebounce,
			Scheduler:         opts.Scheduler,
			BoxModel:          opts.BoxModel,
			Viewport:          opts.Viewport,
			Logger:            opts.Logger,
			OnResize:          onResize,
		})
	}
	g.renderer.SetContainerRect(g.manager.Rect())
	return g, nil
}

// =============================================================================
// Scheduling
// =============================================================================

func (g *Grid) scheduleRender(req renderRequest) {
	if g.state == Destroyed {
		return
	}
	g.req.merge(req)
	switch g.state {
	case Idle:
		g.state = RenderScheduled
		g.sched.Post(g.runRender)
	case Rendering:
		g.followUp = true
	}
}

func (g *Grid) runRender() {
	if g.state != RenderScheduled {
		return
	}
	req := g.req
	g.req = renderRequest{}
	g.state = Rendering

	g.render(req)
	if g.state == Destroyed {
		return
	}

	for _, it := range g.requeue {
		it.UpdateState = item.NeedUpdate
		g.followUp = true
	}
	g.requeue = nil

	g.state = Idle
	if g.followUp {
		g.followUp = false
		g.state = RenderScheduled
		g.sched.Post(g.runRender)
	}
}

// =============================================================================
// Render pass
// =============================================================================

func (g *Grid) render(req renderRequest) {
	start := g.sched.Now()
	ctx := context.Background()

	if req.sync || !g.resolved {
		g.resolve()
	}

	isResize := req.useResize
	if g.manager.Resize() {
		isResize = true
	}
	if isResize {
		for _, it := range g.items {
			it.UpdateState = item.NeedUpdate
		}
	}
	observability.Render().OnRenderStart(ctx, len(g.items), isResize)

	attached := g.attached()

	var (
		ready  []*item.Item
		failed []*ContentErrorEvent
	)
	for _, it := range attached {
		if it.UpdateState == item.Updated {
			continue
		}
		res := g.tracker.Classify(it)
		for _, img := range res.Failed {
			failed = append(failed, g.contentErrorEvent(it, img))
		}
		if res.Ready {
			ready = append(ready, it)
		}
	}
	for _, ev := range failed {
		g.contentError.emit(ev)
		if g.state == Destroyed {
			return
		}
	}

	measured := g.renderer.Measure(ready, g.el)

	var laid []*item.Item
	prev := make(map[*item.Item]item.CSSRect, len(attached))
	for _, it := range attached {
		if it.UpdateState == item.Updated {
			laid = append(laid, it)
			prev[it] = it.CSSRect.Clone()
		}
	}

	dir := req.direction
	if dir == "" {
		dir = g.DefaultDirection()
	}
	env := strategy.Env{
		InlineSize: g.manager.InlineSize(),
		Gap:        g.Gap(),
		Horizontal: g.opts.Horizontal,
	}
	g.outlines = g.strategy.Apply(env, laid, dir, g.startOutline(req, dir)).Clone()

	g.manager.SetContentSize(contentSize(g.outlines))
	g.renderer.SetContainerRect(g.manager.Rect())
	g.renderer.Apply(laid, g.el)

	ev := RenderCompleteEvent{IsResize: isResize}
	for _, it := range laid {
		if !slices.Contains(measured, it) && it.CSSRect.Equal(prev[it]) {
			continue
		}
		ev.Updated = append(ev.Updated, it)
		if it.MountState != item.Mounted {
			it.MountState = item.Mounted
			ev.Mounted = append(ev.Mounted, it)
		}
	}

	g.logger.Debug("render complete",
		"items", len(g.items), "laid", len(laid), "updated", len(ev.Updated),
		"mounted", len(ev.Mounted), "resize", isResize)
	observability.Render().OnRenderComplete(ctx, len(ev.Mounted), len(ev.Updated), g.sched.Now().Sub(start))
	g.renderComplete.emit(ev)
}

// startOutline picks the outline the strategy starts from: the explicit
// one, else the previous outline on the opposite side, else [0].
func (g *Grid) startOutline(req renderRequest, dir strategy.Direction) []float64 {
	if req.outline != nil {
		return slices.Clone(req.outline)
	}
	prev := g.outlines.Start
	if dir == strategy.Start {
		prev = g.outlines.End
	}
	if len(prev) == 0 {
		return []float64{0}
	}
	return slices.Clone(prev)
}

func contentSize(o strategy.Outlines) float64 {
	size := 0.0
	for _, v := range o.End {
		size = max(size, v)
	}
	return size
}

// attached returns the items whose element is still inside the container.
func (g *Grid) attached() []*item.Item {
	out := make([]*item.Item, 0, len(g.items))
	for _, it := range g.items {
		if it.Element != nil && dom.Contains(g.el, it.Element) {
			out = append(out, it)
		}
	}
	return out
}

func (g *Grid) resolve() renderer.Diff {
	prev := g.items
	next, diff := g.renderer.Resolve(prev, g.el)
	for _, j := range diff.Removed {
		g.tracker.Cancel(prev[j])
	}
	g.items = next
	g.resolved = true
	if !diff.Empty() {
		g.logger.Debug("items resolved",
			"added", len(diff.Added), "removed", len(diff.Removed), "moved", len(diff.Changed))
	}
	return diff
}

func (g *Grid) contentErrorEvent(it *item.Item, img *html.Node) *ContentErrorEvent {
	src, _ := dom.Attr(img, "src")
	g.logger.Warn("content error", "item", it.Key, "src", src)
	return &ContentErrorEvent{
		Element: it.Element,
		Target:  img,
		Item:    it,
		update: func() {
			if g.state == Rendering {
				g.requeue = append(g.requeue, it)
				return
			}
			g.UpdateItems(it)
		},
	}
}

// =============================================================================
// Public operations
// =============================================================================

// RenderItems schedules a render.
func (g *Grid) RenderItems(opts RenderOptions) {
	g.scheduleRender(renderRequest{
		useResize: opts.UseResize,
		direction: opts.Direction,
		outline:   opts.Outline,
	})
}

// SyncElements reconciles items with the container children and schedules
// a render when the structure changed. It reports whether a render was
// scheduled. During a render pass the sync is deferred to the follow-up pass.
func (g *Grid) SyncElements(opts RenderOptions) bool {
	req := renderRequest{
		useResize: opts.UseResize,
		direction: opts.Direction,
		outline:   opts.Outline,
	}
	switch g.state {
	case Destroyed:
		return false
	case Rendering:
		req.sync = true
		g.scheduleRender(req)
		return true
	}
	if diff := g.resolve(); diff.Empty() {
		return false
	}
	g.scheduleRender(req)
	return true
}

// UpdateItems marks items for re-measurement and schedules a render. With
// no arguments every item is updated.
func (g *Grid) UpdateItems(items ...*item.Item) {
	if g.state == Destroyed {
		return
	}
	if len(items) == 0 {
		items = g.items
	}
	for _, it := range items {
		it.UpdateState = item.NeedUpdate
	}
	g.scheduleRender(renderRequest{})
}

// Resize re-measures every item in the next render.
func (g *Grid) Resize() {
	g.scheduleRender(renderRequest{useResize: true})
}

// Items returns the managed items in DOM order.
func (g *Grid) Items() []*item.Item {
	return slices.Clone(g.items)
}

// Children returns the container's element children.
func (g *Grid) Children() []*html.Node {
	return dom.Children(g.el)
}

// Container returns the container element.
func (g *Grid) Container() *html.Node { return g.el }

// Outlines returns the outlines of the last render.
func (g *Grid) Outlines() strategy.Outlines {
	return g.outlines.Clone()
}

// State returns the render state.
func (g *Grid) State() State { return g.state }

// Idle reports whether no render is scheduled or running and no debounced
// resize is waiting to fire.
func (g *Grid) Idle() bool {
	return g.state == Idle && !g.manager.PendingResize()
}

// ContentSize returns the container size along the content axis as written
// by the last render.
func (g *Grid) ContentSize() float64 { return g.manager.ContentSize() }

// Pending returns the number of items waiting for content.
func (g *Grid) Pending() int {
	if g.state == Destroyed {
		return 0
	}
	return g.tracker.Pending()
}

// =============================================================================
// Status
// =============================================================================

// Status captures the grid state.
func (g *Grid) Status() Status {
	if !g.resolved && g.state != Destroyed {
		g.resolve()
	}
	st := Status{
		Items:            make([]item.Status, len(g.items)),
		Outlines:         g.outlines.Clone(),
		ContainerManager: g.manager.Status(),
		ItemRenderer:     g.renderer.Status(),
	}
	for i, it := range g.items {
		st.Items[i] = it.Status()
	}
	return st
}

// SetStatus replaces the grid state with st, binding item statuses to the
// container children by position. Nothing is written to the DOM here: the
// one reconciliation render scheduled afterwards applies the stored
// geometry, and it is a resize render when the container's inline size
// differs from the recorded one.
func (g *Grid) SetStatus(st Status) error {
	if g.state == Destroyed {
		return errors.New(errors.ErrCodeDestroyed, "grid is destroyed")
	}
	children := dom.Children(g.el)
	if len(children) != len(st.Items) {
		return errors.New(errors.ErrCodeInvalidStatus,
			"status has %d items, container has %d children", len(st.Items), len(children))
	}

	useResize := g.manager.ChangedFrom(st.ContainerManager)

	byElement := make(map[*html.Node]*item.Item, len(g.items))
	for _, it := range g.items {
		byElement[it.Element] = it
	}
	items := make([]*item.Item, len(children))
	for i, el := range children {
		it, ok := byElement[el]
		if ok {
			delete(byElement, el)
		} else {
			it = item.New(el, g.opts.Horizontal, g.opts.AttributePrefix)
		}
		it.SetStatus(st.Items[i])
		items[i] = it
	}
	for _, stale := range byElement {
		g.tracker.Cancel(stale)
	}
	for _, it := range items {
		g.tracker.Cancel(it)
	}

	g.items = items
	g.resolved = true
	g.outlines = st.Outlines.Clone()
	g.renderer.SetStatus(st.ItemRenderer)
	g.manager.SetStatus(st.ContainerManager)

	g.scheduleRender(renderRequest{useResize: useResize})
	return nil
}

// =============================================================================
// Destroy
// =============================================================================

// Destroy detaches the grid: pending renders, resize timers and content
// watchers are cancelled and, unless UI is preserved, every managed
// element and the container get their original style back.
func (g *Grid) Destroy(opts DestroyOptions) {
	if g.state == Destroyed {
		return
	}
	preserve := opts.PreserveUI || g.PreserveUIOnDestroy()
	g.state = Destroyed
	g.req = renderRequest{}
	g.followUp = false
	g.requeue = nil

	g.tracker.Close()
	g.manager.Destroy(preserve)
	if !preserve {
		g.renderer.Restore(g.items)
	}
	g.renderComplete.clear()
	g.contentError.clear()
	g.logger.Debug("grid destroyed", "preserveUI", preserve)
}
