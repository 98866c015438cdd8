// Package pkg provides the core libraries for gridflow grid layout.
//
// # Overview
//
// gridflow positions the children of an HTML container with a pluggable
// layout strategy and keeps the layout correct while images load, while
// the container resizes, while items are added, removed or reordered, and
// while layout properties change at runtime. The pkg directory is
// organized into three areas:
//
//  1. Layout core: [grid], [item], [renderer], [container], [content],
//     [strategy] and the [adapter] contract
//  2. Support: [dom] (node tree, styles, box model) and [scheduler]
//     (cooperative task queue and timers)
//  3. Infrastructure: [pipeline], [cache], [config], [errors],
//     [observability], [httputil] and [buildinfo]
//
// # Architecture
//
// One render pass:
//
//	DOM change / resize / property change
//	         ↓
//	    [grid] schedules one coalesced render
//	         ↓
//	    [renderer] resolves items from the container's children
//	         ↓
//	    [content] holds back items whose images are still loading
//	         ↓
//	    [strategy] positions the ready items
//	         ↓
//	    [renderer] writes geometry, [container] sizes the container
//	         ↓
//	    renderComplete event
//
// # Quick Start
//
// Lay out a container on a hand-driven scheduler:
//
//	import (
//	    "time"
//	    "github.com/matzehuels/gridflow/pkg/dom"
//	    "github.com/matzehuels/gridflow/pkg/grid"
//	    "github.com/matzehuels/gridflow/pkg/scheduler"
//	)
//
//	el, _ := dom.ParseContainer(`<div><div>a</div><div>b</div></div>`)
//	sched := scheduler.NewManual(time.Now())
//
//	opts := grid.DefaultOptions()
//	opts.Scheduler = sched
//	g, _ := grid.New(el, opts)
//	g.OnRenderComplete(func(ev grid.RenderCompleteEvent) {
//	    fmt.Println(len(ev.Mounted), "mounted")
//	})
//	g.RenderItems(grid.RenderOptions{})
//	sched.Flush()
//
//	fmt.Println(dom.OuterHTML(el))
//
// For batch use, [pipeline.Runner] wraps the same steps with status
// caching and a wall-clock event loop.
package pkg
