package pipeline

import (
	"context"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/gridflow/pkg/container"
	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/grid"
	"github.com/matzehuels/gridflow/pkg/scheduler"
)

// =============================================================================
// Layout
// =============================================================================

// Layout runs a grid over el on its own event loop until no render is
// pending and no item is waiting for content, or until the options'
// timeout elapses. A non-nil restore status is applied instead of a fresh
// render; a status that does not fit the markup falls back to rendering.
//
// The grid is destroyed with its UI preserved, so el carries the applied
// styles when Layout returns.
func Layout(ctx context.Context, el *html.Node, opts Options, src content.Source, restore *grid.Status) (grid.Status, Stats, error) {
	gopts, err := opts.GridOptions()
	if err != nil {
		return grid.Status{}, Stats{}, err
	}
	if c, ok := gopts.Strategy.(interface{ Close() }); ok {
		defer c.Close()
	}
	// Strategy code gets no more time than the layout itself.
	scriptCtx, cancelScript := context.WithTimeout(ctx, opts.Timeout())
	defer cancelScript()
	if b, ok := gopts.Strategy.(interface{ Bind(context.Context) }); ok {
		b.Bind(scriptCtx)
	}

	loop := scheduler.NewLoop()
	gopts.Scheduler = loop
	gopts.Viewport = container.NewViewport(dom.Size{Width: opts.Width, Height: opts.Height})
	gopts.Source = src
	logger := opts.Logger

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	eg, egCtx := errgroup.WithContext(runCtx)

	eg.Go(func() error {
		_ = loop.Run(egCtx)
		return ctx.Err()
	})

	var (
		st    grid.Status
		stats Stats
	)
	eg.Go(func() error {
		defer stop()

		var (
			g        *grid.Grid
			buildErr error
			settled  = make(chan struct{})
			once     sync.Once
		)
		err := loop.Do(egCtx, func() {
			g, buildErr = grid.New(el, gopts)
			if buildErr != nil {
				return
			}
			check := func() {
				if g.Idle() && g.Pending() == 0 {
					once.Do(func() { close(settled) })
				}
			}
			g.OnRenderComplete(func(ev grid.RenderCompleteEvent) {
				stats.Renders++
				logger.Debug("render complete", "updated", len(ev.Updated), "mounted", len(ev.Mounted), "resize", ev.IsResize)
				loop.Post(check)
			})
			g.OnContentError(func(ev *grid.ContentErrorEvent) {
				src, _ := dom.Attr(ev.Target, "src")
				logger.Warn("image failed to load", "src", src)
			})

			if restore != nil {
				err := g.SetStatus(*restore)
				if err == nil {
					return
				}
				logger.Warn("cached status rejected", "error", err)
			}
			g.RenderItems(grid.RenderOptions{})
		})
		if err != nil {
			return err
		}
		if buildErr != nil {
			return buildErr
		}

		wait, cancel := context.WithTimeout(egCtx, opts.Timeout())
		defer cancel()
		select {
		case <-settled:
		case <-wait.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("layout timed out with pending content", "timeout", opts.Timeout())
		}

		return loop.Do(egCtx, func() {
			st = g.Status()
			stats.ItemCount = len(g.Items())
			stats.Pending = g.Pending()
			g.Destroy(grid.DestroyOptions{PreserveUI: true})
		})
	})

	if err := eg.Wait(); err != nil {
		return grid.Status{}, Stats{}, err
	}
	return st, stats, nil
}
