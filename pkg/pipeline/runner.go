package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/cache"
	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/grid"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete parse → layout → render pipeline with caching.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{MarkupHash: cache.Hash([]byte(opts.Markup))}

	// Stage 1: Parse
	parseStart := time.Now()
	el, err := Parse(opts.Markup)
	if err != nil {
		return nil, err
	}
	result.Stats.ParseTime = time.Since(parseStart)

	// Stage 2: Layout
	layoutStart := time.Now()
	st, stats, hit, err := r.LayoutWithCacheInfo(ctx, el, result.MarkupHash, opts)
	if err != nil {
		code := errors.GetCode(err)
		switch {
		case code != "":
		case ctx.Err() == context.DeadlineExceeded:
			code = errors.ErrCodeTimeout
		default:
			code = errors.ErrCodeInternal
		}
		return nil, errors.Wrap(code, err, "layout")
	}
	result.Status = st
	stats.ParseTime = result.Stats.ParseTime
	result.Stats = stats
	result.Stats.LayoutTime = time.Since(layoutStart)
	result.CacheInfo.StatusHit = hit

	r.Logger.Info("laid out items",
		"items", stats.ItemCount,
		"renders", stats.Renders,
		"pending", stats.Pending,
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, err := Render(el, st, opts.Formats)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)

	r.Logger.Debug("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// LayoutWithCacheInfo lays out el, restoring a cached status when one exists
// for the markup hash and options, and reports whether it did. Statuses of
// layouts that still had pending content are not cached.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, el *html.Node, markupHash string, opts Options) (grid.Status, Stats, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return grid.Status{}, Stats{}, false, err
	}
	r.applyLogger(&opts)

	cacheKey := r.Keyer.StatusKey(markupHash, opts.StatusKeyOpts())

	var restore *grid.Status
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			if st, err := UnmarshalStatus(data); err == nil {
				restore = &st
			}
		}
	}

	src := opts.Source
	if src == nil {
		fs := content.NewFetchSource(ctx, content.FetchOptions{
			Client:     opts.HTTPClient,
			Cache:      r.Cache,
			Keyer:      r.Keyer,
			BaseDir:    opts.BaseDir,
			Logger:     opts.Logger,
			RemoteOnly: opts.RemoteOnly,
		})
		defer fs.Close()
		src = fs
	}

	st, stats, err := Layout(ctx, el, opts, src, restore)
	if err != nil {
		return grid.Status{}, Stats{}, false, err
	}
	if restore != nil {
		return st, stats, true, nil
	}

	if stats.Pending == 0 {
		if data, err := MarshalStatus(st); err == nil {
			if err := r.Cache.Set(ctx, cacheKey, data, TTLStatus); err != nil {
				r.Logger.Warn("cache status", "error", err)
			}
		}
	}
	return st, stats, false, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
