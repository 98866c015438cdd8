// Package pipeline provides the batch layout pipeline for gridflow.
//
// This package implements the complete parse → layout → render pipeline used
// by the CLI and the HTTP API, so both entry points lay out markup the same
// way and share one status cache.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Parse: Parse the markup into a container element
//  2. Layout: Run a grid over the container on an event loop until every
//     item has settled, or restore a cached status
//  3. Render: Serialize the laid-out container (html) and status (json)
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Markup:   `<div><div>a</div><div>b</div></div>`,
//	    Strategy: "masonry",
//	    StrategyParams: map[string]any{"column": 3},
//	    Formats:  []string{"html"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	html := result.Artifacts["html"]
package pipeline

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gridflow/pkg/cache"
	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/grid"
	"github.com/matzehuels/gridflow/pkg/renderer"
	"github.com/matzehuels/gridflow/pkg/strategy"

	"github.com/matzehuels/gridflow/pkg/strategy/luascript"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultWidth is the default viewport width in pixels.
	DefaultWidth = 1280.0

	// DefaultHeight is the default viewport height in pixels.
	DefaultHeight = 720.0

	// DefaultStrategy is the default layout strategy.
	DefaultStrategy = "stack"

	// DefaultTimeout bounds how long the layout stage waits for content.
	DefaultTimeout = 30 * time.Second

	// TTLStatus is how long captured statuses stay cached.
	TTLStatus = 7 * 24 * time.Hour
)

// Format constants for output formats.
const (
	FormatHTML = "html"
	FormatJSON = "json"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatHTML: true,
	FormatJSON: true,
}

// Lazy image modes.
const (
	LazyImmediate = "immediate"
	LazyWait      = "wait"
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the layout pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Parse options
	Markup string `json:"markup"`

	// Layout options
	Strategy        string         `json:"strategy,omitempty"`
	StrategyParams  map[string]any `json:"strategy_params,omitempty"`
	Width           float64        `json:"width,omitempty"`
	Height          float64        `json:"height,omitempty"`
	Gap             float64        `json:"gap,omitempty"`
	Horizontal      bool           `json:"horizontal,omitempty"`
	Direction       string         `json:"direction,omitempty"`
	Percentage      []string       `json:"percentage,omitempty"`
	UseTransform    bool           `json:"use_transform,omitempty"`
	IsEqualSize     bool           `json:"is_equal_size,omitempty"`
	IsConstantSize  bool           `json:"is_constant_size,omitempty"`
	AttributePrefix string         `json:"attribute_prefix,omitempty"`
	Lazy            string         `json:"lazy,omitempty"`
	TimeoutMS       int            `json:"timeout_ms,omitempty"`
	Refresh         bool           `json:"refresh,omitempty"`

	// Render options
	Formats []string `json:"formats,omitempty"`

	// Runtime options (not serialized). RemoteOnly forbids anything that
	// reads the local filesystem: images and strategy script files.
	Logger     *log.Logger    `json:"-"`
	Source     content.Source `json:"-"`
	HTTPClient *http.Client   `json:"-"`
	BaseDir    string         `json:"-"`
	RemoteOnly bool           `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// MarkupHash is the content hash of the input markup.
	MarkupHash string

	// Status is the captured grid status.
	Status grid.Status

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ItemCount  int
	Renders    int
	Pending    int
	ParseTime  time.Duration
	LayoutTime time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	StatusHit bool // Whether the layout was restored from a cached status
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidOption, "invalid format: %q (must be one of: html, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStrategy checks that a strategy name is registered.
func ValidateStrategy(name string) error {
	for _, n := range strategy.Names() {
		if n == name {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidStrategy, "invalid strategy: %q (must be one of: %v)", name, strategy.Names())
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Markup == "" {
		return errors.New(errors.ErrCodeInvalidInput, "markup is required")
	}
	o.SetLayoutDefaults()
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatHTML}
	}

	if err := ValidateStrategy(o.Strategy); err != nil {
		return err
	}
	if _, ok := o.StrategyParams[luascript.FileParam]; ok && o.RemoteOnly {
		return errors.New(errors.ErrCodeInvalidStrategy, "strategy parameter %q reads local files and is not accepted here", luascript.FileParam)
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if err := errors.ValidateOneOf("direction", o.Direction, string(strategy.Start), string(strategy.End)); err != nil {
		return err
	}
	if err := errors.ValidateOneOf("lazy", o.Lazy, LazyImmediate, LazyWait); err != nil {
		return err
	}
	for _, p := range o.Percentage {
		if err := errors.ValidateOneOf("percentage", p, renderer.PercentPosition, renderer.PercentSize); err != nil {
			return err
		}
	}
	for name, v := range map[string]float64{"width": o.Width, "height": o.Height, "gap": o.Gap} {
		if err := errors.ValidateNonNegative(name, v); err != nil {
			return err
		}
	}
	if o.TimeoutMS < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "timeout_ms must be >= 0, got %d", o.TimeoutMS)
	}
	o.validated = true
	return nil
}

// SetLayoutDefaults sets default values for layout computation.
func (o *Options) SetLayoutDefaults() {
	if o.Strategy == "" {
		o.Strategy = DefaultStrategy
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Direction == "" {
		o.Direction = string(strategy.End)
	}
	if o.Lazy == "" {
		o.Lazy = LazyImmediate
	}
	if o.AttributePrefix == "" {
		o.AttributePrefix = grid.DefaultOptions().AttributePrefix
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Timeout returns the layout timeout.
func (o *Options) Timeout() time.Duration {
	if o.TimeoutMS > 0 {
		return time.Duration(o.TimeoutMS) * time.Millisecond
	}
	return DefaultTimeout
}

// StatusKeyOpts returns cache key options for the captured status.
func (o *Options) StatusKeyOpts() cache.StatusKeyOpts {
	return cache.StatusKeyOpts{
		Strategy:   o.Strategy,
		Params:     o.StrategyParams,
		Width:      o.Width,
		Height:     o.Height,
		Gap:        o.Gap,
		Horizontal: o.Horizontal,
		Direction:  o.Direction,
		Extra: map[string]any{
			"percentage":     o.Percentage,
			"useTransform":   o.UseTransform,
			"isEqualSize":    o.IsEqualSize,
			"isConstantSize": o.IsConstantSize,
			"prefix":         o.AttributePrefix,
			"lazy":           o.Lazy,
		},
	}
}

// GridOptions translates the layout options into grid options. The
// scheduler, viewport and content source are filled in by the layout stage.
func (o *Options) GridOptions() (grid.Options, error) {
	s, err := strategy.New(o.Strategy, o.StrategyParams)
	if err != nil {
		return grid.Options{}, err
	}
	g := grid.DefaultOptions()
	g.Strategy = s
	g.Gap = o.Gap
	g.Horizontal = o.Horizontal
	g.DefaultDirection = strategy.Direction(o.Direction)
	g.Percentage = o.Percentage
	g.UseTransform = o.UseTransform
	g.IsEqualSize = o.IsEqualSize
	g.IsConstantSize = o.IsConstantSize
	g.AttributePrefix = o.AttributePrefix
	g.AutoResize = false
	g.Logger = o.Logger
	if o.Lazy == LazyWait {
		g.Content.Mode = content.LazyWait
	}
	return g, nil
}
