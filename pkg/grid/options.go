package grid

import (
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/matzehuels/gridflow/pkg/container"
	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/item"
	"github.com/matzehuels/gridflow/pkg/renderer"
	"github.com/matzehuels/gridflow/pkg/scheduler"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

// ItemRenderer is the item renderer contract. *renderer.Renderer
// implements it; Options.ExternalItemRenderer replaces the default.
type ItemRenderer interface {
	Resolve(prev []*item.Item, container *html.Node) ([]*item.Item, renderer.Diff)
	Measure(items []*item.Item, container *html.Node) []*item.Item
	Apply(items []*item.Item, container *html.Node)
	Restore(items []*item.Item)
	SetContainerRect(rect dom.Rect)
	Status() renderer.Status
	SetStatus(renderer.Status)
}

// ContainerManager is the container manager contract. *container.Manager
// implements it; Options.ExternalContainerManager replaces the default.
type ContainerManager interface {
	Rect() dom.Rect
	InlineSize() float64
	ContentSize() float64
	Resize() bool
	ChangedFrom(container.Status) bool
	SetContentSize(size float64)
	ScheduleResize()
	PendingResize() bool
	SetOnResize(fn func())
	Status() container.Status
	SetStatus(container.Status)
	Destroy(preserveUI bool)
}

var (
	_ ItemRenderer     = (*renderer.Renderer)(nil)
	_ ContainerManager = (*container.Manager)(nil)
)

// Options configures a Grid. Start from DefaultOptions.
type Options struct {
	// Horizontal lays items out along the horizontal content axis.
	Horizontal bool
	// Percentage applies "position" and/or "size" as percentages of the
	// container instead of pixels.
	Percentage []string
	// IsEqualSize reuses the first measured size for every item.
	IsEqualSize bool
	// IsConstantSize measures each item only once.
	IsConstantSize bool

	Gap                    float64
	AttributePrefix        string
	ResizeDebounce         time.Duration
	MaxResizeDebounce      time.Duration
	AutoResize             bool
	UseTransform           bool
	RenderOnPropertyChange bool
	PreserveUIOnDestroy    bool
	DefaultDirection       strategy.Direction

	ExternalItemRenderer     ItemRenderer
	ExternalContainerManager ContainerManager

	Strategy  strategy.Strategy
	Scheduler scheduler.Scheduler
	BoxModel  dom.BoxModel
	Media     dom.MediaSizer
	Viewport  *container.Viewport
	Source    content.Source
	Content   content.Policy

	// Properties declares additional dynamic properties.
	Properties []PropertyDef

	Logger *log.Logger
}

// DefaultOptions returns the default configuration. Scheduler must still
// be set.
func DefaultOptions() Options {
	return Options{
		AttributePrefix:        "data-grid-",
		ResizeDebounce:         100 * time.Millisecond,
		AutoResize:             true,
		RenderOnPropertyChange: true,
		DefaultDirection:       strategy.End,
		Strategy:               strategy.Stack{},
	}
}

// Validate checks option values.
func (o *Options) Validate() error {
	if o.Scheduler == nil {
		return errors.New(errors.ErrCodeInvalidOption, "scheduler is required")
	}
	if o.Strategy == nil {
		return errors.New(errors.ErrCodeInvalidOption, "strategy is required")
	}
	if err := errors.ValidateNonNegative("gap", o.Gap); err != nil {
		return err
	}
	if err := errors.ValidateAttributePrefix(o.AttributePrefix); err != nil {
		return err
	}
	if err := errors.ValidateDuration("resizeDebounce", o.ResizeDebounce); err != nil {
		return err
	}
	if err := errors.ValidateDuration("maxResizeDebounce", o.MaxResizeDebounce); err != nil {
		return err
	}
	if err := errors.ValidateOneOf("defaultDirection", string(o.DefaultDirection), string(strategy.Start), string(strategy.End)); err != nil {
		return err
	}
	for _, p := range o.Percentage {
		if err := errors.ValidateOneOf("percentage", p, renderer.PercentPosition, renderer.PercentSize); err != nil {
			return err
		}
	}
	seen := map[string]bool{}
	for _, p := range builtinProperties(*o) {
		seen[p.Name] = true
	}
	for _, p := range o.Properties {
		if p.Name == "" {
			return errors.New(errors.ErrCodeInvalidOption, "property name cannot be empty")
		}
		if seen[p.Name] {
			return errors.New(errors.ErrCodeInvalidOption, "property %q declared twice", p.Name)
		}
		if p.Kind != Property && p.Kind != RenderProperty {
			return errors.New(errors.ErrCodeInvalidOption, "property %q has invalid kind %d", p.Name, p.Kind)
		}
		seen[p.Name] = true
	}
	return nil
}
