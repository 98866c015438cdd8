// Package config loads gridflow layout settings from TOML or YAML files.
//
// A file has four sections:
//
//	[grid]
//	gap = 8
//	direction = "end"
//	resize_debounce_ms = 100
//
//	[strategy]
//	name = "masonry"
//	[strategy.params]
//	column = 3
//
//	[viewport]
//	width = 1280
//	height = 720
//
//	[content]
//	lazy = "immediate"
//	timeout_ms = 30000
//
// The same keys are accepted in YAML. Durations are integer milliseconds.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/grid"
	"github.com/matzehuels/gridflow/pkg/pipeline"
	"github.com/matzehuels/gridflow/pkg/renderer"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

// File is a parsed config file.
type File struct {
	Grid     Grid     `toml:"grid" yaml:"grid"`
	Strategy Strategy `toml:"strategy" yaml:"strategy"`
	Viewport Viewport `toml:"viewport" yaml:"viewport"`
	Content  Content  `toml:"content" yaml:"content"`
}

// Grid holds grid options.
type Grid struct {
	Gap                 float64  `toml:"gap" yaml:"gap"`
	Horizontal          bool     `toml:"horizontal" yaml:"horizontal"`
	Direction           string   `toml:"direction" yaml:"direction"`
	Percentage          []string `toml:"percentage" yaml:"percentage"`
	UseTransform        bool     `toml:"use_transform" yaml:"use_transform"`
	IsEqualSize         bool     `toml:"is_equal_size" yaml:"is_equal_size"`
	IsConstantSize      bool     `toml:"is_constant_size" yaml:"is_constant_size"`
	AttributePrefix     string   `toml:"attribute_prefix" yaml:"attribute_prefix"`
	ResizeDebounceMS    int      `toml:"resize_debounce_ms" yaml:"resize_debounce_ms"`
	MaxResizeDebounceMS int      `toml:"max_resize_debounce_ms" yaml:"max_resize_debounce_ms"`
	PreserveUIOnDestroy bool     `toml:"preserve_ui_on_destroy" yaml:"preserve_ui_on_destroy"`
}

// Strategy selects the layout strategy.
type Strategy struct {
	Name   string         `toml:"name" yaml:"name"`
	Params map[string]any `toml:"params" yaml:"params"`
}

// Viewport is the initial viewport size.
type Viewport struct {
	Width  float64 `toml:"width" yaml:"width"`
	Height float64 `toml:"height" yaml:"height"`
}

// Content configures content readiness.
type Content struct {
	Lazy      string `toml:"lazy" yaml:"lazy"`
	TimeoutMS int    `toml:"timeout_ms" yaml:"timeout_ms"`
	BaseDir   string `toml:"base_dir" yaml:"base_dir"`
}

// Default returns the built-in configuration.
func Default() File {
	d := grid.DefaultOptions()
	return File{
		Grid: Grid{
			Direction:        string(d.DefaultDirection),
			AttributePrefix:  d.AttributePrefix,
			ResizeDebounceMS: int(d.ResizeDebounce / time.Millisecond),
		},
		Strategy: Strategy{Name: pipeline.DefaultStrategy},
		Viewport: Viewport{Width: pipeline.DefaultWidth, Height: pipeline.DefaultHeight},
		Content: Content{
			Lazy:      pipeline.LazyImmediate,
			TimeoutMS: int(pipeline.DefaultTimeout / time.Millisecond),
		},
	}
}

// Load reads a TOML (.toml) or YAML (.yaml, .yml) file over the defaults
// and validates it. Relative paths in the file (content.base_dir and a lua
// strategy's file param) are resolved against the file's directory.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config")
	}
	f, err := decode(data, filepath.Ext(path))
	if err != nil {
		return File{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	dir := filepath.Dir(path)
	if f.Content.BaseDir != "" && !filepath.IsAbs(f.Content.BaseDir) {
		f.Content.BaseDir = filepath.Join(dir, f.Content.BaseDir)
	}
	if file, ok := f.Strategy.Params["file"].(string); ok && file != "" && !filepath.IsAbs(file) {
		f.Strategy.Params["file"] = filepath.Join(dir, file)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Parse decodes data in the format named by ext over the defaults and
// validates the result.
func Parse(data []byte, ext string) (File, error) {
	f, err := decode(data, ext)
	if err != nil {
		return File{}, err
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

func decode(data []byte, ext string) (File, error) {
	f := Default()
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return File{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return File{}, errors.New(errors.ErrCodeInvalidConfig, "unknown key %q", undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && err != io.EOF {
			return File{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse yaml")
		}
	default:
		return File{}, errors.New(errors.ErrCodeInvalidConfig, "unsupported config format %q (use .toml, .yaml or .yml)", ext)
	}
	return f, nil
}

// Validate checks every value.
func (f *File) Validate() error {
	g := f.Grid
	checks := []error{
		errors.ValidateNonNegative("grid.gap", g.Gap),
		errors.ValidateOneOf("grid.direction", g.Direction, string(strategy.Start), string(strategy.End)),
		errors.ValidateAttributePrefix(g.AttributePrefix),
		nonNegativeMS("grid.resize_debounce_ms", g.ResizeDebounceMS),
		nonNegativeMS("grid.max_resize_debounce_ms", g.MaxResizeDebounceMS),
		errors.ValidateNonNegative("viewport.width", f.Viewport.Width),
		errors.ValidateNonNegative("viewport.height", f.Viewport.Height),
		errors.ValidateOneOf("content.lazy", f.Content.Lazy, pipeline.LazyImmediate, pipeline.LazyWait),
		nonNegativeMS("content.timeout_ms", f.Content.TimeoutMS),
		pipeline.ValidateStrategy(f.Strategy.Name),
	}
	for _, p := range g.Percentage {
		checks = append(checks, errors.ValidateOneOf("grid.percentage", p, renderer.PercentPosition, renderer.PercentSize))
	}
	for _, err := range checks {
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid config")
		}
	}
	s, err := strategy.New(f.Strategy.Name, f.Strategy.Params)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid config")
	}
	if c, ok := s.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

func nonNegativeMS(name string, ms int) error {
	return errors.ValidateDuration(name, time.Duration(ms)*time.Millisecond)
}

// ResizeDebounce returns the resize debounce as a duration.
func (g Grid) ResizeDebounce() time.Duration {
	return time.Duration(g.ResizeDebounceMS) * time.Millisecond
}

// MaxResizeDebounce returns the resize ceiling as a duration.
func (g Grid) MaxResizeDebounce() time.Duration {
	return time.Duration(g.MaxResizeDebounceMS) * time.Millisecond
}

// PipelineOptions returns pipeline options for markup laid out with f.
func (f File) PipelineOptions(markup string) pipeline.Options {
	return pipeline.Options{
		Markup:          markup,
		Strategy:        f.Strategy.Name,
		StrategyParams:  f.Strategy.Params,
		Width:           f.Viewport.Width,
		Height:          f.Viewport.Height,
		Gap:             f.Grid.Gap,
		Horizontal:      f.Grid.Horizontal,
		Direction:       f.Grid.Direction,
		Percentage:      f.Grid.Percentage,
		UseTransform:    f.Grid.UseTransform,
		IsEqualSize:     f.Grid.IsEqualSize,
		IsConstantSize:  f.Grid.IsConstantSize,
		AttributePrefix: f.Grid.AttributePrefix,
		Lazy:            f.Content.Lazy,
		TimeoutMS:       f.Content.TimeoutMS,
		BaseDir:         f.Content.BaseDir,
	}
}

// GridOptions returns grid options configured by f. Scheduler and
// Viewport are left for the host to set.
func (f File) GridOptions() (grid.Options, error) {
	s, err := strategy.New(f.Strategy.Name, f.Strategy.Params)
	if err != nil {
		return grid.Options{}, err
	}
	o := grid.DefaultOptions()
	o.Strategy = s
	o.Gap = f.Grid.Gap
	o.Horizontal = f.Grid.Horizontal
	o.DefaultDirection = strategy.Direction(f.Grid.Direction)
	o.Percentage = f.Grid.Percentage
	o.UseTransform = f.Grid.UseTransform
	o.IsEqualSize = f.Grid.IsEqualSize
	o.IsConstantSize = f.Grid.IsConstantSize
	o.AttributePrefix = f.Grid.AttributePrefix
	o.ResizeDebounce = f.Grid.ResizeDebounce()
	o.MaxResizeDebounce = f.Grid.MaxResizeDebounce()
	o.PreserveUIOnDestroy = f.Grid.PreserveUIOnDestroy
	if f.Content.Lazy == pipeline.LazyWait {
		o.Content.Mode = content.LazyWait
	}
	return o, nil
}
