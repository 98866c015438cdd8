package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gridflow/pkg/config"
	"github.com/matzehuels/gridflow/pkg/pipeline"
)

// layoutFlags holds layout settings given on the command line. Flags that
// were set override the config file.
type layoutFlags struct {
	config     string
	strategy   string
	params     map[string]string
	width      float64
	height     float64
	gap        float64
	horizontal bool
	direction  string
	percentage []string
	transform  bool
	equalSize  bool
	constSize  bool
	prefix     string
	lazy       string
	timeoutMS  int
	baseDir    string
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	d := config.Default()
	fs := cmd.Flags()
	fs.StringVarP(&f.config, "config", "c", "", "config file (.toml, .yaml)")
	fs.StringVarP(&f.strategy, "strategy", "s", d.Strategy.Name, "layout strategy: stack, masonry, lua")
	fs.StringToStringVarP(&f.params, "param", "p", nil, "strategy parameter key=value (repeatable)")
	fs.Float64Var(&f.width, "width", d.Viewport.Width, "viewport width")
	fs.Float64Var(&f.height, "height", d.Viewport.Height, "viewport height")
	fs.Float64Var(&f.gap, "gap", d.Grid.Gap, "gap between items")
	fs.BoolVar(&f.horizontal, "horizontal", false, "lay items out along the horizontal axis")
	fs.StringVar(&f.direction, "direction", d.Grid.Direction, "render direction: start, end")
	fs.StringSliceVar(&f.percentage, "percentage", nil, "write position and/or size as percentages")
	fs.BoolVar(&f.transform, "use-transform", false, "position items with transform instead of left/top")
	fs.BoolVar(&f.equalSize, "equal-size", false, "measure the first item only and reuse its size")
	fs.BoolVar(&f.constSize, "constant-size", false, "measure each item only once")
	fs.StringVar(&f.prefix, "attribute-prefix", d.Grid.AttributePrefix, "prefix of item hint attributes")
	fs.StringVar(&f.lazy, "lazy", d.Content.Lazy, "lazy image handling: immediate, wait")
	fs.IntVar(&f.timeoutMS, "timeout", d.Content.TimeoutMS, "content wait timeout in milliseconds")
	fs.StringVar(&f.baseDir, "base-dir", "", "directory relative image paths resolve against (default: input directory)")
}

// load reads the config file, if any, and applies the flags that were set.
func (f *layoutFlags) load(cmd *cobra.Command) (config.File, error) {
	file := config.Default()
	if f.config != "" {
		var err error
		if file, err = config.Load(f.config); err != nil {
			return config.File{}, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("strategy") {
		file.Strategy.Name = f.strategy
		file.Strategy.Params = nil
	}
	if changed("param") {
		if file.Strategy.Params == nil {
			file.Strategy.Params = map[string]any{}
		}
		for k, v := range parseParams(f.params) {
			file.Strategy.Params[k] = v
		}
	}
	if changed("width") {
		file.Viewport.Width = f.width
	}
	if changed("height") {
		file.Viewport.Height = f.height
	}
	if changed("gap") {
		file.Grid.Gap = f.gap
	}
	if changed("horizontal") {
		file.Grid.Horizontal = f.horizontal
	}
	if changed("direction") {
		file.Grid.Direction = f.direction
	}
	if changed("percentage") {
		file.Grid.Percentage = f.percentage
	}
	if changed("use-transform") {
		file.Grid.UseTransform = f.transform
	}
	if changed("equal-size") {
		file.Grid.IsEqualSize = f.equalSize
	}
	if changed("constant-size") {
		file.Grid.IsConstantSize = f.constSize
	}
	if changed("attribute-prefix") {
		file.Grid.AttributePrefix = f.prefix
	}
	if changed("lazy") {
		file.Content.Lazy = f.lazy
	}
	if changed("timeout") {
		file.Content.TimeoutMS = f.timeoutMS
	}
	if changed("base-dir") {
		file.Content.BaseDir = f.baseDir
	}
	if err := file.Validate(); err != nil {
		return config.File{}, err
	}
	return file, nil
}

// readInput reads markup from path, or stdin when path is "" or "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// layoutCommand creates the layout command.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		flags    layoutFlags
		output   string
		formats  string
		noCache  bool
		refresh  bool
		redisURL string
	)

	cmd := &cobra.Command{
		Use:   "layout [container.html]",
		Short: "Lay out the items of an HTML container",
		Long: `Lay out the items of an HTML container.

The layout command reads a container element (a file, or stdin when no file
or "-" is given), waits for its images to load, positions every child with
the selected strategy and writes the laid-out markup (-f html) and/or the
captured grid status (-f json).

Settings come from --config and are overridden by explicit flags. Settled
statuses are cached, so repeated runs over the same markup restore the
layout without waiting for content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			file, err := flags.load(cmd)
			if err != nil {
				return err
			}
			markup, err := readInput(cmd, input)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			opts := file.PipelineOptions(markup)
			opts.Formats = parseFormats(formats)
			opts.Refresh = refresh
			if opts.BaseDir == "" && input != "" && input != "-" {
				opts.BaseDir = filepath.Dir(input)
			}
			return c.runLayout(cmd, input, opts, output, noCache, redisURL)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout); with several formats, the base name")
	cmd.Flags().StringVarP(&formats, "format", "f", pipeline.FormatHTML, "output formats: html, json (comma-separated)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "ignore cached statuses")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for a shared cache (e.g. redis://localhost:6379/0)")

	return cmd
}

// runLayout executes the pipeline and writes the artifacts.
func (c *CLI) runLayout(cmd *cobra.Command, input string, opts pipeline.Options, output string, noCache bool, redisURL string) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, noCache, redisURL)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = logger
	prog := newProgress(logger)
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	prog.done(fmt.Sprintf("Laid out %d items", result.Stats.ItemCount))
	if result.Stats.Pending > 0 {
		logger.Warn("content still loading at timeout", "pending", result.Stats.Pending)
	}

	if output == "" {
		for _, f := range opts.Formats {
			if _, err := cmd.OutOrStdout().Write(append(result.Artifacts[f], '\n')); err != nil {
				return err
			}
		}
		return nil
	}

	paths, err := writeArtifacts(result.Artifacts, opts.Formats, output)
	if err != nil {
		return err
	}
	printSuccess("Layout complete")
	for _, p := range paths {
		printFile(p)
	}
	printStats(result.Stats.ItemCount, result.Stats.Renders, result.CacheInfo.StatusHit)
	if input != "" && input != "-" {
		printNewline()
		printNextStep("Preview", appName+" preview "+input)
	}
	return nil
}

// writeArtifacts writes one file per format. A single format goes to
// output as given; several formats replace output's extension.
func writeArtifacts(artifacts map[string][]byte, formats []string, output string) ([]string, error) {
	var paths []string
	for _, f := range formats {
		path := output
		if len(formats) > 1 {
			path = strings.TrimSuffix(output, filepath.Ext(output)) + "." + f
		}
		if err := os.WriteFile(path, artifacts[f], 0o644); err != nil {
			return nil, fmt.Errorf("write output %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

