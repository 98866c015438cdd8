package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gridflow/pkg/adapter"
	"github.com/matzehuels/gridflow/pkg/container"
	"github.com/matzehuels/gridflow/pkg/content"
	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/grid"
	"github.com/matzehuels/gridflow/pkg/item"
	"github.com/matzehuels/gridflow/pkg/scheduler"
	"github.com/matzehuels/gridflow/pkg/strategy"
)

// One terminal cell stands for cellWidth x cellHeight pixels.
const (
	cellWidth  = 8.0
	cellHeight = 18.0

	// chromeRows are the terminal rows used by the header and footer.
	chromeRows = 3

	gapStep      = 2.0
	tickInterval = 50 * time.Millisecond
)

var (
	previewBoxStyle   = lipgloss.NewStyle().Foreground(colorCyan)
	previewLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	previewHelpStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

// previewCommand creates the interactive preview command.
func (c *CLI) previewCommand() *cobra.Command {
	var flags layoutFlags

	cmd := &cobra.Command{
		Use:   "preview <container.html>",
		Short: "Preview a layout interactively in the terminal",
		Long: `Preview a layout interactively in the terminal.

Each item is drawn as a box, one cell standing for 8x18 pixels. Resizing the
terminal resizes the viewport and relayouts the grid after the resize
debounce. Keys: +/- change the gap, d flips the render direction, r forces a
relayout, q quits.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := flags.load(cmd)
			if err != nil {
				return err
			}
			markup, err := readInput(cmd, args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			gopts, err := file.GridOptions()
			if err != nil {
				return err
			}
			if file.Content.BaseDir == "" {
				file.Content.BaseDir = filepath.Dir(args[0])
			}
			return c.runPreview(cmd.Context(), markup, gopts, file.Content.BaseDir)
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *CLI) runPreview(ctx context.Context, markup string, opts grid.Options, baseDir string) error {
	src := content.NewFetchSource(ctx, content.FetchOptions{BaseDir: baseDir, Logger: loggerFromContext(ctx)})
	defer src.Close()
	opts.Source = src

	m, err := newPreviewModel(markup, opts, time.Now())
	if err != nil {
		return err
	}
	defer m.close()

	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// =============================================================================
// previewModel - bubbletea model hosting a grid
// =============================================================================

// tickMsg advances the grid's scheduler to wall-clock time.
type tickMsg time.Time

// previewModel drives a grid on a Manual scheduler from the bubbletea event
// loop, so every grid callback runs on the program's goroutine.
type previewModel struct {
	comp  *adapter.Component
	sched *scheduler.Manual
	vp    *container.Viewport
	now   time.Time

	gap       float64
	direction strategy.Direction
	renders   int
	resizes   int
	errors    int

	width, height int
}

func newPreviewModel(markup string, opts grid.Options, now time.Time) (*previewModel, error) {
	el, err := dom.ParseContainer(markup)
	if err != nil {
		return nil, err
	}
	m := &previewModel{
		sched:     scheduler.NewManual(now),
		now:       now,
		gap:       opts.Gap,
		direction: opts.DefaultDirection,
		width:     80,
		height:    24,
	}
	m.vp = container.NewViewport(m.viewportSize())
	opts.Scheduler = m.sched
	opts.Viewport = m.vp
	opts.AutoResize = true

	m.comp = adapter.NewComponent(opts)
	m.comp.OnMount(func(g *grid.Grid) {
		g.OnRenderComplete(func(ev grid.RenderCompleteEvent) {
			m.renders++
			if ev.IsResize {
				m.resizes++
			}
		})
		g.OnContentError(func(ev *grid.ContentErrorEvent) {
			m.errors++
			ev.Update()
		})
	})
	if err := m.comp.Mount(el, m.props()); err != nil {
		return nil, err
	}
	m.sched.Flush()
	return m, nil
}

func (m *previewModel) props() adapter.Props {
	return adapter.Props{
		grid.PropGap:              m.gap,
		grid.PropDefaultDirection: m.direction,
	}
}

func (m *previewModel) viewportSize() dom.Size {
	rows := max(m.height-chromeRows, 1)
	return dom.Size{Width: float64(m.width) * cellWidth, Height: float64(rows) * cellHeight}
}

func (m *previewModel) close() {
	m.comp.Unmount()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *previewModel) Init() tea.Cmd {
	return tick()
}

func (m *previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		t := time.Time(msg)
		if t.After(m.now) {
			m.sched.Advance(t.Sub(m.now))
			m.now = t
		} else {
			m.sched.Flush()
		}
		return m, tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.vp.Resize(m.viewportSize())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "+", "=":
			m.gap += gapStep
		case "-":
			m.gap = max(m.gap-gapStep, 0)
		case "d":
			if m.direction == strategy.End {
				m.direction = strategy.Start
			} else {
				m.direction = strategy.End
			}
		case "r":
			m.comp.Grid().Resize()
		}
		if err := m.comp.Update(m.props()); err != nil {
			return m, tea.Quit
		}
	}
	m.sched.Flush()
	return m, nil
}

func (m *previewModel) View() string {
	var b strings.Builder
	g := m.comp.Grid()
	b.WriteString(StyleTitle.Render("gridflow preview"))
	b.WriteString(StyleDim.Render(fmt.Sprintf("  %d items · %gpx · gap %g · %s · %d renders (%d resize)",
		len(g.Items()), g.ContentSize(), m.gap, m.direction, m.renders, m.resizes)))
	if p := g.Pending(); p > 0 {
		b.WriteString(StyleWarning.Render(fmt.Sprintf(" · %d loading", p)))
	}
	if m.errors > 0 {
		b.WriteString(StyleWarning.Render(fmt.Sprintf(" · %d failed", m.errors)))
	}
	b.WriteString("\n")

	rows := max(m.height-chromeRows, 1)
	for _, line := range drawItems(g.Items(), m.width, rows) {
		b.WriteString(colorize(line))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(previewHelpStyle.Render("+/- gap  d direction  r relayout  q quit"))
	return b.String()
}

// =============================================================================
// Canvas
// =============================================================================

// drawItems draws each placed item as a box on a cols x rows canvas.
// Items are labelled with their 1-based index; boxes past the canvas are
// clipped.
func drawItems(items []*item.Item, cols, rows int) []string {
	canvas := make([][]rune, rows)
	for y := range canvas {
		canvas[y] = []rune(strings.Repeat(" ", cols))
	}
	set := func(x, y int, r rune) {
		if x >= 0 && x < cols && y >= 0 && y < rows {
			canvas[y][x] = r
		}
	}

	for i, it := range items {
		x0, y0, w, h := cellRect(it)
		x1, y1 := x0+w-1, y0+h-1
		for x := x0; x <= x1; x++ {
			set(x, y0, '─')
			set(x, y1, '─')
		}
		for y := y0; y <= y1; y++ {
			set(x0, y, '│')
			set(x1, y, '│')
		}
		set(x0, y0, '┌')
		set(x1, y0, '┐')
		set(x0, y1, '└')
		set(x1, y1, '┘')
		for j, r := range fmt.Sprint(i + 1) {
			if x0+1+j < x1 && h > 2 {
				set(x0+1+j, y0+1, r)
			}
		}
	}

	lines := make([]string, rows)
	for y, row := range canvas {
		lines[y] = string(row)
	}
	return lines
}

// cellRect converts an item's assigned geometry to cells. Missing fields
// fall back to the measured box.
func cellRect(it *item.Item) (x, y, w, h int) {
	left, top := 0.0, 0.0
	width, height := it.Rect.Width, it.Rect.Height
	if r := it.CSSRect; r.Left != nil {
		left = *r.Left
	}
	if r := it.CSSRect; r.Top != nil {
		top = *r.Top
	}
	if r := it.CSSRect; r.Width != nil {
		width = *r.Width
	}
	if r := it.CSSRect; r.Height != nil {
		height = *r.Height
	}
	x, y = int(left/cellWidth), int(top/cellHeight)
	w = max(int(width/cellWidth), 2)
	h = max(int(height/cellHeight), 2)
	return x, y, w, h
}

func colorize(line string) string {
	var b strings.Builder
	for _, r := range line {
		switch {
		case r >= '0' && r <= '9':
			b.WriteString(previewLabelStyle.Render(string(r)))
		case r == ' ':
			b.WriteRune(r)
		default:
			b.WriteString(previewBoxStyle.Render(string(r)))
		}
	}
	return b.String()
}
