package strategy

import (
	"math"

	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/item"
)

// Masonry places each item in the shortest column. The column count comes
// from Column, or is derived from the container inline size and
// ColumnSize (falling back to the first item's measured inline size).
// Items are given the column's inline size; their content size is kept.
type Masonry struct {
	Column     int
	ColumnSize float64
}

// NewMasonry builds a Masonry from "column" and "columnSize" params.
func NewMasonry(p Params) (Strategy, error) {
	col, err := p.Int("column", 0)
	if err != nil {
		return nil, err
	}
	size, err := p.Float("columnSize", 0)
	if err != nil {
		return nil, err
	}
	if col < 0 || size < 0 || math.IsNaN(size) {
		return nil, errors.New(errors.ErrCodeInvalidStrategy, "masonry column and columnSize must be >= 0")
	}
	return Masonry{Column: col, ColumnSize: size}, nil
}

// Name implements Strategy.
func (Masonry) Name() string { return "masonry" }

func (m Masonry) columns(env Env, items []*item.Item) (int, float64) {
	size := m.ColumnSize
	if m.Column > 0 {
		if size == 0 {
			size = (env.InlineSize - env.Gap*float64(m.Column-1)) / float64(m.Column)
		}
		return m.Column, max(size, 0)
	}
	if size == 0 && len(items) > 0 {
		size = items[0].MeasuredInlineSize()
	}
	if size <= 0 {
		return 1, max(env.InlineSize, 0)
	}
	n := int(math.Floor((env.InlineSize + env.Gap) / (size + env.Gap)))
	return max(n, 1), size
}

// Apply implements Strategy.
func (m Masonry) Apply(env Env, items []*item.Item, dir Direction, outline []float64) Outlines {
	n, size := m.columns(env, items)

	start := make([]float64, n)
	fill := 0.0
	if len(outline) > 0 {
		fill = outline[0]
		for _, v := range outline {
			if dir == End {
				fill = max(fill, v)
			} else {
				fill = min(fill, v)
			}
		}
	}
	for i := range start {
		if i < len(outline) && len(outline) == n {
			start[i] = outline[i]
		} else {
			start[i] = fill
		}
	}

	cur := clone(start)
	placed := make([]bool, n)
	if dir == Start {
		for i := len(items) - 1; i >= 0; i-- {
			col := pick(cur, func(a, b float64) bool { return a > b })
			pos := cur[col]
			if placed[col] {
				pos -= env.Gap
			}
			pos -= items[i].ContentSize()
			m.place(items[i], env, col, size, pos)
			cur[col], placed[col] = pos, true
		}
		return Outlines{Start: cur, End: start}
	}

	for _, it := range items {
		col := pick(cur, func(a, b float64) bool { return a < b })
		pos := cur[col]
		if placed[col] {
			pos += env.Gap
		}
		m.place(it, env, col, size, pos)
		cur[col], placed[col] = pos+it.ContentSize(), true
	}
	return Outlines{Start: start, End: cur}
}

func (m Masonry) place(it *item.Item, env Env, col int, size, pos float64) {
	it.SetInlinePos(float64(col) * (size + env.Gap))
	it.SetInlineSize(size)
	it.SetContentPos(pos)
}

// pick returns the first column preferred by better.
func pick(outline []float64, better func(a, b float64) bool) int {
	best := 0
	for i, v := range outline {
		if better(v, outline[best]) {
			best = i
		}
	}
	return best
}
