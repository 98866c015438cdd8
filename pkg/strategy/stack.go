package strategy

import "github.com/matzehuels/gridflow/pkg/item"

// Stack places items end to end in a single track, separated by the gap.
// Only the content position is assigned. The first item sits directly on
// the outline; the gap only separates items laid out in the same call.
type Stack struct{}

// Name implements Strategy.
func (Stack) Name() string { return "stack" }

// Apply implements Strategy.
func (Stack) Apply(env Env, items []*item.Item, dir Direction, outline []float64) Outlines {
	origin := 0.0
	if len(outline) > 0 {
		origin = outline[0]
		for _, v := range outline[1:] {
			if dir == End {
				origin = max(origin, v)
			} else {
				origin = min(origin, v)
			}
		}
	}
	if len(items) == 0 {
		return Outlines{Start: []float64{origin}, End: []float64{origin}}
	}

	if dir == Start {
		cursor := origin
		for i := len(items) - 1; i >= 0; i-- {
			it := items[i]
			if i < len(items)-1 {
				cursor -= env.Gap
			}
			cursor -= it.ContentSize()
			it.SetContentPos(cursor)
		}
		return Outlines{Start: []float64{cursor}, End: []float64{origin}}
	}

	cursor := origin
	for i, it := range items {
		if i > 0 {
			cursor += env.Gap
		}
		it.SetContentPos(cursor)
		cursor += it.ContentSize()
	}
	return Outlines{Start: []float64{origin}, End: []float64{cursor}}
}
