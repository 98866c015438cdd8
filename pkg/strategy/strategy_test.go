package strategy

import (
	"slices"
	"testing"

	"github.com/matzehuels/gridflow/pkg/dom"
	"github.com/matzehuels/gridflow/pkg/errors"
	"github.com/matzehuels/gridflow/pkg/item"
)

func makeItems(heights ...float64) []*item.Item {
	items := make([]*item.Item, len(heights))
	for i, h := range heights {
		items[i] = &item.Item{Rect: dom.Rect{Width: 100, Height: h}}
	}
	return items
}

func contentPositions(items []*item.Item) []float64 {
	out := make([]float64, len(items))
	for i, it := range items {
		out[i] = it.ContentPos()
	}
	return out
}

func TestStack(t *testing.T) {
	tests := []struct {
		name    string
		heights []float64
		gap     float64
		dir     Direction
		outline []float64
		wantPos []float64
		want    Outlines
	}{
		{"three equal items", []float64{18, 18, 18}, 0, End, nil, []float64{0, 18, 36}, Outlines{[]float64{0}, []float64{54}}},
		{"gap between items", []float64{10, 20}, 5, End, []float64{0}, []float64{0, 15}, Outlines{[]float64{0}, []float64{35}}},
		{"append after outline", []float64{10}, 5, End, []float64{35}, []float64{35}, Outlines{[]float64{35}, []float64{45}}},
		{"prepend", []float64{10, 20}, 0, Start, []float64{0}, []float64{-30, -20}, Outlines{[]float64{-30}, []float64{0}}},
		{"start from end outline with gap", []float64{18, 18, 18}, 10, Start, []float64{74}, []float64{0, 28, 56}, Outlines{[]float64{0}, []float64{74}}},
		{"empty", nil, 0, End, []float64{7}, []float64{}, Outlines{[]float64{7}, []float64{7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := makeItems(tt.heights...)
			got := Stack{}.Apply(Env{InlineSize: 300, Gap: tt.gap}, items, tt.dir, tt.outline)
			if pos := contentPositions(items); !slices.Equal(pos, tt.wantPos) {
				t.Errorf("positions = %v, want %v", pos, tt.wantPos)
			}
			if !slices.Equal(got.Start, tt.want.Start) || !slices.Equal(got.End, tt.want.End) {
				t.Errorf("outlines = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStackAppendMatchesFullLayout(t *testing.T) {
	env := Env{InlineSize: 300, Gap: 4}
	full := makeItems(10, 20, 30)
	Stack{}.Apply(env, full, End, nil)

	part := makeItems(10, 20, 30)
	first := Stack{}.Apply(env, part[:2], End, nil)
	Stack{}.Apply(env, part[2:], End, []float64{first.End[0] + env.Gap})

	if !slices.Equal(contentPositions(full), contentPositions(part)) {
		t.Errorf("append %v != full %v", contentPositions(part), contentPositions(full))
	}
}

func TestMasonry(t *testing.T) {
	items := makeItems(50, 30, 20, 10)
	got := Masonry{Column: 2}.Apply(Env{InlineSize: 210, Gap: 10}, items, End, nil)

	// Column width (210-10)/2 = 100.
	wantInline := []float64{0, 110, 110, 0}
	wantContent := []float64{0, 0, 40, 60}
	for i, it := range items {
		if it.InlinePos() != wantInline[i] || it.ContentPos() != wantContent[i] {
			t.Errorf("item %d at (%v, %v), want (%v, %v)", i, it.InlinePos(), it.ContentPos(), wantInline[i], wantContent[i])
		}
		if it.InlineSize() != 100 {
			t.Errorf("item %d inline size = %v", i, it.InlineSize())
		}
	}
	if !slices.Equal(got.End, []float64{70, 60}) || !slices.Equal(got.Start, []float64{0, 0}) {
		t.Errorf("outlines = %+v", got)
	}
}

func TestMasonryDerivedColumns(t *testing.T) {
	items := makeItems(10, 10, 10, 10)
	got := Masonry{}.Apply(Env{InlineSize: 320}, items, End, nil)
	if len(got.End) != 3 {
		t.Errorf("100px items in 320px should give 3 columns, got %d", len(got.End))
	}

	wide := makeItems(10)
	wide[0].Rect.Width = 1000
	if got := (Masonry{}).Apply(Env{InlineSize: 320}, wide, End, nil); len(got.End) != 1 {
		t.Errorf("oversized item should still give one column, got %d", len(got.End))
	}
}

func TestMasonryDirectionsAgree(t *testing.T) {
	env := Env{InlineSize: 210, Gap: 10}
	m := Masonry{Column: 1}
	items := makeItems(50, 30, 20)
	end := m.Apply(env, items, End, nil)
	want := contentPositions(items)

	start := m.Apply(env, items, Start, end.End)
	if got := contentPositions(items); !slices.Equal(got, want) {
		t.Errorf("start positions = %v, want %v", got, want)
	}
	if !slices.Equal(start.Start, []float64{0}) {
		t.Errorf("start outline = %v, want [0]", start.Start)
	}
}

func TestMasonryAppend(t *testing.T) {
	env := Env{InlineSize: 200}
	m := Masonry{Column: 2}
	first := m.Apply(env, makeItems(30, 10), End, nil)
	more := makeItems(5)
	m.Apply(env, more, End, first.End)
	if more[0].InlinePos() != 100 || more[0].ContentPos() != 10 {
		t.Errorf("appended item at (%v, %v), want shortest column", more[0].InlinePos(), more[0].ContentPos())
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		wantErr bool
	}{
		{"stack", nil, false},
		{"masonry", Params{"column": int64(3), "columnSize": 120.0}, false},
		{"masonry", Params{"column": 2.5}, true},
		{"masonry", Params{"column": "two"}, true},
		{"masonry", Params{"column": -1}, true},
		{"justified", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.name, tt.params)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%s) err = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrCodeInvalidStrategy) {
					t.Errorf("code = %s", errors.GetCode(err))
				}
				return
			}
			if s.Name() != tt.name {
				t.Errorf("Name = %s", s.Name())
			}
		})
	}
}

func TestOutlinesClone(t *testing.T) {
	o := Outlines{Start: []float64{1}, End: []float64{2}}
	c := o.Clone()
	c.End[0] = 9
	if o.End[0] != 2 {
		t.Error("Clone should copy slices")
	}
	if got := (Outlines{}).Clone(); got.Start == nil || got.End == nil {
		t.Error("Clone should not return nil slices")
	}
}
