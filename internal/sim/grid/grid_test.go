package grid

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"citytraffic/internal/sim/geom"
)

// fromRows builds a grid from row strings indexed [y][x]; '#' is road.
func fromRows(t *testing.T, rows ...string) *Grid {
	t.Helper()
	h, w := len(rows), len(rows[0])
	cells := make([][]Tags, w)
	for x := 0; x < w; x++ {
		cells[x] = make([]Tags, h)
		for y := 0; y < h; y++ {
			if rows[y][x] == '#' {
				cells[x][y] = NewTags(TagRoad)
			} else {
				cells[x][y] = NewTags(TagDistrictComm)
			}
		}
	}
	g, err := New(cells, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNew_RejectsRaggedAndEmpty(t *testing.T) {
	if _, err := New(nil, 1); err == nil {
		t.Fatalf("expected empty grid to fail")
	}
	ragged := [][]Tags{{NewTags(TagRoad)}, {NewTags(TagRoad), NewTags(TagRoad)}}
	if _, err := New(ragged, 1); err == nil {
		t.Fatalf("expected ragged grid to fail")
	}
}

func TestNew_RejectsPaletteOverflow(t *testing.T) {
	build := func(n int) [][]Tags {
		const h = 256
		cells := make([][]Tags, (n+h-1)/h)
		i := 0
		for x := range cells {
			cells[x] = make([]Tags, h)
			for y := range cells[x] {
				if i < n {
					cells[x][y] = NewTags(fmt.Sprintf("lot=%d", i))
				} else {
					cells[x][y] = NewTags(TagRoad)
				}
				i++
			}
		}
		return cells
	}
	// MaxPalette-1 distinct lots plus the road tag fill the palette exactly.
	g, err := New(build(MaxPalette-1), 1)
	if err != nil {
		t.Fatalf("New at the limit: %v", err)
	}
	palette, _ := g.Palette()
	if len(palette) != MaxPalette {
		t.Fatalf("palette=%d want %d", len(palette), MaxPalette)
	}
	if _, err := New(build(MaxPalette+1), 1); !errors.Is(err, ErrPaletteOverflow) {
		t.Fatalf("expected ErrPaletteOverflow, got %v", err)
	}
}

func TestTags_CanonicalAndHas(t *testing.T) {
	tags := NewTags("road", "district=comm", "road")
	if diff := cmp.Diff(Tags{"district=comm", "road"}, tags); diff != "" {
		t.Fatalf("tags mismatch (-want +got):\n%s", diff)
	}
	if !tags.Has(TagRoad) || tags.Has("water") {
		t.Fatalf("Has mismatch for %v", tags)
	}
}

func TestBorderCells_OrderAndDedupe(t *testing.T) {
	g := fromRows(t,
		"#.#",
		"###",
		"#.#",
	)
	want := []geom.Vec2{
		{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: 2},
		{X: 2, Y: 0},
		{X: 2, Y: 1}, {X: 2, Y: 2},
	}
	if diff := cmp.Diff(want, g.BorderCells()); diff != "" {
		t.Fatalf("border mismatch (-want +got):\n%s", diff)
	}
	for _, c := range g.BorderCells() {
		if !g.IsRoad(c) {
			t.Fatalf("border cell %v is not road", c)
		}
	}
}

func TestTags_OutOfRange(t *testing.T) {
	g := fromRows(t, "##", "##")
	if _, err := g.Tags(geom.V(2, 0)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if _, err := g.Tags(geom.V(0, -1)); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if g.IsRoad(geom.V(-1, 0)) {
		t.Fatalf("out of range cell reported as road")
	}
}

func TestWorldTransformRoundTrip(t *testing.T) {
	cells := make([][]Tags, 4)
	for x := range cells {
		cells[x] = make([]Tags, 6)
	}
	g, err := New(cells, 2.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p := g.ToWorld(geom.V(0, 0))
	if p != [3]float64{-5, -7.5, 0} {
		t.Fatalf("ToWorld(0,0)=%v", p)
	}
	for x := 0; x < 4; x++ {
		for y := 0; y < 6; y++ {
			back := g.FromWorld(g.ToWorld(geom.V(x, y)))
			if math.Abs(back.X-float64(x)) > 1e-9 || math.Abs(back.Y-float64(y)) > 1e-9 {
				t.Fatalf("round trip (%d,%d) -> %v", x, y, back)
			}
		}
	}
}
