package grid

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"citytraffic/internal/sim/geom"
)

const (
	TagRoad         = "road"
	TagDistrictComm = "district=comm"
)

var (
	ErrOutOfRange      = errors.New("cell out of range")
	ErrPaletteOverflow = errors.New("too many distinct tag sets")
)

// MaxPalette is the number of distinct tag sets a grid may hold; palette ids
// are uint16.
const MaxPalette = 1 << 16

// Tags is a canonical (sorted, deduplicated) set of cell tags.
type Tags []string

func NewTags(tags ...string) Tags {
	if len(tags) == 0 {
		return nil
	}
	out := append([]string(nil), tags...)
	sort.Strings(out)
	j := 0
	for i, s := range out {
		if i > 0 && s == out[j-1] {
			continue
		}
		out[j] = s
		j++
	}
	return Tags(out[:j])
}

func (t Tags) Has(tag string) bool {
	i := sort.SearchStrings(t, tag)
	return i < len(t) && t[i] == tag
}

func (t Tags) Key() string { return strings.Join(t, "\x1f") }

// CellSet is a membership view over grid coordinates.
type CellSet map[geom.Vec2]struct{}

func NewCellSet(cells ...geom.Vec2) CellSet {
	s := make(CellSet, len(cells))
	for _, c := range cells {
		s[c] = struct{}{}
	}
	return s
}

func (s CellSet) Has(c geom.Vec2) bool {
	_, ok := s[c]
	return ok
}

// Grid is an immutable snapshot of the city layout. cells is indexed [x][y].
type Grid struct {
	cells    [][]Tags
	width    int
	height   int
	cellSize float64
}

// New copies cells into a Grid. The matrix must be non-empty and rectangular
// with at most MaxPalette distinct tag sets. A non-positive cellSize falls
// back to 1.
func New(cells [][]Tags, cellSize float64) (*Grid, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return nil, fmt.Errorf("grid: empty cell matrix")
	}
	w, h := len(cells), len(cells[0])
	cp := make([][]Tags, w)
	distinct := map[string]struct{}{}
	for x := range cells {
		if len(cells[x]) != h {
			return nil, fmt.Errorf("grid: column %d has %d cells, want %d", x, len(cells[x]), h)
		}
		cp[x] = make([]Tags, h)
		for y, t := range cells[x] {
			cp[x][y] = NewTags(t...)
			distinct[cp[x][y].Key()] = struct{}{}
		}
	}
	if len(distinct) > MaxPalette {
		return nil, fmt.Errorf("grid: %w: %d, at most %d", ErrPaletteOverflow, len(distinct), MaxPalette)
	}
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{cells: cp, width: w, height: h, cellSize: cellSize}, nil
}

func (g *Grid) Size() (w, h int)  { return g.width, g.height }
func (g *Grid) Width() int        { return g.width }
func (g *Grid) Height() int       { return g.height }
func (g *Grid) CellSize() float64 { return g.cellSize }

func (g *Grid) InBounds(c geom.Vec2) bool {
	return c.X >= 0 && c.X < g.width && c.Y >= 0 && c.Y < g.height
}

func (g *Grid) Tags(c geom.Vec2) (Tags, error) {
	if !g.InBounds(c) {
		return nil, fmt.Errorf("%w: %v in %dx%d", ErrOutOfRange, c, g.width, g.height)
	}
	return g.cells[c.X][c.Y], nil
}

// IsRoad is false for out-of-range cells.
func (g *Grid) IsRoad(c geom.Vec2) bool {
	if !g.InBounds(c) {
		return false
	}
	return g.cells[c.X][c.Y].Has(TagRoad)
}

// BorderCells lists the road cells on the four edges: column x=0, row y=0,
// column x=W-1, row y=H-1. Corners appear once, at their first position.
func (g *Grid) BorderCells() []geom.Vec2 {
	seen := CellSet{}
	var out []geom.Vec2
	add := func(c geom.Vec2) {
		if !g.IsRoad(c) || seen.Has(c) {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for y := 0; y < g.height; y++ {
		add(geom.V(0, y))
	}
	for x := 0; x < g.width; x++ {
		add(geom.V(x, 0))
	}
	for y := 0; y < g.height; y++ {
		add(geom.V(g.width-1, y))
	}
	for x := 0; x < g.width; x++ {
		add(geom.V(x, g.height-1))
	}
	return out
}

// ToWorld maps a grid cell to world space, centring the grid on the origin.
func (g *Grid) ToWorld(c geom.Vec2) [3]float64 { return g.ToWorldF(c.Float()) }

// ToWorldF is ToWorld for fractional grid positions.
func (g *Grid) ToWorldF(p geom.Vec2f) [3]float64 {
	return [3]float64{
		(p.X - float64(g.width)/2) * g.cellSize,
		(p.Y - float64(g.height)/2) * g.cellSize,
		0,
	}
}

// FromWorld is the inverse of ToWorld; z is ignored.
func (g *Grid) FromWorld(p [3]float64) geom.Vec2f {
	return geom.Vec2f{
		X: p[0]/g.cellSize + float64(g.width)/2,
		Y: p[1]/g.cellSize + float64(g.height)/2,
	}
}

// Palette returns the distinct tag sets in first-seen (x-major) order and the
// per-cell palette ids in the same order.
func (g *Grid) Palette() ([]Tags, []uint16) {
	index := map[string]uint16{}
	var palette []Tags
	ids := make([]uint16, 0, g.width*g.height)
	for x := 0; x < g.width; x++ {
		for y := 0; y < g.height; y++ {
			t := g.cells[x][y]
			id, ok := index[t.Key()]
			if !ok {
				id = uint16(len(palette))
				index[t.Key()] = id
				palette = append(palette, t)
			}
			ids = append(ids, id)
		}
	}
	return palette, ids
}

// RoadCount is the number of road cells.
func (g *Grid) RoadCount() int {
	n := 0
	for x := range g.cells {
		for _, t := range g.cells[x] {
			if t.Has(TagRoad) {
				n++
			}
		}
	}
	return n
}
