package planner

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"citytraffic/internal/sim/geom"
	"citytraffic/internal/sim/grid"
)

// gridFromRows builds a grid from text rows; rows[y][x] == '#' is road.
func gridFromRows(t *testing.T, rows ...string) *grid.Grid {
	t.Helper()
	w, h := len(rows[0]), len(rows)
	cells := make([][]grid.Tags, w)
	for x := 0; x < w; x++ {
		cells[x] = make([]grid.Tags, h)
		for y := 0; y < h; y++ {
			if rows[y][x] == '#' {
				cells[x][y] = grid.NewTags(grid.TagRoad)
			}
		}
	}
	g, err := grid.New(cells, 1)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return g
}

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

func checkPath(t *testing.T, g *grid.Grid, starts, border grid.CellSet, path []Waypoint) {
	t.Helper()
	if len(path) < 2 {
		t.Fatalf("path too short: %v", path)
	}
	if !starts.Has(path[0].Coord) {
		t.Fatalf("start %v not in the initial pool", path[0].Coord)
	}
	if !path[0].Momentum.IsZero() {
		t.Fatalf("start momentum %v want zero", path[0].Momentum)
	}
	if !border.Has(path[len(path)-1].Coord) {
		t.Fatalf("end %v not a border cell", path[len(path)-1].Coord)
	}
	for i := 1; i < len(path); i++ {
		if !g.IsRoad(path[i].Coord) {
			t.Fatalf("waypoint %d %v is not road", i, path[i].Coord)
		}
		step := path[i].Coord.Sub(path[i-1].Coord)
		if step.Len() != 1 {
			t.Fatalf("waypoint %d: step %v is not a unit move", i, step)
		}
		if i >= 2 && path[i].Coord == path[i-2].Coord {
			t.Fatalf("waypoint %d reverses onto %v", i, path[i].Coord)
		}
		want := step
		if path[i-1].Momentum.IsParallelTo(step) {
			want = path[i-1].Momentum.Add(step)
		}
		if path[i].Momentum != want {
			t.Fatalf("waypoint %d momentum %v want %v", i, path[i].Momentum, want)
		}
		if i < len(path)-1 && border.Has(path[i].Coord) {
			t.Fatalf("path continues past border cell %v at %d", path[i].Coord, i)
		}
	}
}

func TestPlanPath_Invariants(t *testing.T) {
	g := gridFromRows(t,
		"#######",
		"#..#..#",
		"#######",
		"#..#..#",
		"#######",
	)
	border := g.BorderCells()
	borderSet := grid.NewCellSet(border...)
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		pool := NewStartPool(border)
		starts := grid.NewCellSet(pool.Cells()...)
		for pool.Len() > 0 {
			before := pool.Len()
			path, err := PlanPath(rng, pool, borderSet, g, Options{})
			if err != nil {
				t.Fatalf("seed %d: %v", seed, err)
			}
			if pool.Len() != before-1 {
				t.Fatalf("pool len %d want %d", pool.Len(), before-1)
			}
			checkPath(t, g, starts, borderSet, path)
		}
	}
}

func TestPlanPath_Deterministic(t *testing.T) {
	g := gridFromRows(t,
		"#####",
		"#.#.#",
		"#####",
		"#.#.#",
		"#####",
	)
	border := g.BorderCells()
	plan := func() [][]Waypoint {
		rng := rand.New(rand.NewSource(42))
		pool := NewStartPool(border)
		var out [][]Waypoint
		for i := 0; i < 5; i++ {
			p, err := PlanPath(rng, pool, grid.NewCellSet(border...), g, Options{})
			if err != nil {
				t.Fatalf("PlanPath: %v", err)
			}
			out = append(out, p)
		}
		return out
	}
	if diff := cmp.Diff(plan(), plan()); diff != "" {
		t.Fatalf("same seed, different paths (-a +b):\n%s", diff)
	}
}

func TestPlanPath_EmptyPool(t *testing.T) {
	g := gridFromRows(t, "###", "###", "###")
	_, err := PlanPath(fixedRand(0), NewStartPool(nil), grid.NewCellSet(g.BorderCells()...), g, Options{})
	if !errors.Is(err, ErrEmptyStartPool) {
		t.Fatalf("expected ErrEmptyStartPool, got %v", err)
	}
}

func TestPlanPath_DeadEnd(t *testing.T) {
	g := gridFromRows(t,
		"...",
		"##.",
		"...",
	)
	pool := NewStartPool([]geom.Vec2{geom.V(0, 1)})
	_, err := PlanPath(fixedRand(0), pool, grid.NewCellSet(g.BorderCells()...), g, Options{})
	if !errors.Is(err, ErrDeadEnd) {
		t.Fatalf("expected ErrDeadEnd, got %v", err)
	}
	if pool.Len() != 0 {
		t.Fatalf("start must be consumed even when planning fails")
	}
}

func TestPlanPath_NoExitWithinStepLimit(t *testing.T) {
	g := gridFromRows(t,
		".....",
		".###.",
		"##.#.",
		".###.",
		".....",
	)
	pool := NewStartPool([]geom.Vec2{geom.V(0, 2)})
	_, err := PlanPath(fixedRand(1), pool, grid.NewCellSet(g.BorderCells()...), g, Options{MaxSteps: 3})
	if !errors.Is(err, ErrNoExit) {
		t.Fatalf("expected ErrNoExit, got %v", err)
	}
}

func TestStartPool_TakePreservesOrder(t *testing.T) {
	cells := []geom.Vec2{geom.V(0, 1), geom.V(0, 2), geom.V(0, 3), geom.V(0, 4)}
	p := NewStartPool(cells)
	c, err := p.Take(fixedRand(1))
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if c != geom.V(0, 2) {
		t.Fatalf("took %v want (0,2)", c)
	}
	want := []geom.Vec2{geom.V(0, 1), geom.V(0, 3), geom.V(0, 4)}
	if diff := cmp.Diff(want, p.Cells()); diff != "" {
		t.Fatalf("remaining cells (-want +got):\n%s", diff)
	}
	if cells[1] != geom.V(0, 2) {
		t.Fatalf("caller slice mutated")
	}
}
