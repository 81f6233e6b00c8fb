package scene

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"citytraffic/internal/sim/geom"
	"citytraffic/internal/sim/grid"
)

func emptyGrid(t *testing.T, w, h int, cs float64) *grid.Grid {
	t.Helper()
	cells := make([][]grid.Tags, w)
	for x := range cells {
		cells[x] = make([]grid.Tags, h)
		for y := range cells[x] {
			cells[x][y] = grid.NewTags(grid.TagRoad)
		}
	}
	g, err := grid.New(cells, cs)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	return g
}

func TestProject_RightHandSide(t *testing.T) {
	g := emptyGrid(t, 4, 4, 2)
	v := vehicle(t, "a", 2, geom.V(0, 1), geom.V(1, 1), geom.V(2, 1))
	v.Camera = true
	tr, err := Project(g, v, 0.15)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	want := Track{
		VehicleID:         "a",
		Model:             "m",
		FramesPerWaypoint: 2,
		Camera:            true,
		Start:             [3]float64{-6, -2, 0},
		Points:            [][3]float64{{-4, -2, 0}, {-2, -2.3, 0}, {0, -2.3, 0}},
		End:               [3]float64{2, -2, 0},
	}
	if diff := cmp.Diff(want, tr, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("track (-want +got):\n%s", diff)
	}
}

func TestStreetPoint_Headings(t *testing.T) {
	g := emptyGrid(t, 2, 2, 1)
	centre := geom.V(1, 1).Float()
	cases := map[geom.Vec2][3]float64{
		geom.V(0, 1):  {0.15, 0, 0},
		geom.V(-3, 0): {0, 0.15, 0},
		geom.V(0, -2): {-0.15, 0, 0},
		{}:            {0, 0, 0},
	}
	for m, want := range cases {
		got, err := StreetPoint(g, centre, m, 0.15)
		if err != nil {
			t.Fatalf("StreetPoint(%v): %v", m, err)
		}
		if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Fatalf("heading %v (-want +got):\n%s", m, diff)
		}
	}
}

func TestProject_NeedsTwoWaypoints(t *testing.T) {
	g := emptyGrid(t, 3, 3, 1)
	v := vehicle(t, "a", 1, geom.V(0, 0))
	if _, err := Project(g, v, 0.15); !errors.Is(err, geom.ErrDegenerateVector) {
		t.Fatalf("expected ErrDegenerateVector, got %v", err)
	}
}
