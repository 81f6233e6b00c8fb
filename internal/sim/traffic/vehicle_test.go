package traffic

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"citytraffic/internal/sim/geom"
	"citytraffic/internal/sim/planner"
)

// pathOf turns a cell sequence into waypoints with the planner's momentum rule.
func pathOf(cells ...geom.Vec2) []planner.Waypoint {
	out := make([]planner.Waypoint, len(cells))
	for i, c := range cells {
		out[i].Coord = c
		if i == 0 {
			continue
		}
		step := c.Sub(cells[i-1])
		m := step
		if out[i-1].Momentum.IsParallelTo(step) {
			m = out[i-1].Momentum.Add(step)
		}
		out[i].Momentum = m
	}
	return out
}

func mustVehicle(t *testing.T, id string, f int, cells ...geom.Vec2) *Vehicle {
	t.Helper()
	v, err := NewVehicle(id, "model", f, pathOf(cells...))
	if err != nil {
		t.Fatalf("NewVehicle: %v", err)
	}
	return v
}

func TestVehicle_Frames(t *testing.T) {
	v := mustVehicle(t, "a", 3, geom.V(0, 0), geom.V(1, 0), geom.V(2, 0))
	if diff := cmp.Diff([]int{6, 7, 8}, v.FramesFor(2)); diff != "" {
		t.Fatalf("FramesFor(2) (-want +got):\n%s", diff)
	}
	for frame, want := range map[int]int{0: 0, 2: 0, 3: 1, 8: 2} {
		if got := v.WaypointFor(frame); got != want {
			t.Fatalf("WaypointFor(%d)=%d want %d", frame, got, want)
		}
	}
	if v.StopFrame() != 6 || v.LastFrame() != 8 {
		t.Fatalf("stop=%d last=%d", v.StopFrame(), v.LastFrame())
	}
	if v.StopCell() != geom.V(2, 0) {
		t.Fatalf("stop cell %v", v.StopCell())
	}
}

func TestVehicle_FramesAtUnionsOccurrences(t *testing.T) {
	// A loop that passes (1,1) twice.
	v := mustVehicle(t, "a", 2,
		geom.V(0, 1), geom.V(1, 1), geom.V(2, 1), geom.V(2, 2), geom.V(1, 2), geom.V(1, 1), geom.V(1, 0))
	if diff := cmp.Diff([]int{1, 5}, v.Occurrences(geom.V(1, 1))); diff != "" {
		t.Fatalf("occurrences (-want +got):\n%s", diff)
	}
	want := map[int]struct{}{2: {}, 3: {}, 10: {}, 11: {}}
	if diff := cmp.Diff(want, v.FramesAt(geom.V(1, 1))); diff != "" {
		t.Fatalf("frames (-want +got):\n%s", diff)
	}
}

func TestVehicle_PredictTurnSigned(t *testing.T) {
	// East, east, then south: a right turn at index 2, then straight.
	v := mustVehicle(t, "a", 1, geom.V(0, 3), geom.V(1, 3), geom.V(2, 3), geom.V(2, 2), geom.V(2, 1))
	sign, err := v.TurnSign(2)
	if err != nil {
		t.Fatalf("TurnSign: %v", err)
	}
	if sign != -2 {
		t.Fatalf("sign=%d want -2", sign)
	}
	if turn, _ := v.PredictTurn(2); turn != TurnRight {
		t.Fatalf("turn=%v want right", turn)
	}
	if turn, _ := v.PredictTurn(3); turn != TurnStraight {
		t.Fatalf("turn=%v want straight", turn)
	}

	// East then north: left.
	w := mustVehicle(t, "b", 1, geom.V(0, 0), geom.V(1, 0), geom.V(1, 1))
	sign, _ = w.TurnSign(1)
	if sign != 1 {
		t.Fatalf("sign=%d want 1", sign)
	}
	if turn, _ := w.PredictTurn(1); turn != TurnLeft {
		t.Fatalf("turn=%v want left", turn)
	}
}

func TestVehicle_PredictTurnAtEnd(t *testing.T) {
	v := mustVehicle(t, "a", 1, geom.V(0, 0), geom.V(1, 0), geom.V(2, 0))
	for _, i := range []int{2, 3, -1} {
		if _, err := v.PredictTurn(i); !errors.Is(err, ErrInvalidTurnQuery) {
			t.Fatalf("PredictTurn(%d) err=%v", i, err)
		}
	}
}

func TestVehicle_TurnsAndLastTurn(t *testing.T) {
	v := mustVehicle(t, "a", 1,
		geom.V(0, 3), geom.V(1, 3), geom.V(1, 2), geom.V(1, 1), geom.V(2, 1), geom.V(3, 1))
	want := []Turn{TurnRight, TurnStraight, TurnLeft, TurnStraight}
	if diff := cmp.Diff(want, v.Turns()); diff != "" {
		t.Fatalf("turns (-want +got):\n%s", diff)
	}
	if i, ok := v.LastTurn(); !ok || i != 3 {
		t.Fatalf("LastTurn=%d,%v want 3,true", i, ok)
	}
	straight := mustVehicle(t, "b", 1, geom.V(0, 0), geom.V(1, 0), geom.V(2, 0), geom.V(3, 0))
	if straight.HasTurn() {
		t.Fatalf("straight path reports a turn")
	}
}

func TestVehicle_TruncateRefreshesCells(t *testing.T) {
	v := mustVehicle(t, "a", 1, geom.V(0, 0), geom.V(1, 0), geom.V(2, 0))
	v.Truncate()
	if diff := cmp.Diff([]geom.Vec2{geom.V(0, 0), geom.V(1, 0)}, v.Cells()); diff != "" {
		t.Fatalf("cells (-want +got):\n%s", diff)
	}
	if v.Visits(geom.V(2, 0)) {
		t.Fatalf("dropped cell still visited")
	}
}

func TestNewVehicle_BadFrames(t *testing.T) {
	if _, err := NewVehicle("a", "m", 0, pathOf(geom.V(0, 0), geom.V(1, 0))); !errors.Is(err, ErrBadFrames) {
		t.Fatalf("expected ErrBadFrames, got %v", err)
	}
}
