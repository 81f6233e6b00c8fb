package traffic

import (
	"errors"
	"fmt"

	"citytraffic/internal/sim/geom"
	"citytraffic/internal/sim/planner"
)

var (
	ErrInvalidTurnQuery = errors.New("nothing to predict at path end")
	ErrBadFrames        = errors.New("frames per waypoint must be positive")
)

type Turn int

const (
	TurnStraight Turn = iota
	TurnLeft
	TurnRight
)

func (t Turn) String() string {
	switch t {
	case TurnLeft:
		return "left"
	case TurnRight:
		return "right"
	default:
		return "straight"
	}
}

// Vehicle is a planned path plus its timing. The vehicle spends
// FramesPerWaypoint frames on every waypoint, so waypoint i covers frames
// [i*f, i*f+f-1].
type Vehicle struct {
	ID                string
	Model             string
	FramesPerWaypoint int
	Camera            bool

	waypoints []planner.Waypoint
	cells     []geom.Vec2
}

func NewVehicle(id, model string, framesPerWaypoint int, waypoints []planner.Waypoint) (*Vehicle, error) {
	if framesPerWaypoint <= 0 {
		return nil, fmt.Errorf("vehicle %s: %w (got %d)", id, ErrBadFrames, framesPerWaypoint)
	}
	v := &Vehicle{ID: id, Model: model, FramesPerWaypoint: framesPerWaypoint}
	v.setWaypoints(append([]planner.Waypoint(nil), waypoints...))
	return v, nil
}

func (v *Vehicle) setWaypoints(wps []planner.Waypoint) {
	v.waypoints = wps
	v.cells = make([]geom.Vec2, len(wps))
	for i, w := range wps {
		v.cells[i] = w.Coord
	}
}

// Truncate drops the last waypoint.
func (v *Vehicle) Truncate() {
	if len(v.waypoints) == 0 {
		return
	}
	v.setWaypoints(v.waypoints[:len(v.waypoints)-1])
}

func (v *Vehicle) Clone() *Vehicle {
	c := *v
	c.setWaypoints(append([]planner.Waypoint(nil), v.waypoints...))
	return &c
}

func (v *Vehicle) Len() int { return len(v.waypoints) }

func (v *Vehicle) Waypoints() []planner.Waypoint {
	return append([]planner.Waypoint(nil), v.waypoints...)
}

func (v *Vehicle) Waypoint(i int) planner.Waypoint { return v.waypoints[i] }

func (v *Vehicle) Cells() []geom.Vec2 { return append([]geom.Vec2(nil), v.cells...) }

func (v *Vehicle) FramesFor(i int) []int {
	f := v.FramesPerWaypoint
	out := make([]int, f)
	for k := range out {
		out[k] = i*f + k
	}
	return out
}

func (v *Vehicle) WaypointFor(frame int) int { return frame / v.FramesPerWaypoint }

// Occurrences lists the waypoint indices at cell c in path order.
func (v *Vehicle) Occurrences(c geom.Vec2) []int {
	var out []int
	for i, cell := range v.cells {
		if cell == c {
			out = append(out, i)
		}
	}
	return out
}

// FramesAt is the set of frames during which the vehicle occupies c.
func (v *Vehicle) FramesAt(c geom.Vec2) map[int]struct{} {
	out := map[int]struct{}{}
	for _, i := range v.Occurrences(c) {
		for _, f := range v.FramesFor(i) {
			out[f] = struct{}{}
		}
	}
	return out
}

func (v *Vehicle) Visits(c geom.Vec2) bool {
	for _, cell := range v.cells {
		if cell == c {
			return true
		}
	}
	return false
}

func (v *Vehicle) StopCell() geom.Vec2 { return v.cells[len(v.cells)-1] }

func (v *Vehicle) StopFrame() int { return (len(v.waypoints) - 1) * v.FramesPerWaypoint }

// LastFrame is the final frame spent on the last waypoint.
func (v *Vehicle) LastFrame() int { return len(v.waypoints)*v.FramesPerWaypoint - 1 }

// TurnSign is the z component of momentum[i] x momentum[i+1]. Negative is a
// right turn, positive a left turn.
func (v *Vehicle) TurnSign(i int) (int, error) {
	if i < 0 || i+1 > len(v.waypoints)-1 {
		return 0, fmt.Errorf("vehicle %s: %w (index %d, %d waypoints)", v.ID, ErrInvalidTurnQuery, i, len(v.waypoints))
	}
	return v.waypoints[i].Momentum.Cross(v.waypoints[i+1].Momentum), nil
}

func (v *Vehicle) PredictTurn(i int) (Turn, error) {
	s, err := v.TurnSign(i)
	if err != nil {
		return TurnStraight, err
	}
	switch {
	case s < 0:
		return TurnRight, nil
	case s > 0:
		return TurnLeft, nil
	}
	return TurnStraight, nil
}

// Turns predicts the move at every inner waypoint, indices 1..len-2.
func (v *Vehicle) Turns() []Turn {
	if len(v.waypoints) < 3 {
		return nil
	}
	out := make([]Turn, 0, len(v.waypoints)-2)
	for i := 1; i < len(v.waypoints)-1; i++ {
		t, _ := v.PredictTurn(i)
		out = append(out, t)
	}
	return out
}

// LastTurn is the largest inner index with a non-straight move.
func (v *Vehicle) LastTurn() (int, bool) {
	for i := len(v.waypoints) - 2; i >= 1; i-- {
		if t, _ := v.PredictTurn(i); t != TurnStraight {
			return i, true
		}
	}
	return 0, false
}

func (v *Vehicle) HasTurn() bool {
	_, ok := v.LastTurn()
	return ok
}
