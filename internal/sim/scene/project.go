package scene

import (
	"fmt"

	"citytraffic/internal/sim/geom"
	"citytraffic/internal/sim/grid"
	"citytraffic/internal/sim/traffic"
)

// Track is a vehicle path in world space, driven on the right-hand side of
// the street. Start and End are lead-in and lead-out points one cell beyond
// the path.
type Track struct {
	VehicleID         string       `json:"vehicle_id"`
	Model             string       `json:"model"`
	FramesPerWaypoint int          `json:"frames_per_waypoint"`
	Camera            bool         `json:"camera"`
	Start             [3]float64   `json:"start"`
	Points            [][3]float64 `json:"points"`
	End               [3]float64   `json:"end"`
}

// StreetPoint offsets the world position of p by laneOffset cells to the right
// of the heading m. A zero heading is not offset.
func StreetPoint(g *grid.Grid, p geom.Vec2f, m geom.Vec2, laneOffset float64) ([3]float64, error) {
	base := g.ToWorldF(p)
	if m.IsZero() {
		return base, nil
	}
	off, err := m.Swap().Float().Scale(laneOffset * g.CellSize()).Div(float64(m.Len()))
	if err != nil {
		return base, err
	}
	return [3]float64{base[0] + off.X, base[1] - off.Y, base[2]}, nil
}

func Project(g *grid.Grid, v *traffic.Vehicle, laneOffset float64) (Track, error) {
	if v.Len() < 2 {
		return Track{}, fmt.Errorf("project %s: %w: %d waypoints", v.ID, geom.ErrDegenerateVector, v.Len())
	}
	tr := Track{
		VehicleID:         v.ID,
		Model:             v.Model,
		FramesPerWaypoint: v.FramesPerWaypoint,
		Camera:            v.Camera,
		Points:            make([][3]float64, v.Len()),
	}
	for i, w := range v.Waypoints() {
		pt, err := StreetPoint(g, w.Coord.Float(), w.Momentum, laneOffset)
		if err != nil {
			return Track{}, fmt.Errorf("project %s waypoint %d: %w", v.ID, i, err)
		}
		tr.Points[i] = pt
	}

	first, second := v.Waypoint(0), v.Waypoint(1)
	tr.Start = g.ToWorldF(first.Coord.Sub(second.Momentum).Float())

	last := v.Waypoint(v.Len() - 1)
	step, err := last.Momentum.Div(float64(last.Momentum.Len()))
	if err != nil {
		return Track{}, fmt.Errorf("project %s lead-out: %w", v.ID, err)
	}
	tr.End = g.ToWorldF(last.Coord.Float().Add(step))
	return tr, nil
}
