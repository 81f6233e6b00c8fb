package scene

import (
	"fmt"

	"citytraffic/internal/persistence/snapshot"
	"citytraffic/internal/sim/geom"
	"citytraffic/internal/sim/grid"
	"citytraffic/internal/sim/planner"
	"citytraffic/internal/sim/traffic"
)

func (s *Scene) Snapshot() snapshot.SceneV1 {
	snap := snapshot.SceneV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			SceneID: s.ID,
			Seed:    s.Seed,
			WorthIt: s.Decision.WorthIt,
		},
		Seed:        s.Seed,
		Grid:        s.Grid.Encode(),
		StartPoints: s.StartPoints,
		Planned:     s.Planned,
		Decision: snapshot.DecisionV1{
			WorthIt:  s.Decision.WorthIt,
			Reason:   s.Decision.Reason,
			EndFrame: s.Decision.EndFrame,
			Frames:   append([]int(nil), s.Decision.Frames...),
		},
	}
	for _, v := range s.Vehicles {
		vv := snapshot.VehicleV1{
			ID:                v.ID,
			Model:             v.Model,
			FramesPerWaypoint: v.FramesPerWaypoint,
			Camera:            v.Camera,
		}
		for _, w := range v.Waypoints() {
			vv.Waypoints = append(vv.Waypoints, snapshot.WaypointV1{
				Coord:    [2]int{w.Coord.X, w.Coord.Y},
				Momentum: [2]int{w.Momentum.X, w.Momentum.Y},
			})
		}
		snap.Vehicles = append(snap.Vehicles, vv)
	}
	for _, tr := range s.Tracks {
		snap.Tracks = append(snap.Tracks, snapshot.TrackV1{
			VehicleID: tr.VehicleID,
			Start:     tr.Start,
			Points:    tr.Points,
			End:       tr.End,
		})
	}
	return snap
}

// FromSnapshot rebuilds a scene. Tracks are re-derived from the waypoints with
// laneOffset rather than trusted from the file.
func FromSnapshot(snap snapshot.SceneV1, laneOffset float64) (*Scene, error) {
	g, err := grid.Decode(snap.Grid)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", snap.Header.SceneID, err)
	}
	s := &Scene{
		ID:          snap.Header.SceneID,
		Seed:        snap.Seed,
		Grid:        g,
		StartPoints: snap.StartPoints,
		Planned:     snap.Planned,
		Decision: Decision{
			WorthIt:  snap.Decision.WorthIt,
			Reason:   snap.Decision.Reason,
			EndFrame: snap.Decision.EndFrame,
			Frames:   append([]int{}, snap.Decision.Frames...),
		},
	}
	for _, vv := range snap.Vehicles {
		wps := make([]planner.Waypoint, len(vv.Waypoints))
		for i, w := range vv.Waypoints {
			wps[i] = planner.Waypoint{
				Coord:    geom.V(w.Coord[0], w.Coord[1]),
				Momentum: geom.V(w.Momentum[0], w.Momentum[1]),
			}
		}
		v, err := traffic.NewVehicle(vv.ID, vv.Model, vv.FramesPerWaypoint, wps)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", s.ID, err)
		}
		v.Camera = vv.Camera
		s.Vehicles = append(s.Vehicles, v)
	}
	if s.Decision.WorthIt {
		for _, v := range s.Vehicles {
			tr, err := Project(g, v, laneOffset)
			if err != nil {
				return nil, fmt.Errorf("scene %s: %w", s.ID, err)
			}
			s.Tracks = append(s.Tracks, tr)
		}
	}
	return s, nil
}
