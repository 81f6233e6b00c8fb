package traffic

import (
	"fmt"

	"go.uber.org/zap"

	"citytraffic/internal/sim/geom"
)

// Reason names the predicate that found a conflict.
type Reason int

const (
	NoConflict Reason = iota
	StopsInPath
	DrivesThroughStanding
	DrivesThroughDriving
)

func (r Reason) String() string {
	switch r {
	case StopsInPath:
		return "stops_in_path"
	case DrivesThroughStanding:
		return "drives_through_standing"
	case DrivesThroughDriving:
		return "drives_through_driving"
	default:
		return "none"
	}
}

// Resolve truncates vehicles in priority order (index 0 first) until none of
// them conflicts with a higher-priority vehicle, then drops every vehicle left
// without a usable path. Earlier vehicles are final by the time a later one
// is checked against them.
func Resolve(vehicles []*Vehicle, log *zap.Logger) ([]*Vehicle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for i := 1; i < len(vehicles); i++ {
		car := vehicles[i]
		prio := usable(vehicles[:i])
		before := car.Len()
		for car.Len() > 1 {
			r, err := Collides(car, prio)
			if err != nil {
				return nil, err
			}
			if r == NoConflict {
				break
			}
			log.Debug("truncate",
				zap.String("vehicle", car.ID),
				zap.Stringer("reason", r),
				zap.Stringer("stop", car.StopCell()),
				zap.Int("waypoints", car.Len()),
			)
			car.Truncate()
		}
		if car.Len() != before {
			log.Debug("resolved",
				zap.String("vehicle", car.ID),
				zap.Int("before", before),
				zap.Int("after", car.Len()),
			)
		}
	}
	return usable(vehicles), nil
}

func usable(vs []*Vehicle) []*Vehicle {
	out := make([]*Vehicle, 0, len(vs))
	for _, v := range vs {
		if v.Len() > 1 {
			out = append(out, v)
		}
	}
	return out
}

// Collides runs the three predicates against the priority vehicles; the first
// one that holds wins.
func Collides(car *Vehicle, prio []*Vehicle) (Reason, error) {
	if StopsInPathOf(car, prio) {
		return StopsInPath, nil
	}
	for _, p := range prio {
		if StopsInPathOf(p, []*Vehicle{car}) {
			return DrivesThroughStanding, nil
		}
	}
	for _, p := range prio {
		hit, err := drivesThroughDriving(car, p)
		if err != nil {
			return NoConflict, err
		}
		if hit {
			return DrivesThroughDriving, nil
		}
	}
	return NoConflict, nil
}

// StopsInPathOf reports whether car comes to rest on a cell that one of the
// driving vehicles still occupies at or after car's stop frame.
func StopsInPathOf(car *Vehicle, driving []*Vehicle) bool {
	if car.Len() == 0 {
		return false
	}
	stop, at := car.StopCell(), car.StopFrame()
	for _, d := range driving {
		if !d.Visits(stop) {
			continue
		}
		for f := range d.FramesAt(stop) {
			if f >= at {
				return true
			}
		}
	}
	return false
}

func drivesThroughDriving(car, prio *Vehicle) (bool, error) {
	for _, c := range sharedCells(car, prio) {
		hit, err := conflictAt(car, prio, c)
		if err != nil || hit {
			return hit, err
		}
	}
	return false, nil
}

// sharedCells lists the cells both vehicles visit, in car's path order.
func sharedCells(car, prio *Vehicle) []geom.Vec2 {
	var out []geom.Vec2
	seen := map[geom.Vec2]struct{}{}
	for _, c := range car.cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if prio.Visits(c) {
			out = append(out, c)
		}
	}
	return out
}

// conflictAt walks car's visits to c in path order. For each visit it takes the
// first frame prio is also on c; that meeting is a collision if either vehicle
// is on its last waypoint, otherwise right of way decides.
func conflictAt(car, prio *Vehicle, c geom.Vec2) (bool, error) {
	prioFrames := prio.FramesAt(c)
	for _, i := range car.Occurrences(c) {
		shared, found := 0, false
		for _, f := range car.FramesFor(i) {
			if _, ok := prioFrames[f]; ok {
				shared, found = f, true
				break
			}
		}
		if !found {
			continue
		}
		carPos := car.WaypointFor(shared)
		prioPos := prio.WaypointFor(shared)
		if prioPos+2 > prio.Len() || carPos+2 > car.Len() {
			return true, nil
		}
		ok, err := givesWay(prio, prioPos, car, carPos)
		if err != nil {
			return false, fmt.Errorf("right of way at %v: %w", c, err)
		}
		if !ok {
			return true, nil
		}
	}
	return false, nil
}

// givesWay reports whether the moves of prio at prioPos and car at carPos can
// share a cell. Both end up on the same street: never. prio turning right:
// always, whatever car does. prio going left or straight: only if car turns
// right into the street prio came from, or both go straight in opposite
// directions.
//
// prio is the higher-priority vehicle, already resolved. The unconditional
// right turn belongs to prio, not to car; swapping the roles changes which
// vehicles get truncated and breaks replay of stored scenes.
func givesWay(prio *Vehicle, prioPos int, car *Vehicle, carPos int) (bool, error) {
	prioMove, err := prio.PredictTurn(prioPos)
	if err != nil {
		return false, err
	}
	carMove, err := car.PredictTurn(carPos)
	if err != nil {
		return false, err
	}
	prioAt := prio.waypoints[prioPos].Momentum
	prioAfter := prio.waypoints[prioPos+1].Momentum
	carAfter := car.waypoints[carPos+1].Momentum

	switch {
	case prioAfter.IsParallelTo(carAfter):
		return false, nil
	case prioMove == TurnRight:
		return true, nil
	case carMove == TurnRight && prioAt.IsAntiParallelTo(carAfter):
		return true, nil
	case prioMove == TurnStraight && carMove == TurnStraight && prioAfter.IsAntiParallelTo(carAfter):
		return true, nil
	}
	return false, nil
}
