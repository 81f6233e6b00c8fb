package planner

import (
	"errors"
	"fmt"

	"citytraffic/internal/sim/geom"
	"citytraffic/internal/sim/grid"
)

var (
	ErrEmptyStartPool = errors.New("start pool is empty")
	ErrDeadEnd        = errors.New("dead end")
	ErrNoExit         = errors.New("no border exit within step limit")
)

// Waypoint is one cell of a path. Momentum is the direction the vehicle had
// when it arrived; it grows in magnitude while the path runs straight.
type Waypoint struct {
	Coord    geom.Vec2 `json:"coord"`
	Momentum geom.Vec2 `json:"momentum"`
}

type Options struct {
	// MaxSteps bounds the walk; zero means 4*W*H.
	MaxSteps int
}

// PlanPath walks randomly over road cells from a start cell taken out of pool
// until it steps onto a border cell. It never reverses onto the cell it just
// left. Every candidate move is equally likely.
func PlanPath(rng Rand, pool *StartPool, border grid.CellSet, g *grid.Grid, opts Options) ([]Waypoint, error) {
	start, err := pool.Take(rng)
	if err != nil {
		return nil, err
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 4 * g.Width() * g.Height()
	}

	path := []Waypoint{{Coord: start}}
	candidates := make([]Waypoint, 0, len(geom.Dirs))
	for step := 0; ; step++ {
		if step >= maxSteps {
			return nil, fmt.Errorf("%w: %d steps from %v", ErrNoExit, maxSteps, start)
		}
		cur := path[len(path)-1]
		hasPrev := len(path) >= 2
		var prev geom.Vec2
		if hasPrev {
			prev = path[len(path)-2].Coord
		}

		candidates = candidates[:0]
		for _, d := range geom.Dirs {
			next := cur.Coord.Add(d)
			if !g.IsRoad(next) {
				continue
			}
			if hasPrev && next == prev {
				continue
			}
			m := d
			if cur.Momentum.IsParallelTo(d) {
				m = cur.Momentum.Add(d)
			}
			candidates = append(candidates, Waypoint{Coord: next, Momentum: m})
		}
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w at %v after %d steps", ErrDeadEnd, cur.Coord, len(path)-1)
		}

		next := candidates[rng.Intn(len(candidates))]
		path = append(path, next)
		if border.Has(next.Coord) {
			return path, nil
		}
	}
}
