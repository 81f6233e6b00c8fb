package planner

import (
	"citytraffic/internal/sim/geom"
)

// Rand is the randomness the planner consumes. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// StartPool holds the start cells not yet handed out. It has a single writer:
// the scene generator owns it for the planning phase and passes it to each
// PlanPath call. Order is preserved on removal so a seed replays exactly.
type StartPool struct {
	cells []geom.Vec2
}

func NewStartPool(cells []geom.Vec2) *StartPool {
	return &StartPool{cells: append([]geom.Vec2(nil), cells...)}
}

func (p *StartPool) Len() int { return len(p.cells) }

func (p *StartPool) Cells() []geom.Vec2 { return append([]geom.Vec2(nil), p.cells...) }

// Take removes and returns a uniformly chosen cell.
func (p *StartPool) Take(rng Rand) (geom.Vec2, error) {
	if len(p.cells) == 0 {
		return geom.Vec2{}, ErrEmptyStartPool
	}
	i := rng.Intn(len(p.cells))
	c := p.cells[i]
	p.cells = append(p.cells[:i], p.cells[i+1:]...)
	return c, nil
}
