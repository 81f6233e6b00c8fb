package geom

import (
	"errors"
	"fmt"
)

var ErrDegenerateVector = errors.New("degenerate vector")

// Vec2 is a grid-space vector. Momenta accumulate magnitude while a path runs
// straight, so length here is the L1 norm rather than the euclidean one.
type Vec2 struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Unit steps in the fixed neighbour order used by the planner.
var Dirs = [4]Vec2{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}

func V(x, y int) Vec2 { return Vec2{X: x, Y: y} }

// FromSlice builds a Vec2 from decoded data; anything but two components is rejected.
func FromSlice(xs []int) (Vec2, error) {
	if len(xs) != 2 {
		return Vec2{}, fmt.Errorf("%w: %d components", ErrDegenerateVector, len(xs))
	}
	return Vec2{X: xs[0], Y: xs[1]}, nil
}

func (v Vec2) Add(w Vec2) Vec2              { return Vec2{X: v.X + w.X, Y: v.Y + w.Y} }
func (v Vec2) Sub(w Vec2) Vec2              { return Vec2{X: v.X - w.X, Y: v.Y - w.Y} }
func (v Vec2) Scale(k int) Vec2             { return Vec2{X: v.X * k, Y: v.Y * k} }
func (v Vec2) Swap() Vec2                   { return Vec2{X: v.Y, Y: v.X} }
func (v Vec2) IsZero() bool                 { return v.X == 0 && v.Y == 0 }
func (v Vec2) Float() Vec2f                 { return Vec2f{X: float64(v.X), Y: float64(v.Y)} }
func (v Vec2) Slice() []int                 { return []int{v.X, v.Y} }
func (v Vec2) String() string               { return fmt.Sprintf("(%d,%d)", v.X, v.Y) }
func (v Vec2) Dot(w Vec2) int               { return v.X*w.X + v.Y*w.Y }
func (v Vec2) Cross(w Vec2) int             { return v.X*w.Y - v.Y*w.X }
func (v Vec2) Len() int                     { return absInt(v.X) + absInt(v.Y) }
func (v Vec2) Div(k float64) (Vec2f, error) { return v.Float().Div(k) }

// IsParallelTo reports whether v and w point the same way. The zero vector is
// parallel to everything.
func (v Vec2) IsParallelTo(w Vec2) bool {
	if v.IsZero() || w.IsZero() {
		return true
	}
	return v.Cross(w) == 0 && v.Dot(w) > 0
}

// IsAntiParallelTo reports whether v and w point opposite ways. The zero vector
// is anti-parallel to everything.
func (v Vec2) IsAntiParallelTo(w Vec2) bool {
	if v.IsZero() || w.IsZero() {
		return true
	}
	return v.IsParallelTo(w.Scale(-1))
}

// Vec2f is the real-valued companion of Vec2, used for world-space offsets.
type Vec2f struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2f) Add(w Vec2f) Vec2f     { return Vec2f{X: v.X + w.X, Y: v.Y + w.Y} }
func (v Vec2f) Sub(w Vec2f) Vec2f     { return Vec2f{X: v.X - w.X, Y: v.Y - w.Y} }
func (v Vec2f) Scale(k float64) Vec2f { return Vec2f{X: v.X * k, Y: v.Y * k} }
func (v Vec2f) Swap() Vec2f           { return Vec2f{X: v.Y, Y: v.X} }
func (v Vec2f) IsZero() bool          { return v.X == 0 && v.Y == 0 }

func (v Vec2f) Div(k float64) (Vec2f, error) {
	if k == 0 {
		return Vec2f{}, fmt.Errorf("%w: division by zero", ErrDegenerateVector)
	}
	return Vec2f{X: v.X / k, Y: v.Y / k}, nil
}

func (v Vec2f) Len() float64 {
	x, y := v.X, v.Y
	if x < 0 {
		x = -x
	}
	if y < 0 {
		y = -y
	}
	return x + y
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
