package grid

import (
	"citytraffic/internal/sim/mathx"
)

// GenConfig describes a lattice city: a road every BlockSize cells in both
// directions, with commercial districts between them.
type GenConfig struct {
	Width        int
	Height       int
	BlockSize    int
	CellSize     float64
	DropPermille int
	Seed         int64
}

// Generate builds a lattice city. Road lines run at BlockSize/2,
// BlockSize/2+BlockSize, ... and never on the last row or column, so streets
// only touch the border where they end. Interior segments between two
// intersections are removed with probability DropPermille/1000, decided by a
// seeded hash of the segment; the end pieces leading to the border are kept.
func Generate(cfg GenConfig) (*Grid, error) {
	if cfg.BlockSize < 2 {
		cfg.BlockSize = 2
	}
	w, h, b := cfg.Width, cfg.Height, cfg.BlockSize
	off := b / 2
	drop := mathx.ClampPermille(cfg.DropPermille)

	isLine := func(v, size int) bool { return v%b == off && v < size-1 }
	lastLine := func(size int) int {
		last := -1
		for v := 0; v < size; v++ {
			if isLine(v, size) {
				last = v
			}
		}
		return last
	}
	lastX, lastY := lastLine(w), lastLine(h)

	cells := make([][]Tags, w)
	for x := 0; x < w; x++ {
		cells[x] = make([]Tags, h)
		for y := 0; y < h; y++ {
			onX, onY := isLine(x, w), isLine(y, h)
			if !onX && !onY {
				cells[x][y] = NewTags(TagDistrictComm)
				continue
			}
			dropped := false
			switch {
			case onX && onY:
			case onY && x > off && x < lastX:
				// Horizontal segment: identified by its row and block column.
				dropped = mathx.Permille(mathx.Hash3(cfg.Seed, 0, y, (x-off)/b)) < drop
			case onX && y > off && y < lastY:
				dropped = mathx.Permille(mathx.Hash3(cfg.Seed, 1, x, (y-off)/b)) < drop
			}
			if dropped {
				cells[x][y] = NewTags(TagDistrictComm)
			} else {
				cells[x][y] = NewTags(TagRoad)
			}
		}
	}
	return New(cells, cfg.CellSize)
}
