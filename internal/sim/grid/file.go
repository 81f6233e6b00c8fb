package grid

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"citytraffic/internal/protocol"
	"citytraffic/internal/sim/encoding"
)

var ErrBadSnapshot = errors.New("bad grid snapshot")

// FileV1 is the on-disk grid snapshot. Cells holds one palette id per cell in
// x-major order, RLE encoded.
type FileV1 struct {
	Version  int        `json:"version"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	CellSize float64    `json:"cell_size"`
	Palette  [][]string `json:"palette"`
	Cells    string     `json:"cells"`
}

func (g *Grid) Encode() FileV1 {
	palette, ids := g.Palette()
	f := FileV1{
		Version:  1,
		Width:    g.width,
		Height:   g.height,
		CellSize: g.cellSize,
		Palette:  make([][]string, len(palette)),
		Cells:    encoding.EncodeRLE(ids),
	}
	for i, t := range palette {
		f.Palette[i] = append([]string{}, t...)
	}
	return f
}

func Decode(f FileV1) (*Grid, error) {
	if f.Version != 1 {
		return nil, fmt.Errorf("%w: version %d", ErrBadSnapshot, f.Version)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrBadSnapshot, f.Width, f.Height)
	}
	ids, err := encoding.DecodeRLE(f.Cells, f.Width*f.Height, len(f.Palette))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	palette := make([]Tags, len(f.Palette))
	for i, p := range f.Palette {
		palette[i] = NewTags(p...)
	}
	cells := make([][]Tags, f.Width)
	for x := 0; x < f.Width; x++ {
		cells[x] = make([]Tags, f.Height)
		for y := 0; y < f.Height; y++ {
			cells[x][y] = palette[ids[x*f.Height+y]]
		}
	}
	return New(cells, f.CellSize)
}

// Save writes the grid as JSON; a ".zst" suffix selects zstd compression.
func Save(path string, g *Grid) error {
	b, err := json.Marshal(g.Encode())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if !strings.HasSuffix(path, ".zst") {
		return os.WriteFile(path, b, 0o644)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if _, err := enc.Write(b); err != nil {
		_ = enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// Load reads a grid written by Save, validating it against the grid schema first.
func Load(path string) (*Grid, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		raw, err = io.ReadAll(dec)
		dec.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Grid, error) {
	if err := protocol.ValidateJSON(protocol.SchemaGrid, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	var f FileV1
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	return Decode(f)
}
