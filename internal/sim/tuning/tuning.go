package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid tuning")

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	Grid    GridTuning    `yaml:"grid" json:"grid"`
	Traffic TrafficTuning `yaml:"traffic" json:"traffic"`
	Render  RenderTuning  `yaml:"render" json:"render"`
}

type GridTuning struct {
	Width        int     `yaml:"width" json:"width"`
	Height       int     `yaml:"height" json:"height"`
	BlockSize    int     `yaml:"block_size" json:"block_size"`
	CellSize     float64 `yaml:"cell_size" json:"cell_size"`
	DropPermille int     `yaml:"drop_permille" json:"drop_permille"`
}

type TrafficTuning struct {
	Vehicles             int `yaml:"vehicles" json:"vehicles"`
	MinVehicles          int `yaml:"min_vehicles" json:"min_vehicles"`
	MinPathLength        int `yaml:"min_path_length" json:"min_path_length"`
	FramesPerWaypointMin int `yaml:"frames_per_waypoint_min" json:"frames_per_waypoint_min"`
	FramesPerWaypointMax int `yaml:"frames_per_waypoint_max" json:"frames_per_waypoint_max"`
	CameraFrames         int `yaml:"camera_frames_per_waypoint" json:"camera_frames_per_waypoint"`
	MaxPlanSteps         int `yaml:"max_plan_steps" json:"max_plan_steps"`
}

type RenderTuning struct {
	FrameStep  int     `yaml:"frame_step" json:"frame_step"`
	LaneOffset float64 `yaml:"lane_offset" json:"lane_offset"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Grid: GridTuning{
			Width:        20,
			Height:       20,
			BlockSize:    6,
			CellSize:     1,
			DropPermille: 250,
		},
		Traffic: TrafficTuning{
			Vehicles:             10,
			MinVehicles:          5,
			MinPathLength:        5,
			FramesPerWaypointMin: 1,
			FramesPerWaypointMax: 5,
			CameraFrames:         3,
		},
		Render: RenderTuning{
			FrameStep:  1,
			LaneOffset: 0.15,
		},
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.fillDefaults()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// fillDefaults replaces zero values left by a partial document.
func (t *Tuning) fillDefaults() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	setInt(&t.Grid.Width, d.Grid.Width)
	setInt(&t.Grid.Height, d.Grid.Height)
	setInt(&t.Grid.BlockSize, d.Grid.BlockSize)
	if t.Grid.CellSize == 0 {
		t.Grid.CellSize = d.Grid.CellSize
	}
	setInt(&t.Traffic.Vehicles, d.Traffic.Vehicles)
	setInt(&t.Traffic.MinVehicles, d.Traffic.MinVehicles)
	setInt(&t.Traffic.MinPathLength, d.Traffic.MinPathLength)
	setInt(&t.Traffic.FramesPerWaypointMin, d.Traffic.FramesPerWaypointMin)
	setInt(&t.Traffic.FramesPerWaypointMax, d.Traffic.FramesPerWaypointMax)
	setInt(&t.Traffic.CameraFrames, d.Traffic.CameraFrames)
	setInt(&t.Render.FrameStep, d.Render.FrameStep)
	if t.Render.LaneOffset == 0 {
		t.Render.LaneOffset = d.Render.LaneOffset
	}
}

func setInt(p *int, def int) {
	if *p == 0 {
		*p = def
	}
}

func (t Tuning) Validate() error {
	switch {
	case t.Grid.Width < 3 || t.Grid.Height < 3:
		return fmt.Errorf("%w: grid %dx%d smaller than 3x3", ErrInvalid, t.Grid.Width, t.Grid.Height)
	case t.Grid.BlockSize < 2:
		return fmt.Errorf("%w: block_size %d < 2", ErrInvalid, t.Grid.BlockSize)
	case t.Grid.BlockSize/2 >= t.Grid.Width-1 || t.Grid.BlockSize/2 >= t.Grid.Height-1:
		return fmt.Errorf("%w: block_size %d leaves no street in a %dx%d grid", ErrInvalid,
			t.Grid.BlockSize, t.Grid.Width, t.Grid.Height)
	case t.Grid.CellSize <= 0:
		return fmt.Errorf("%w: cell_size %v", ErrInvalid, t.Grid.CellSize)
	case t.Grid.DropPermille < 0 || t.Grid.DropPermille > 1000:
		return fmt.Errorf("%w: drop_permille %d out of [0,1000]", ErrInvalid, t.Grid.DropPermille)
	case t.Traffic.Vehicles < 1:
		return fmt.Errorf("%w: vehicles %d", ErrInvalid, t.Traffic.Vehicles)
	case t.Traffic.MinVehicles < 1 || t.Traffic.MinVehicles > t.Traffic.Vehicles:
		return fmt.Errorf("%w: min_vehicles %d not in [1,%d]", ErrInvalid, t.Traffic.MinVehicles, t.Traffic.Vehicles)
	case t.Traffic.MinPathLength < 1:
		return fmt.Errorf("%w: min_path_length %d", ErrInvalid, t.Traffic.MinPathLength)
	case t.Traffic.FramesPerWaypointMin < 1 || t.Traffic.FramesPerWaypointMax < t.Traffic.FramesPerWaypointMin:
		return fmt.Errorf("%w: frames_per_waypoint range [%d,%d]", ErrInvalid,
			t.Traffic.FramesPerWaypointMin, t.Traffic.FramesPerWaypointMax)
	case t.Traffic.CameraFrames < 1:
		return fmt.Errorf("%w: camera_frames_per_waypoint %d", ErrInvalid, t.Traffic.CameraFrames)
	case t.Traffic.MaxPlanSteps < 0:
		return fmt.Errorf("%w: max_plan_steps %d", ErrInvalid, t.Traffic.MaxPlanSteps)
	case t.Render.FrameStep < 1:
		return fmt.Errorf("%w: frame_step %d", ErrInvalid, t.Render.FrameStep)
	case t.Render.LaneOffset < 0 || t.Render.LaneOffset >= 0.5:
		return fmt.Errorf("%w: lane_offset %v out of [0,0.5)", ErrInvalid, t.Render.LaneOffset)
	}
	return nil
}
