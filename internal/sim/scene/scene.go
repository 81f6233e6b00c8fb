package scene

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"citytraffic/internal/sim/catalogs"
	"citytraffic/internal/sim/grid"
	"citytraffic/internal/sim/planner"
	"citytraffic/internal/sim/traffic"
	"citytraffic/internal/sim/tuning"
)

var ErrNoModels = errors.New("no vehicle models")

var sceneNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("citytraffic/scene"))

// SceneID is stable for a seed.
func SceneID(seed int64) string {
	return uuid.NewSHA1(sceneNamespace, []byte(strconv.FormatInt(seed, 10))).String()
}

type Scene struct {
	ID          string
	Seed        int64
	Grid        *grid.Grid
	StartPoints int
	Planned     int
	// Vehicles are the survivors in priority order; the first carries the camera.
	Vehicles []*traffic.Vehicle
	Decision Decision
	Tracks   []Track
	Duration time.Duration
}

func (s *Scene) Camera() *traffic.Vehicle {
	if len(s.Vehicles) == 0 {
		return nil
	}
	return s.Vehicles[0]
}

// Generator builds scenes. A nil Grid means every scene gets its own
// procedural city seeded with the scene seed.
type Generator struct {
	Grid   *grid.Grid
	Models []catalogs.VehicleModel
	Tuning tuning.Tuning
	Log    *zap.Logger
}

func (gen *Generator) logger() *zap.Logger {
	if gen.Log == nil {
		return zap.NewNop()
	}
	return gen.Log
}

func (gen *Generator) gridFor(seed int64) (*grid.Grid, error) {
	if gen.Grid != nil {
		return gen.Grid, nil
	}
	gt := gen.Tuning.Grid
	return grid.Generate(grid.GenConfig{
		Width:        gt.Width,
		Height:       gt.Height,
		BlockSize:    gt.BlockSize,
		CellSize:     gt.CellSize,
		DropPermille: gt.DropPermille,
		Seed:         seed,
	})
}

type draft struct {
	id     string
	model  catalogs.VehicleModel
	frames int
}

// Generate runs one scene: pick models, plan a path per vehicle from the
// shared border pool, resolve conflicts in priority order and decide whether
// the result is worth rendering. The same seed always yields the same scene.
func (gen *Generator) Generate(seed int64) (*Scene, error) {
	if len(gen.Models) == 0 {
		return nil, ErrNoModels
	}
	if err := gen.Tuning.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	log := gen.logger().With(zap.Int64("seed", seed))
	tt := gen.Tuning.Traffic

	g, err := gen.gridFor(seed)
	if err != nil {
		return nil, fmt.Errorf("scene %d: grid: %w", seed, err)
	}
	rng := rand.New(rand.NewSource(seed))
	border := g.BorderCells()
	borderSet := grid.NewCellSet(border...)
	pool := planner.NewStartPool(border)
	sc := &Scene{ID: SceneID(seed), Seed: seed, Grid: g, StartPoints: len(border)}

	drafts := make([]draft, tt.Vehicles)
	for i := range drafts {
		m := gen.Models[rng.Intn(len(gen.Models))]
		frames := tt.FramesPerWaypointMin + rng.Intn(tt.FramesPerWaypointMax-tt.FramesPerWaypointMin+1)
		drafts[i] = draft{id: fmt.Sprintf("v%02d", i), model: m, frames: frames}
	}

	var vehicles []*traffic.Vehicle
	for _, d := range drafts {
		path, err := planner.PlanPath(rng, pool, borderSet, g, planner.Options{MaxSteps: tt.MaxPlanSteps})
		if errors.Is(err, planner.ErrEmptyStartPool) {
			break
		}
		if errors.Is(err, planner.ErrDeadEnd) || errors.Is(err, planner.ErrNoExit) {
			log.Warn("vehicle excluded", zap.String("vehicle", d.id), zap.Error(err))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scene %d: plan %s: %w", seed, d.id, err)
		}
		frames := d.frames
		if len(vehicles) == 0 {
			// The first planned vehicle carries the camera.
			frames = tt.CameraFrames
		}
		v, err := traffic.NewVehicle(d.id, d.model.ID, frames, path)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", seed, err)
		}
		vehicles = append(vehicles, v)
		log.Info("vehicle planned",
			zap.String("vehicle", v.ID),
			zap.String("model", v.Model),
			zap.Int("frames_per_waypoint", v.FramesPerWaypoint),
			zap.Int("waypoints", v.Len()),
			zap.Stringers("turns", v.Turns()),
		)
		if pool.Len() == 0 {
			break
		}
	}
	sc.Planned = len(vehicles)

	survivors, err := traffic.Resolve(vehicles, log)
	if err != nil {
		return nil, fmt.Errorf("scene %d: resolve: %w", seed, err)
	}
	if len(survivors) > 0 {
		survivors[0].Camera = true
	}
	sc.Vehicles = survivors
	sc.Decision = Decide(survivors, sc.StartPoints, tt, gen.Tuning.Render.FrameStep)

	if sc.Decision.WorthIt {
		for _, v := range survivors {
			tr, err := Project(g, v, gen.Tuning.Render.LaneOffset)
			if err != nil {
				return nil, fmt.Errorf("scene %d: %w", seed, err)
			}
			sc.Tracks = append(sc.Tracks, tr)
		}
	}
	sc.Duration = time.Since(start)

	log.Info("scene generated",
		zap.String("scene_id", sc.ID),
		zap.Int("planned", sc.Planned),
		zap.Int("survivors", len(survivors)),
		zap.Bool("worth_it", sc.Decision.WorthIt),
		zap.String("reason", sc.Decision.Reason),
		zap.Int("end_frame", sc.Decision.EndFrame),
		zap.Duration("took", sc.Duration),
	)
	return sc, nil
}

// LogEntry is the one-line record of a generated scene.
type LogEntry struct {
	SceneID     string       `json:"scene_id"`
	Seed        int64        `json:"seed"`
	Grid        [2]int       `json:"grid"`
	StartPoints int          `json:"start_points"`
	Planned     int          `json:"planned"`
	Survivors   int          `json:"survivors"`
	WorthIt     bool         `json:"worth_it"`
	Reason      string       `json:"reason,omitempty"`
	EndFrame    int          `json:"end_frame"`
	Frames      int          `json:"frames"`
	Vehicles    []LogVehicle `json:"vehicles"`
	DurationMS  float64      `json:"duration_ms"`
	Snapshot    string       `json:"snapshot,omitempty"`
}

type LogVehicle struct {
	ID                string   `json:"id"`
	Model             string   `json:"model"`
	FramesPerWaypoint int      `json:"frames_per_waypoint"`
	Waypoints         int      `json:"waypoints"`
	Turns             []string `json:"turns"`
	Camera            bool     `json:"camera,omitempty"`
}

func (s *Scene) LogEntry(snapshotPath string) LogEntry {
	e := LogEntry{
		SceneID:     s.ID,
		Seed:        s.Seed,
		Grid:        [2]int{s.Grid.Width(), s.Grid.Height()},
		StartPoints: s.StartPoints,
		Planned:     s.Planned,
		Survivors:   len(s.Vehicles),
		WorthIt:     s.Decision.WorthIt,
		Reason:      s.Decision.Reason,
		EndFrame:    s.Decision.EndFrame,
		Frames:      len(s.Decision.Frames),
		DurationMS:  float64(s.Duration.Microseconds()) / 1000,
		Snapshot:    snapshotPath,
	}
	for _, v := range s.Vehicles {
		lv := LogVehicle{
			ID:                v.ID,
			Model:             v.Model,
			FramesPerWaypoint: v.FramesPerWaypoint,
			Waypoints:         v.Len(),
			Turns:             []string{},
			Camera:            v.Camera,
		}
		for _, t := range v.Turns() {
			lv.Turns = append(lv.Turns, t.String())
		}
		e.Vehicles = append(e.Vehicles, lv)
	}
	return e
}
