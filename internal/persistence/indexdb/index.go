package indexdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"citytraffic/internal/persistence/snapshot"
	"citytraffic/internal/sim/catalogs"
	"citytraffic/internal/sim/tuning"
)

// Index is a secondary read model over generated scenes. Writes are queued and
// may be dropped under backpressure; snapshots and the scene log remain the
// source of truth.
type Index interface {
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordScene(path string, snap snapshot.SceneV1)
	RecordArchive(sceneID, archivedPath string)
	Stats() Stats
	Close() error
}

var (
	_ Index = (*SQLiteIndex)(nil)
	_ Index = (*RemoteIndex)(nil)
)

type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropSceneTotal   uint64
	DropArchiveTotal uint64
	DropCatalogTotal uint64
	FlushFailTotal   uint64
}

type OpenConfig struct {
	// Backend is "sqlite" (default), "remote" or "none".
	Backend string
	DataDir string
	Remote  RemoteConfig
	Log     *zap.Logger
}

// Open returns a nil Index for the "none" backend.
func Open(cfg OpenConfig) (Index, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", "sqlite":
		idx, err := OpenSQLite(filepath.Join(cfg.DataDir, "index", "scenes.sqlite"))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "none", "off", "disabled":
		return nil, nil
	case "remote":
		rc := cfg.Remote
		if rc.Log == nil {
			rc.Log = cfg.Log
		}
		idx, err := OpenRemote(rc)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}

// SceneRow is the indexed summary of one scene snapshot.
type SceneRow struct {
	SceneID      string       `json:"scene_id"`
	Seed         int64        `json:"seed"`
	WorthIt      bool         `json:"worth_it"`
	Reason       string       `json:"reason,omitempty"`
	StartPoints  int          `json:"start_points"`
	Planned      int          `json:"planned"`
	Vehicles     int          `json:"vehicles"`
	EndFrame     int          `json:"end_frame"`
	Frames       []int        `json:"frames"`
	SnapshotPath string       `json:"snapshot_path"`
	ArchivedPath string       `json:"archived_path,omitempty"`
	RecordedAt   string       `json:"recorded_at"`
	VehicleRows  []VehicleRow `json:"vehicle_rows,omitempty"`
}

type VehicleRow struct {
	Priority          int      `json:"priority"`
	VehicleID         string   `json:"vehicle_id"`
	Model             string   `json:"model"`
	FramesPerWaypoint int      `json:"frames_per_waypoint"`
	Waypoints         int      `json:"waypoints"`
	Camera            bool     `json:"camera"`
	Path              [][2]int `json:"path"`
}

func sceneRowFrom(path string, snap snapshot.SceneV1) SceneRow {
	r := SceneRow{
		SceneID:      snap.Header.SceneID,
		Seed:         snap.Seed,
		WorthIt:      snap.Decision.WorthIt,
		Reason:       snap.Decision.Reason,
		StartPoints:  snap.StartPoints,
		Planned:      snap.Planned,
		Vehicles:     len(snap.Vehicles),
		EndFrame:     snap.Decision.EndFrame,
		Frames:       append([]int{}, snap.Decision.Frames...),
		SnapshotPath: path,
		RecordedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}
	for i, v := range snap.Vehicles {
		vr := VehicleRow{
			Priority:          i,
			VehicleID:         v.ID,
			Model:             v.Model,
			FramesPerWaypoint: v.FramesPerWaypoint,
			Waypoints:         len(v.Waypoints),
			Camera:            v.Camera,
			Path:              make([][2]int, len(v.Waypoints)),
		}
		for j, w := range v.Waypoints {
			vr.Path[j] = w.Coord
		}
		r.VehicleRows = append(r.VehicleRows, vr)
	}
	return r
}

type catalogRow struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	JSON      string `json:"json"`
	UpdatedAt string `json:"updated_at"`
}

// catalogRows canonicalises what the generator actually runs with: the raw
// vehicle catalog file, its palette and the effective tuning.
func catalogRows(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) []catalogRow {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var rows []catalogRow
	if cats != nil {
		if configDir != "" {
			if b, err := os.ReadFile(filepath.Join(configDir, "vehicles.json")); err == nil && len(b) > 0 {
				rows = append(rows, catalogRow{Name: "vehicles_defs", Digest: cats.Vehicles.Digest, JSON: string(b), UpdatedAt: now})
			}
		}
		if b, err := json.Marshal(cats.Vehicles.Models); err == nil {
			rows = append(rows, catalogRow{Name: "vehicles", Digest: cats.Vehicles.Digest, JSON: string(b), UpdatedAt: now})
		}
	}
	if b, err := json.Marshal(tune); err == nil {
		rows = append(rows, catalogRow{Name: "tuning", Digest: TuningDigest(tune), JSON: string(b), UpdatedAt: now})
	}
	return rows
}

func TuningDigest(tune tuning.Tuning) string {
	b, _ := json.Marshal(tune)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
