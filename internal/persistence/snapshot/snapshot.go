package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"citytraffic/internal/sim/grid"
)

const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version int    `json:"version"`
	SceneID string `json:"scene_id"`
	Seed    int64  `json:"seed"`
	WorthIt bool   `json:"worth_it"`
}

type SceneV1 struct {
	Header Header `json:"header"`

	Seed          int64       `json:"seed"`
	Grid          grid.FileV1 `json:"grid"`
	StartPoints   int         `json:"start_points"`
	Planned       int         `json:"planned"`
	CatalogDigest string      `json:"catalog_digest,omitempty"`
	TuningDigest  string      `json:"tuning_digest,omitempty"`

	Vehicles []VehicleV1 `json:"vehicles"`
	Decision DecisionV1  `json:"decision"`
	Tracks   []TrackV1   `json:"tracks,omitempty"`
}

type VehicleV1 struct {
	ID                string       `json:"id"`
	Model             string       `json:"model"`
	FramesPerWaypoint int          `json:"frames_per_waypoint"`
	Camera            bool         `json:"camera,omitempty"`
	Waypoints         []WaypointV1 `json:"waypoints"`
}

type WaypointV1 struct {
	Coord    [2]int `json:"coord"`
	Momentum [2]int `json:"momentum"`
}

type DecisionV1 struct {
	WorthIt  bool   `json:"worth_it"`
	Reason   string `json:"reason,omitempty"`
	EndFrame int    `json:"end_frame"`
	Frames   []int  `json:"frames"`
}

type TrackV1 struct {
	VehicleID string       `json:"vehicle_id"`
	Start     [3]float64   `json:"start"`
	Points    [][3]float64 `json:"points"`
	End       [3]float64   `json:"end"`
}

// Path is the conventional location of a scene snapshot under dataDir.
func Path(dataDir, sceneID string) string {
	return filepath.Join(dataDir, "snapshots", sceneID+".snap.zst")
}

// WriteSnapshot stores a JSON header line followed by the gob-encoded scene,
// all inside one zstd stream. The header lets tools peek without gob.
func WriteSnapshot(path string, snap SceneV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
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
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

func ReadSnapshot(path string) (SceneV1, error) {
	var snap SceneV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
