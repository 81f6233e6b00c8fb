package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_PartialFillsDefaults(t *testing.T) {
	p := writeFile(t, "grid:\n  width: 12\ntraffic:\n  vehicles: 6\n  min_vehicles: 3\nrender:\n  frame_step: 2\n")
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	want.Grid.Width = 12
	want.Traffic.Vehicles = 6
	want.Traffic.MinVehicles = 3
	want.Render.FrameStep = 2
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tuning (-want +got):\n%s", diff)
	}
}

func TestLoad_Invalid(t *testing.T) {
	p := writeFile(t, "traffic:\n  vehicles: 3\n  min_vehicles: 4\n")
	if _, err := Load(p); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	p = writeFile(t, "traffic:\n  frames_per_waypoint_min: 4\n  frames_per_waypoint_max: 2\n")
	if _, err := Load(p); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	p = writeFile(t, "grid:\n  width: 6\n  height: 6\n  block_size: 12\n")
	if _, err := Load(p); !errors.Is(err, ErrInvalid) {
		t.Fatalf("block_size without streets: expected ErrInvalid, got %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	p := writeFile(t, "grid: [unclosed\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Defaults(), got); diff != "" {
		t.Fatalf("configs/tuning.yaml drifted from Defaults (-want +got):\n%s", diff)
	}
}
