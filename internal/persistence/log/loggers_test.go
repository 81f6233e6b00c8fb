package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"citytraffic/internal/sim/scene"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "x")
	clock := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := w.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := []string{
		filepath.Join(dir, "x-2024-05-01-10.jsonl.zst"),
		filepath.Join(dir, "x-2024-05-01-11.jsonl.zst"),
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
	var lines []string
	for _, f := range files {
		if err := ReadJSONL(f, func(b []byte) error { lines = append(lines, string(b)); return nil }); err != nil {
			t.Fatalf("ReadJSONL: %v", err)
		}
	}
	if diff := cmp.Diff([]string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, lines); diff != "" {
		t.Fatalf("lines (-want +got):\n%s", diff)
	}
}

func TestJSONLZstdWriter_ReopenAppends(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "x")
		w.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
		if err := w.Write(i); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	var n int
	err := ReadJSONL(filepath.Join(dir, "x-2024-05-01-10.jsonl.zst"), func([]byte) error { n++; return nil })
	if err != nil {
		t.Fatalf("ReadJSONL: %v", err)
	}
	if n != 2 {
		t.Fatalf("lines=%d want 2", n)
	}
}

func TestSceneLogger_ReadAll(t *testing.T) {
	l := NewSceneLogger(t.TempDir())
	in := []scene.LogEntry{
		{SceneID: "a", Seed: 1, Survivors: 5, WorthIt: true, EndFrame: 12, Frames: 3,
			Vehicles: []scene.LogVehicle{{ID: "v00", Model: "car01", FramesPerWaypoint: 3, Waypoints: 6, Turns: []string{"straight", "left"}, Camera: true}}},
		{SceneID: "b", Seed: 2, Reason: "too_few_vehicles"},
	}
	for _, e := range in {
		if err := l.WriteScene(e); err != nil {
			t.Fatalf("WriteScene: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	out, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("entries (-want +got):\n%s", diff)
	}
}
