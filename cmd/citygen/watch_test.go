package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func copyConfigs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"tuning.yaml", "vehicles.json"} {
		b, err := os.ReadFile(filepath.Join("..", "..", "configs", name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestIsConfigFile(t *testing.T) {
	tuningPath = ""
	cases := map[string]bool{
		"configs/tuning.yaml":            true,
		"configs/vehicles.json":          true,
		"configs/vehicles.d/trucks.json": true,
		"configs/vehicles.d/README.md":   false,
		"configs/.tuning.yaml.swp":       false,
		"configs/tuning.yaml~":           false,
		"configs/other.json":             false,
	}
	for name, want := range cases {
		if got := isConfigFile(name); got != want {
			t.Fatalf("isConfigFile(%q)=%v want %v", name, got, want)
		}
	}
}

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	logger = zap.NewNop()
	configDir = copyConfigs(t)
	tuningPath = ""

	reloaded := make(chan struct{}, 8)
	cw, err := newConfigWatcher(configDirs(), 20*time.Millisecond, func() error {
		reloaded <- struct{}{}
		return nil
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("newConfigWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		cw.run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Unrelated files never trigger a reload.
	if err := os.WriteFile(filepath.Join(configDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	select {
	case <-reloaded:
		t.Fatalf("reload triggered by unrelated file")
	case <-time.After(150 * time.Millisecond):
	}

	tp := filepath.Join(configDir, "tuning.yaml")
	b, err := os.ReadFile(tp)
	if err != nil {
		t.Fatalf("read tuning: %v", err)
	}
	if err := os.WriteFile(tp, append(b, '\n'), 0o644); err != nil {
		t.Fatalf("write tuning: %v", err)
	}
	select {
	case <-reloaded:
	case <-time.After(3 * time.Second):
		t.Fatalf("no reload after tuning.yaml changed")
	}
}
