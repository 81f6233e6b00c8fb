package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// configWatcher calls reload once config files stop changing for debounce.
type configWatcher struct {
	w        *fsnotify.Watcher
	debounce time.Duration
	reload   func() error
	log      *zap.Logger
}

func newConfigWatcher(dirs []string, debounce time.Duration, reload func() error, log *zap.Logger) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for _, d := range dirs {
		d = filepath.Clean(d)
		if seen[d] {
			continue
		}
		seen[d] = true
		if st, err := os.Stat(d); err != nil || !st.IsDir() {
			continue
		}
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	return &configWatcher{w: w, debounce: debounce, reload: reload, log: log}, nil
}

// configDirs lists the directories whose files feed loadInputs.
func configDirs() []string {
	dirs := []string{configDir, filepath.Join(configDir, "vehicles.d")}
	if tp := strings.TrimSpace(tuningPath); tp != "" {
		dirs = append(dirs, filepath.Dir(tp))
	}
	return dirs
}

func isConfigFile(name string) bool {
	base := filepath.Base(name)
	switch {
	case strings.HasPrefix(base, "."), strings.HasSuffix(base, "~"):
		return false
	case base == "vehicles.json", base == "tuning.yaml":
		return true
	case tuningPath != "" && filepath.Clean(name) == filepath.Clean(tuningPath):
		return true
	case filepath.Base(filepath.Dir(name)) == "vehicles.d":
		return strings.HasSuffix(base, ".json")
	}
	return false
}

func (cw *configWatcher) run(ctx context.Context) {
	defer cw.w.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 || !isConfigFile(ev.Name) {
				continue
			}
			cw.log.Debug("config changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(cw.debounce)
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			cw.log.Warn("config watcher", zap.Error(err))
		case <-timer.C:
			if err := cw.reload(); err != nil {
				cw.log.Warn("config reload failed; keeping previous config", zap.Error(err))
				continue
			}
			cw.log.Info("config reloaded")
		}
	}
}
