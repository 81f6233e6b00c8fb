package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"citytraffic/internal/persistence/archive"
	"citytraffic/internal/persistence/indexdb"
	persistlog "citytraffic/internal/persistence/log"
	"citytraffic/internal/persistence/snapshot"
	"citytraffic/internal/sim/catalogs"
	"citytraffic/internal/sim/grid"
	"citytraffic/internal/sim/scene"
	"citytraffic/internal/sim/tuning"
)

type inputs struct {
	cats *catalogs.Catalogs
	tune tuning.Tuning
	// grid is nil when every scene gets its own procedural city.
	grid *grid.Grid
}

func loadInputs(gridPath string) (inputs, error) {
	var in inputs
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return in, fmt.Errorf("load catalogs: %w", err)
	}
	in.cats = cats

	tune, err := loadTuning()
	if err != nil {
		return in, err
	}
	in.tune = tune

	if gridPath = strings.TrimSpace(gridPath); gridPath != "" {
		g, err := grid.Load(gridPath)
		if err != nil {
			return in, fmt.Errorf("load grid: %w", err)
		}
		in.grid = g
	}
	return in, nil
}

func loadTuning() (tuning.Tuning, error) {
	tp := strings.TrimSpace(tuningPath)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return tune, fmt.Errorf("load tuning: %w", err)
		}
		logger.Warn("tuning not found; using defaults", zap.String("path", tp))
		tune = tuning.Defaults()
	}
	return tune, nil
}

func (in inputs) generator() *scene.Generator {
	return &scene.Generator{
		Grid:   in.grid,
		Models: in.cats.Vehicles.Models,
		Tuning: in.tune,
		Log:    logger,
	}
}

// sceneStore persists generated scenes: snapshot first, then the scene log,
// the index and the archive. Only the snapshot write is fatal.
type sceneStore struct {
	dataDir string
	digests atomic.Pointer[inputDigests]

	scenes *persistlog.SceneLogger
	idx    indexdb.Index
	log    *zap.Logger
}

type inputDigests struct {
	catalog string
	tuning  string
}

type storedScene struct {
	SnapshotPath string
	ArchivedPath string
}

func openStore(in inputs) (*sceneStore, error) {
	idx, err := indexdb.Open(indexdb.OpenConfig{
		Backend: indexBackend,
		DataDir: dataDir,
		Remote: indexdb.RemoteConfig{
			Endpoint: indexURL,
			Token:    indexToken,
		},
		Log: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open index backend: %w", err)
	}
	st := &sceneStore{
		dataDir: dataDir,
		scenes:  persistlog.NewSceneLogger(dataDir),
		idx:     idx,
		log:     logger,
	}
	st.useInputs(in)
	return st, nil
}

// useInputs records the catalogs and tuning that subsequent scenes are
// generated with.
func (st *sceneStore) useInputs(in inputs) {
	st.digests.Store(&inputDigests{
		catalog: in.cats.Vehicles.Digest,
		tuning:  indexdb.TuningDigest(in.tune),
	})
	if st.idx != nil {
		if err := st.idx.UpsertCatalogs(configDir, in.cats, in.tune); err != nil {
			st.log.Warn("index catalogs", zap.Error(err))
		}
	}
}

func (st *sceneStore) Store(s *scene.Scene) (storedScene, error) {
	var out storedScene
	snap := s.Snapshot()
	d := st.digests.Load()
	snap.CatalogDigest = d.catalog
	snap.TuningDigest = d.tuning

	path := snapshot.Path(st.dataDir, s.ID)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return out, fmt.Errorf("snapshot %s: %w", s.ID, err)
	}
	out.SnapshotPath = path

	if err := st.scenes.WriteScene(s.LogEntry(path)); err != nil {
		st.log.Warn("scene log write", zap.String("scene", s.ID), zap.Error(err))
	}
	if st.idx != nil {
		st.idx.RecordScene(path, snap)
	}

	archivedPath, ok, err := archive.ArchiveScene(st.dataDir, path, snap)
	switch {
	case err != nil:
		st.log.Warn("archive scene", zap.String("scene", s.ID), zap.Error(err))
	case ok:
		out.ArchivedPath = archivedPath
		if st.idx != nil {
			st.idx.RecordArchive(s.ID, archivedPath)
		}
	}
	return out, nil
}

func (st *sceneStore) Stats() indexdb.Stats {
	if st.idx == nil {
		return indexdb.Stats{}
	}
	return st.idx.Stats()
}

func (st *sceneStore) Close() error {
	err := st.scenes.Close()
	if st.idx != nil {
		if cerr := st.idx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
