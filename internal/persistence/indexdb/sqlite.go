package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"citytraffic/internal/persistence/snapshot"
	"citytraffic/internal/sim/catalogs"
	"citytraffic/internal/sim/tuning"
)

const (
	schemaVersion     = "1"
	defaultQueueDepth = 4096
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropScene   atomic.Uint64
	dropArchive atomic.Uint64
	flushFail   atomic.Uint64
}

type reqKind int

const (
	reqScene reqKind = iota + 1
	reqArchive
	reqFlush
)

type req struct {
	kind reqKind

	scene   SceneRow
	archive archiveRow
	done    chan struct{}
}

type archiveRow struct {
	SceneID string
	Path    string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, defaultQueueDepth)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if queue <= 0 {
		queue = defaultQueueDepth
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scenes (
			scene_id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			worth_it INTEGER NOT NULL,
			reason TEXT,
			start_points INTEGER NOT NULL,
			planned INTEGER NOT NULL,
			vehicles INTEGER NOT NULL,
			end_frame INTEGER NOT NULL,
			frames_json TEXT NOT NULL,
			snapshot_path TEXT NOT NULL,
			archived_path TEXT,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_seed ON scenes(seed);`,
		`CREATE INDEX IF NOT EXISTS idx_scenes_worth_it ON scenes(worth_it, seed);`,
		`CREATE TABLE IF NOT EXISTS scene_vehicles (
			scene_id TEXT NOT NULL REFERENCES scenes(scene_id) ON DELETE CASCADE,
			priority INTEGER NOT NULL,
			vehicle_id TEXT NOT NULL,
			model TEXT NOT NULL,
			frames_per_waypoint INTEGER NOT NULL,
			waypoints INTEGER NOT NULL,
			camera INTEGER NOT NULL,
			path_json TEXT NOT NULL,
			PRIMARY KEY (scene_id, priority)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scene_vehicles_model ON scene_vehicles(model);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropSceneTotal:   s.dropScene.Load(),
		DropArchiveTotal: s.dropArchive.Load(),
		FlushFailTotal:   s.flushFail.Load(),
	}
}

func (s *SQLiteIndex) RecordScene(path string, snap snapshot.SceneV1) {
	if s == nil || s.closed.Load() {
		return
	}
	if snap.Header.SceneID == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqScene, scene: sceneRowFrom(path, snap)}:
	default:
		// Snapshots and the scene log remain the source of truth.
		s.dropScene.Add(1)
	}
}

func (s *SQLiteIndex) RecordArchive(sceneID, archivedPath string) {
	if s == nil || s.closed.Load() {
		return
	}
	if sceneID == "" || archivedPath == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqArchive, archive: archiveRow{SceneID: sceneID, Path: archivedPath}}:
	default:
		s.dropArchive.Add(1)
	}
}

// Flush blocks until every request queued before it has been committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	rows := catalogRows(configDir, cats, tune)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, schemaVersion); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.Name == "" || r.Digest == "" || r.JSON == "" {
			continue
		}
		if _, err := stmt.Exec(r.Name, r.Digest, r.JSON, r.UpdatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Scenes reads indexed scenes ordered by seed. Call Flush first to observe
// recently queued writes.
func (s *SQLiteIndex) Scenes(ctx context.Context, onlyWorthIt bool) ([]SceneRow, error) {
	q := `SELECT scene_id,seed,worth_it,COALESCE(reason,''),start_points,planned,vehicles,end_frame,frames_json,snapshot_path,COALESCE(archived_path,''),recorded_at FROM scenes`
	if onlyWorthIt {
		q += ` WHERE worth_it=1`
	}
	q += ` ORDER BY seed, scene_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SceneRow
	for rows.Next() {
		var (
			r      SceneRow
			worth  int
			frames string
		)
		if err := rows.Scan(&r.SceneID, &r.Seed, &worth, &r.Reason, &r.StartPoints, &r.Planned, &r.Vehicles, &r.EndFrame, &frames, &r.SnapshotPath, &r.ArchivedPath, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.WorthIt = worth != 0
		if err := json.Unmarshal([]byte(frames), &r.Frames); err != nil {
			return nil, fmt.Errorf("scene %s frames: %w", r.SceneID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) SceneVehicles(ctx context.Context, sceneID string) ([]VehicleRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT priority,vehicle_id,model,frames_per_waypoint,waypoints,camera,path_json FROM scene_vehicles WHERE scene_id=? ORDER BY priority`,
		sceneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VehicleRow
	for rows.Next() {
		var (
			v    VehicleRow
			cam  int
			path string
		)
		if err := rows.Scan(&v.Priority, &v.VehicleID, &v.Model, &v.FramesPerWaypoint, &v.Waypoints, &cam, &path); err != nil {
			return nil, err
		}
		v.Camera = cam != 0
		if err := json.Unmarshal([]byte(path), &v.Path); err != nil {
			return nil, fmt.Errorf("vehicle %s path: %w", v.VehicleID, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertScene, _ := s.db.Prepare(`INSERT OR REPLACE INTO scenes(scene_id,seed,worth_it,reason,start_points,planned,vehicles,end_frame,frames_json,snapshot_path,archived_path,recorded_at) VALUES(?,?,?,?,?,?,?,?,?,?,NULL,?)`)
	deleteVehicles, _ := s.db.Prepare(`DELETE FROM scene_vehicles WHERE scene_id=?`)
	insertVehicle, _ := s.db.Prepare(`INSERT OR REPLACE INTO scene_vehicles(scene_id,priority,vehicle_id,model,frames_per_waypoint,waypoints,camera,path_json) VALUES(?,?,?,?,?,?,?,?)`)
	updateArchive, _ := s.db.Prepare(`UPDATE scenes SET archived_path=? WHERE scene_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertScene, deleteVehicles, insertVehicle, updateArchive} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.flushFail.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.flushFail.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	// Commit whenever the queue drains so the single connection is not held
	// by an idle transaction.
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqScene:
			sc := r.scene
			frames, _ := json.Marshal(sc.Frames)
			if !exec(insertScene,
				sc.SceneID, sc.Seed, boolInt(sc.WorthIt), sc.Reason,
				sc.StartPoints, sc.Planned, sc.Vehicles, sc.EndFrame,
				string(frames), sc.SnapshotPath, sc.RecordedAt,
			) {
				continue
			}
			if !exec(deleteVehicles, sc.SceneID) {
				continue
			}
			for _, v := range sc.VehicleRows {
				path, _ := json.Marshal(v.Path)
				if !exec(insertVehicle,
					sc.SceneID, v.Priority, v.VehicleID, v.Model,
					v.FramesPerWaypoint, v.Waypoints, boolInt(v.Camera), string(path),
				) {
					break
				}
			}

		case reqArchive:
			if !exec(updateArchive, r.archive.Path, r.archive.SceneID) {
				continue
			}
		}
		flushIfNeeded()
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
