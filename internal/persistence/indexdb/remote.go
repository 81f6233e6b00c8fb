package indexdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"citytraffic/internal/persistence/snapshot"
	"citytraffic/internal/sim/catalogs"
	"citytraffic/internal/sim/tuning"
)

// RemoteConfig points at an HTTP ingest endpoint that accepts
// {"events":[{kind,source,payload}...]} batches.
type RemoteConfig struct {
	Endpoint      string
	Token         string
	Source        string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	QueueDepth    int
	Log           *zap.Logger
}

type RemoteIndex struct {
	cfg        RemoteConfig
	httpClient *http.Client
	log        *zap.Logger

	ch   chan remoteEvent
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropScene   atomic.Uint64
	dropArchive atomic.Uint64
	dropCatalog atomic.Uint64
	flushFail   atomic.Uint64
}

type remoteEvent struct {
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Payload any    `json:"payload"`
}

type remoteArchivePayload struct {
	SceneID      string `json:"scene_id"`
	ArchivedPath string `json:"archived_path"`
	RecordedAt   string `json:"recorded_at"`
}

func OpenRemote(cfg RemoteConfig) (*RemoteIndex, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty index ingest endpoint")
	}
	if cfg.Source == "" {
		cfg.Source = "citygen"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	d := &RemoteIndex{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		log:        log.Named("indexdb.remote"),
		ch:         make(chan remoteEvent, cfg.QueueDepth),
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.loop()
	}()
	return d, nil
}

// Close flushes whatever is queued and stops the sender.
func (d *RemoteIndex) Close() error {
	if d == nil {
		return nil
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.ch)
		d.wg.Wait()
		d.httpClient.CloseIdleConnections()
	})
	return nil
}

func (d *RemoteIndex) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(d.ch),
		QueueCapacity:    cap(d.ch),
		DropSceneTotal:   d.dropScene.Load(),
		DropArchiveTotal: d.dropArchive.Load(),
		DropCatalogTotal: d.dropCatalog.Load(),
		FlushFailTotal:   d.flushFail.Load(),
	}
}

func (d *RemoteIndex) RecordScene(path string, snap snapshot.SceneV1) {
	if d == nil || d.closed.Load() || snap.Header.SceneID == "" {
		return
	}
	d.enqueue(remoteEvent{Kind: "scene", Payload: sceneRowFrom(path, snap)}, &d.dropScene)
}

func (d *RemoteIndex) RecordArchive(sceneID, archivedPath string) {
	if d == nil || d.closed.Load() || sceneID == "" || strings.TrimSpace(archivedPath) == "" {
		return
	}
	d.enqueue(remoteEvent{Kind: "archive", Payload: remoteArchivePayload{
		SceneID:      sceneID,
		ArchivedPath: archivedPath,
		RecordedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}}, &d.dropArchive)
}

func (d *RemoteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if d == nil || d.closed.Load() {
		return nil
	}
	for _, r := range catalogRows(configDir, cats, tune) {
		if r.Name == "" || r.Digest == "" || r.JSON == "" {
			continue
		}
		d.enqueue(remoteEvent{Kind: "catalog", Payload: r}, &d.dropCatalog)
	}
	return nil
}

func (d *RemoteIndex) enqueue(ev remoteEvent, drops *atomic.Uint64) {
	ev.Source = d.cfg.Source
	select {
	case d.ch <- ev:
	default:
		drops.Add(1)
		d.log.Warn("index queue full; dropping event", zap.String("kind", ev.Kind))
	}
}

func (d *RemoteIndex) loop() {
	ticker := time.NewTicker(d.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]remoteEvent, 0, d.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := d.sendBatch(batch); err != nil {
			d.flushFail.Add(1)
			d.log.Warn("index flush failed", zap.Int("batch", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-d.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= d.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (d *RemoteIndex) sendBatch(events []remoteEvent) error {
	body := struct {
		Events []remoteEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequest(http.MethodPost, d.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if d.cfg.Token != "" {
			req.Header.Set("x-citygen-index-token", d.cfg.Token)
		}

		resp, err := d.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(25*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}
