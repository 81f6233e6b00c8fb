package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"citytraffic/internal/persistence/indexdb"
	"citytraffic/internal/sim/scene"
	"citytraffic/internal/transport/observer"
)

var (
	serveAddr        string
	serveEvery       time.Duration
	serveSeed        int64
	serveGrid        string
	serveAllowRemote bool
	serveWatch       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Generate scenes continuously and stream them to observers",
	Long: `Generate one scene every --every, store it like "generate" does and push it
to websocket observers on ` + observer.Path + `.

/healthz answers ok; /metrics exposes generator, observer and index counters.
With --watch, edits to tuning.yaml or the vehicle catalog apply to the next
scene; an invalid edit is logged and the previous config stays in use.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().DurationVar(&serveEvery, "every", 2*time.Second, "Interval between scenes")
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 1, "Seed of the first scene")
	serveCmd.Flags().StringVar(&serveGrid, "grid", "", "Grid file shared by every scene (default: procedural per seed)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload tuning.yaml and the vehicle catalog when they change")
	serveCmd.Flags().BoolVar(&serveAllowRemote, "allow-remote-observers", false, "Accept observer connections from non-loopback addresses")
}

type producerStats struct {
	generated atomic.Uint64
	worthIt   atomic.Uint64
	failed    atomic.Uint64
	lastSeed  atomic.Int64
}

// produce generates, stores and publishes one scene per tick until ctx ends.
func produce(ctx context.Context, gens *atomic.Pointer[scene.Generator], st *sceneStore, hub *observer.Hub, seed int64, every time.Duration, stats *producerStats) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		s, err := gens.Load().Generate(seed)
		switch {
		case err != nil:
			stats.failed.Add(1)
			logger.Warn("generate scene", zap.Int64("seed", seed), zap.Error(err))
		default:
			stats.generated.Add(1)
			stats.lastSeed.Store(seed)
			if s.Decision.WorthIt {
				stats.worthIt.Add(1)
			}
			if _, err := st.Store(s); err != nil {
				stats.failed.Add(1)
				logger.Warn("store scene", zap.String("scene", s.ID), zap.Error(err))
			}
			if err := hub.Publish(s); err != nil {
				logger.Warn("publish scene", zap.String("scene", s.ID), zap.Error(err))
			}
		}
		seed++

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveEvery <= 0 {
		return fmt.Errorf("--every must be positive")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signalContext(ctx)
	defer cancel()

	in, err := loadInputs(serveGrid)
	if err != nil {
		return err
	}
	st, err := openStore(in)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := observer.NewHub(logger.Named("observer"), 0)
	obs := observer.NewServer(hub, logger.Named("observer"))
	obs.AllowRemote = serveAllowRemote

	var gens atomic.Pointer[scene.Generator]
	gens.Store(in.generator())

	if serveWatch {
		cw, err := newConfigWatcher(configDirs(), 0, func() error {
			next, err := loadInputs(serveGrid)
			if err != nil {
				return err
			}
			gens.Store(next.generator())
			st.useInputs(next)
			return nil
		}, logger.Named("watch"))
		if err != nil {
			return fmt.Errorf("watch configs: %w", err)
		}
		go cw.run(ctx)
	}

	stats := &producerStats{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		produce(ctx, &gens, st, hub, serveSeed, serveEvery, stats)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		writeMetrics(rw, stats, hub.Stats(), st.Stats())
	})
	obs.Register(mux)

	srv := &http.Server{
		Addr:              serveAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Info("listening", zap.String("addr", serveAddr), zap.Duration("every", serveEvery))
	err = srv.ListenAndServe()
	cancel()
	<-done
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func writeMetrics(rw http.ResponseWriter, p *producerStats, h observer.HubStats, idx indexdb.Stats) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	gauge := func(name, help string, v any) {
		fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(rw, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
	}

	counter("citygen_scenes_generated_total", "Scenes generated.", p.generated.Load())
	counter("citygen_scenes_worth_it_total", "Scenes worth rendering.", p.worthIt.Load())
	counter("citygen_scenes_failed_total", "Scenes that failed to generate or store.", p.failed.Load())
	gauge("citygen_last_seed", "Seed of the last generated scene.", p.lastSeed.Load())

	gauge("citygen_observers", "Connected observers.", h.Subscribers)
	counter("citygen_observer_published_total", "Scenes published to observers.", h.Published)
	counter("citygen_observer_dropped_total", "Observers dropped as slow consumers.", h.Dropped)

	gauge("citygen_index_queue_depth", "Index writer queue depth.", idx.QueueDepth)
	gauge("citygen_index_queue_capacity", "Index writer queue capacity.", idx.QueueCapacity)
	counter("citygen_index_drop_scene_total", "Scene rows dropped under backpressure.", idx.DropSceneTotal)
	counter("citygen_index_drop_archive_total", "Archive updates dropped under backpressure.", idx.DropArchiveTotal)
	counter("citygen_index_flush_fail_total", "Failed index flushes.", idx.FlushFailTotal)
}
