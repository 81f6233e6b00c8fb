package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"citytraffic/internal/persistence/indexdb"
	"citytraffic/internal/persistence/snapshot"
	"citytraffic/internal/sim/grid"
)

var replayCmd = &cobra.Command{
	Use:   "replay [snapshot...]",
	Short: "Regenerate scenes from their snapshots and verify they match",
	Long: `Regenerate each scene from its seed on the snapshot's own grid, using the
current catalogs and tuning, and compare the result with the stored snapshot.
Without arguments every snapshot under <data>/snapshots is checked.`,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func listSnapshots(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		var err error
		paths, err = listSnapshots(filepath.Join(dataDir, "snapshots"))
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no snapshots found in %s", filepath.Join(dataDir, "snapshots"))
		}
	}

	in, err := loadInputs("")
	if err != nil {
		return err
	}
	tuningDigest := indexdb.TuningDigest(in.tune)

	checked := 0
	for _, p := range paths {
		want, err := snapshot.ReadSnapshot(p)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		if want.CatalogDigest != "" && want.CatalogDigest != in.cats.Vehicles.Digest {
			logger.Warn("vehicle catalog changed since snapshot", zap.String("scene", want.Header.SceneID))
		}
		if want.TuningDigest != "" && want.TuningDigest != tuningDigest {
			logger.Warn("tuning changed since snapshot", zap.String("scene", want.Header.SceneID))
		}

		g, err := grid.Decode(want.Grid)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		gen := in.generator()
		gen.Grid = g
		s, err := gen.Generate(want.Seed)
		if err != nil {
			return fmt.Errorf("%s: regenerate: %w", filepath.Base(p), err)
		}
		got := s.Snapshot()
		if diff := cmp.Diff(want, got,
			cmpopts.EquateEmpty(),
			cmpopts.IgnoreFields(snapshot.SceneV1{}, "CatalogDigest", "TuningDigest"),
		); diff != "" {
			return fmt.Errorf("scene %s (seed %d) does not replay (-stored +regenerated):\n%s", want.Header.SceneID, want.Seed, diff)
		}
		checked++
	}
	fmt.Fprintf(cmd.OutOrStdout(), "replay ok: checked=%d scenes\n", checked)
	return nil
}
