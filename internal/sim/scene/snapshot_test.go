package scene

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"citytraffic/internal/persistence/snapshot"
)

func TestSnapshot_RoundTripThroughDisk(t *testing.T) {
	gen := testGenerator()
	for seed := int64(1); seed <= 5; seed++ {
		sc, err := gen.Generate(seed)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		p := snapshot.Path(t.TempDir(), sc.ID)
		if err := snapshot.WriteSnapshot(p, sc.Snapshot()); err != nil {
			t.Fatalf("WriteSnapshot: %v", err)
		}
		snap, err := snapshot.ReadSnapshot(p)
		if err != nil {
			t.Fatalf("ReadSnapshot: %v", err)
		}
		back, err := FromSnapshot(snap, gen.Tuning.Render.LaneOffset)
		if err != nil {
			t.Fatalf("FromSnapshot: %v", err)
		}
		if back.ID != sc.ID || back.StartPoints != sc.StartPoints {
			t.Fatalf("seed %d: header mismatch", seed)
		}
		if diff := cmp.Diff(view(sc.Vehicles), view(back.Vehicles)); diff != "" {
			t.Fatalf("seed %d: vehicles (-orig +back):\n%s", seed, diff)
		}
		if diff := cmp.Diff(sc.Decision, back.Decision, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("seed %d: decision (-orig +back):\n%s", seed, diff)
		}
		if diff := cmp.Diff(sc.Tracks, back.Tracks, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("seed %d: tracks (-orig +back):\n%s", seed, diff)
		}
		if diff := cmp.Diff(sc.Grid.Encode(), back.Grid.Encode()); diff != "" {
			t.Fatalf("seed %d: grid (-orig +back):\n%s", seed, diff)
		}
	}
}
