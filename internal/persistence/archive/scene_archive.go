package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"citytraffic/internal/persistence/snapshot"
)

type SceneArchiveMeta struct {
	SceneID   string `json:"scene_id"`
	Seed      int64  `json:"seed"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
	Vehicles  int    `json:"vehicles"`
	EndFrame  int    `json:"end_frame"`
	Frames    []int  `json:"frames"`
}

// ArchiveScene copies the snapshot of a scene worth rendering into
// dataDir/archives/scene_<id>/ next to a meta.json. Other scenes are skipped.
func ArchiveScene(dataDir, snapshotPath string, snap snapshot.SceneV1) (archivedPath string, archived bool, err error) {
	if !snap.Decision.WorthIt {
		return "", false, nil
	}
	if snap.Header.SceneID == "" {
		return "", false, fmt.Errorf("archive: snapshot without scene id")
	}

	archiveDir := Dir(dataDir, snap.Header.SceneID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}
	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return "", false, err
	}

	meta := SceneArchiveMeta{
		SceneID:   snap.Header.SceneID,
		Seed:      snap.Seed,
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Vehicles:  len(snap.Vehicles),
		EndFrame:  snap.Decision.EndFrame,
		Frames:    snap.Decision.Frames,
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", false, err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", false, err
	}
	return dst, true, nil
}

func Dir(dataDir, sceneID string) string {
	return filepath.Join(dataDir, "archives", "scene_"+sceneID)
}

func ReadMeta(dir string) (SceneArchiveMeta, error) {
	var m SceneArchiveMeta
	b, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("meta.json: %w", err)
	}
	return m, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
