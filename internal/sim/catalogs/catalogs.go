package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"citytraffic/internal/protocol"
)

type Catalogs struct {
	Vehicles VehicleCatalog
}

type VehicleCatalog struct {
	// Models is sorted by id; Palette[i] == Models[i].ID.
	Models  []VehicleModel
	Palette []string
	Index   map[string]uint16
	Digest  string
}

// VehicleModel is asset metadata passed through to renderers untouched.
type VehicleModel struct {
	ID         string     `json:"id"`
	File       string     `json:"file"`
	MainObject string     `json:"main_object"`
	Scale      float64    `json:"scale"`
	CameraPos  [3]float64 `json:"camera_pos"`
}

func (c *VehicleCatalog) Get(id string) (VehicleModel, bool) {
	i, ok := c.Index[id]
	if !ok {
		return VehicleModel{}, false
	}
	return c.Models[i], true
}

// Load reads vehicles.json from configDir plus any extra model lists in
// configDir/vehicles.d/*.json. Later files may not redefine an id.
func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadVehicles(configDir, &c.Vehicles); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadVehicles(configDir string, out *VehicleCatalog) error {
	files := []string{filepath.Join(configDir, "vehicles.json")}
	extra, err := os.ReadDir(filepath.Join(configDir, "vehicles.d"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	var names []string
	for _, e := range extra {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		files = append(files, filepath.Join(configDir, "vehicles.d", n))
	}

	var concat bytes.Buffer
	byID := map[string]VehicleModel{}
	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(raw)
		concat.WriteByte('\n')
		models, err := ParseVehicles(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		for _, m := range models {
			if _, dup := byID[m.ID]; dup {
				return fmt.Errorf("%s: duplicate vehicle id %q", filepath.Base(p), m.ID)
			}
			byID[m.ID] = m
		}
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out.Palette = ids
	out.Models = make([]VehicleModel, len(ids))
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Models[i] = byID[id]
		out.Index[id] = uint16(i)
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

// ParseVehicles validates one model list against the embedded schema.
func ParseVehicles(raw []byte) ([]VehicleModel, error) {
	if err := protocol.ValidateJSON(protocol.SchemaVehicles, raw); err != nil {
		return nil, err
	}
	var models []VehicleModel
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, err
	}
	return models, nil
}
