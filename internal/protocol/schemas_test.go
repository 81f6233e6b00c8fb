package protocol

import (
	"testing"
)

func TestSchemas_Compile(t *testing.T) {
	for _, name := range []string{SchemaGrid, SchemaVehicles, SchemaSubscribe, SchemaScene} {
		if _, err := Schema(name); err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
	}
	if _, err := Schema("missing.schema.json"); err == nil {
		t.Fatalf("expected missing schema to fail")
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(name, doc string) {
		t.Helper()
		if err := ValidateJSON(name, []byte(doc)); err != nil {
			t.Fatalf("validate %s: %v", name, err)
		}
	}
	validate(SchemaGrid, `{"version":1,"width":3,"height":2,"cell_size":1,"palette":[["road"],["district=comm"]],"cells":"AAY="}`)
	validate(SchemaVehicles, `[{"id":"car01","file":"models/cars/Car01.blend","main_object":"Chocofur_Car_01","scale":0.11,"camera_pos":[0,0,0.15]}]`)
	validate(SchemaSubscribe, `{"type":"SUBSCRIBE","protocol_version":"1.0","only_worth_it":true}`)

	msg := SceneMsg{
		Type:            TypeScene,
		ProtocolVersion: Version,
		SceneID:         "s1",
		Seed:            7,
		Grid:            [2]int{5, 5},
		WorthIt:         true,
		EndFrame:        12,
		Frames:          []int{3, 6, 9},
		Vehicles: []SceneCar{
			{ID: "v0", Model: "car01", FramesPerWaypoint: 3, Camera: true, Path: [][2]int{{0, 2}, {1, 2}}},
		},
	}
	if err := ValidateValue(SchemaScene, msg); err != nil {
		t.Fatalf("validate scene msg: %v", err)
	}
}

func TestSchemas_RejectInvalid(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{SchemaGrid, `{"version":1,"width":0,"height":2,"cell_size":1,"palette":[["road"]],"cells":""}`},
		{SchemaGrid, `{"version":2,"width":1,"height":1,"cell_size":1,"palette":[["road"]],"cells":""}`},
		{SchemaVehicles, `[]`},
		{SchemaVehicles, `[{"id":"car01","file":"x","main_object":"y","scale":0}]`},
		{SchemaSubscribe, `{"type":"HELLO","protocol_version":"1.0"}`},
		{SchemaScene, `{"type":"SCENE"}`},
	}
	for _, c := range cases {
		if err := ValidateJSON(c.name, []byte(c.doc)); err == nil {
			t.Fatalf("expected %s to reject %s", c.name, c.doc)
		}
	}
	if err := ValidateJSON(SchemaGrid, []byte(`{`)); err == nil {
		t.Fatalf("expected malformed JSON to fail")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0"}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if m.Type != TypeSubscribe || m.ProtocolVersion != Version {
		t.Fatalf("unexpected base: %+v", m)
	}
}
