package protocol

// SUBSCRIBE (client -> server). First message on the observer connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	OnlyWorthIt     bool   `json:"only_worth_it,omitempty"`
}

// SCENE (server -> client). One per generated scene.
type SceneMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SceneID         string     `json:"scene_id"`
	Seed            int64      `json:"seed"`
	Grid            [2]int     `json:"grid"`
	WorthIt         bool       `json:"worth_it"`
	Reason          string     `json:"reason,omitempty"`
	EndFrame        int        `json:"end_frame"`
	Frames          []int      `json:"frames"`
	Vehicles        []SceneCar `json:"vehicles"`
}

type SceneCar struct {
	ID                string   `json:"id"`
	Model             string   `json:"model"`
	FramesPerWaypoint int      `json:"frames_per_waypoint"`
	Camera            bool     `json:"camera,omitempty"`
	Path              [][2]int `json:"path"`
}
