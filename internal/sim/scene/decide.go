package scene

import (
	"citytraffic/internal/sim/traffic"
	"citytraffic/internal/sim/tuning"
)

// Reasons a scene is not worth rendering.
const (
	ReasonTooFewVehicles    = "too_few_vehicles"
	ReasonFewStartsUsed     = "under_half_start_points"
	ReasonCameraPathShort   = "camera_path_short"
	ReasonCameraPathNoTurns = "camera_path_straight"
)

type Decision struct {
	WorthIt  bool   `json:"worth_it"`
	Reason   string `json:"reason,omitempty"`
	EndFrame int    `json:"end_frame"`
	Frames   []int  `json:"frames"`
}

// Decide judges the resolved vehicles; survivors[0] carries the camera.
// startPoints is the size of the start pool before planning.
func Decide(survivors []*traffic.Vehicle, startPoints int, t tuning.TrafficTuning, frameStep int) Decision {
	switch {
	case len(survivors) == 0 || len(survivors) < t.MinVehicles:
		return Decision{Reason: ReasonTooFewVehicles}
	case len(survivors)*2 <= startPoints:
		return Decision{Reason: ReasonFewStartsUsed}
	case survivors[0].Len() <= t.MinPathLength:
		return Decision{Reason: ReasonCameraPathShort}
	case !survivors[0].HasTurn():
		return Decision{Reason: ReasonCameraPathNoTurns}
	}
	end, frames := FrameRange(survivors[0], frameStep)
	return Decision{WorthIt: true, EndFrame: end, Frames: frames}
}

// FrameRange renders from the first moving frame up to the camera vehicle's
// last turn, so the city edge stays out of view. Without a turn it stops one
// waypoint before the end.
func FrameRange(cam *traffic.Vehicle, step int) (int, []int) {
	if step < 1 {
		step = 1
	}
	f := cam.FramesPerWaypoint
	end := f*cam.Len() - f
	if last, ok := cam.LastTurn(); ok {
		end = last * f
	}
	frames := []int{}
	for fr := f; fr < end; fr += step {
		frames = append(frames, fr)
	}
	return end, frames
}
