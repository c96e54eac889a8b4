package pose

import (
	"github.com/visionpipe/graph-runtime/packet"
	"github.com/visionpipe/graph-runtime/solution"
)

// Options is a partial update; nil fields are left unchanged.
type Options struct {
	// ModelComplexity selects the landmark model: 0 (lite), 1 (full),
	// 2 (heavy).
	ModelComplexity *int

	// SmoothLandmarks enables temporal filtering across frames.
	SmoothLandmarks *bool

	// StaticImageMode treats every frame as unrelated, disabling tracking.
	StaticImageMode *bool

	MinDetectionConfidence *float64
	MinTrackingConfidence  *float64
}

func (o Options) toSolution() solution.Options {
	opts := solution.Options{}
	if o.ModelComplexity != nil {
		opts["modelComplexity"] = *o.ModelComplexity
	}
	if o.SmoothLandmarks != nil {
		opts["smoothLandmarks"] = *o.SmoothLandmarks
	}
	if o.StaticImageMode != nil {
		opts["staticImageMode"] = *o.StaticImageMode
	}
	if o.MinDetectionConfidence != nil {
		opts["minDetectionConfidence"] = *o.MinDetectionConfidence
	}
	if o.MinTrackingConfidence != nil {
		opts["minTrackingConfidence"] = *o.MinTrackingConfidence
	}
	return opts
}

// optionSchema binds public option keys to the graph parameters of the pose
// landmark graph.
func optionSchema() map[string]solution.OptionBinding {
	return map[string]solution.OptionBinding{
		"modelComplexity":        {Param: "model_complexity", Kind: packet.KindNumber},
		"smoothLandmarks":        {Param: "smooth_landmarks", Kind: packet.KindBool},
		"staticImageMode":        {Param: "static_image_mode", Kind: packet.KindBool},
		"minDetectionConfidence": {Param: "min_detection_confidence", Kind: packet.KindNumber},
		"minTrackingConfidence":  {Param: "min_tracking_confidence", Kind: packet.KindNumber},
	}
}
