package encoder

import (
	"encoding/json"
	"math"
	"slices"

	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/streaming"
)

const JSONName = "json"

// JSON writes one newline-terminated streaming.Envelope per entity.
// JSON has no NaN or Inf, so non-finite values are sent as 0.
type JSON struct{}

func (JSON) Name() string { return JSONName }

func (JSON) Encode(subject string, s core.Sample) []byte {
	env, err := streaming.SampleEnvelope(0, 0, subject, finite(s))
	if err != nil {
		return nil
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	return append(b, '\n')
}

func finite(s core.Sample) core.Sample {
	switch v := s.(type) {
	case core.SkeletalSample:
		bones := slices.Clone(v.Bones)
		for i := range bones {
			bones[i].Position = finiteVec(bones[i].Position)
			bones[i].Scale = finiteVec(bones[i].Scale)
			bones[i].Rotation = finiteQuat(bones[i].Rotation)
		}
		return core.SkeletalSample{Bones: bones}
	case core.CameraTransform:
		return core.CameraTransform{Position: finiteVec(v.Position), Rotation: finiteQuat(v.Rotation)}
	default:
		return s
	}
}

func finiteVec(v core.Vec3) core.Vec3 {
	return core.Vec3{X: f(v.X), Y: f(v.Y), Z: f(v.Z)}
}

func finiteQuat(q core.Quaternion) core.Quaternion {
	return core.Quaternion{W: f(q.W), X: f(q.X), Y: f(q.Y), Z: f(q.Z)}
}

func f(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
