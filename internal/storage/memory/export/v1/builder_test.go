package v1

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/pkg/core"
)

func skeleton(names ...string) core.SkeletalSample {
	s := core.SkeletalSample{}
	for i, n := range names {
		s.Bones = append(s.Bones, core.BoneSample{
			Name:     n,
			Position: core.Vec3{X: float64(i)},
			Scale:    core.UnitScale,
			Rotation: core.IdentityRotation,
		})
	}
	return s
}

func TestBuilder_GroupsFramesBySubject(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBuilder(core.Session{ID: 4, Peer: "127.0.0.1:6000", Port: 8888, Encoding: "line", StartTime: start})

	arm := core.TrackedEntity{ID: "Arm01", Kind: core.KindMeshWithSkeleton}
	cam := core.TrackedEntity{ID: "Cam", Kind: core.KindCamera, SubjectName: "Main"}

	b.AddFrame(&core.Frame{Tick: 1, Entity: arm, Sample: skeleton("Hand", "Elbow")})
	b.AddFrame(&core.Frame{Tick: 1, Entity: cam, Sample: core.CameraTransform{Position: core.Vec3{Z: 2}, Rotation: core.IdentityRotation}})
	b.AddFrame(&core.Frame{Tick: 2, Entity: arm, Sample: skeleton("Hand", "Elbow")})
	b.AddFrame(&core.Frame{Tick: 2, Entity: cam})
	b.AddTick(&core.TickStats{Tick: 1, Duration: 250 * time.Microsecond, Entities: 2, Bytes: 90})

	out := b.Build(core.Session{EndTime: start.Add(time.Minute), Ticks: 2, BytesSent: 180})

	assert.Equal(t, Version, out.Version)
	assert.Equal(t, uint(4), out.SessionID)
	assert.Equal(t, uint64(2), out.Ticks)
	assert.Equal(t, start.Add(time.Minute), out.EndTime)
	require.Len(t, out.Subjects, 2)

	assert.Equal(t, "Arm01", out.Subjects[0].Name)
	assert.Equal(t, "mesh", out.Subjects[0].Kind)
	assert.Equal(t, []string{"Hand", "Elbow"}, out.Subjects[0].Bones)
	require.Len(t, out.Subjects[0].Frames, 2)
	assert.Nil(t, out.Subjects[0].Frames[1].Bones)
	assert.Equal(t, [10]float64{1, 0, 0, 1, 1, 1, 1, 0, 0, 0}, out.Subjects[0].Frames[0].Transforms[1])

	assert.Equal(t, "Main", out.Subjects[1].Name)
	assert.Empty(t, out.Subjects[1].Bones)
	require.Len(t, out.Subjects[1].Frames, 1, "frames without a sample are skipped")
	assert.Equal(t, [10]float64{0, 0, 2, 1, 1, 1, 1, 0, 0, 0}, out.Subjects[1].Frames[0].Transforms[0])

	assert.Equal(t, [][5]int64{{1, 250, 2, 0, 90}}, out.TickStats)
}

func TestBuilder_SkeletonChange(t *testing.T) {
	b := NewBuilder(core.Session{ID: 1})
	arm := core.TrackedEntity{ID: "Arm01", Kind: core.KindMeshWithSkeleton}

	b.AddFrame(&core.Frame{Tick: 1, Entity: arm, Sample: skeleton("Hand")})
	b.AddFrame(&core.Frame{Tick: 2, Entity: arm, Sample: skeleton("Hand", "Finger")})

	out := b.Build(core.Session{})
	assert.Equal(t, []string{"Hand", "Finger"}, out.Subjects[0].Frames[1].Bones)
}

func TestTransform_NonFinite(t *testing.T) {
	got := Transform(core.Vec3{X: math.NaN(), Y: math.Inf(1), Z: 3}, core.UnitScale, core.Quaternion{W: math.Inf(-1)})
	assert.Equal(t, [10]float64{0, 0, 3, 1, 1, 1, 0, 0, 0, 0}, got)
}
