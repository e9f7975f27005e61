package convert

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/model"
	"github.com/uell/livelink/pkg/core"
)

func TestSession_RoundTrip(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s := core.Session{ID: 3, Peer: "p", Port: 8888, Encoding: "binary", StartTime: start, Ticks: 7, BytesSent: 99}

	m := SessionToModel(s)
	assert.False(t, m.EndTime.Valid, "open session has no end time")
	assert.Equal(t, s, SessionToCore(m))

	s.EndTime = start.Add(time.Minute)
	m = SessionToModel(s)
	assert.True(t, m.EndTime.Valid)
	assert.Equal(t, s.EndTime, SessionToCore(m).EndTime)
}

func TestFrameToBoneStates(t *testing.T) {
	f := &core.Frame{
		SessionID: 2,
		Tick:      5,
		Entity:    core.TrackedEntity{ID: "Arm01", Kind: core.KindMeshWithSkeleton, SubjectName: "Hero"},
		Sample: core.SkeletalSample{Bones: []core.BoneSample{
			{Name: "Hand", Position: core.Vec3{X: 1, Y: 2, Z: 3}, Scale: core.UnitScale, Rotation: core.IdentityRotation},
			{Name: "Elbow", Position: core.Vec3{X: math.NaN()}, Scale: core.UnitScale, Rotation: core.IdentityRotation},
		}},
	}
	rows := FrameToBoneStates(f)
	require.Len(t, rows, 2)

	assert.Equal(t, "Hero", rows[0].Subject)
	assert.Equal(t, uint16(1), rows[1].BoneIndex)
	x, y, z := rows[0].Position.XYZ()
	assert.Equal(t, []float64{1, 2, 3}, []float64{x, y, z})
	assert.JSONEq(t, `[1,1,1]`, string(rows[0].Scale))
	assert.JSONEq(t, `[1,0,0,0]`, string(rows[0].Rotation))

	x, _, _ = rows[1].Position.XYZ()
	assert.Equal(t, 0.0, x, "non-finite values are stored as 0")

	_, ok := FrameToCameraState(f)
	assert.False(t, ok)
}

func TestStatesToFrames(t *testing.T) {
	arm := &core.Frame{
		SessionID: 1,
		Tick:      2,
		Entity:    core.TrackedEntity{ID: "Arm01", Kind: core.KindMeshWithSkeleton},
		Sample: core.SkeletalSample{Bones: []core.BoneSample{
			{Name: "Hand", Position: core.Vec3{X: 1}, Scale: core.UnitScale, Rotation: core.IdentityRotation},
			{Name: "Elbow", Position: core.Vec3{Y: 1}, Scale: core.Vec3{X: 2, Y: 2, Z: 2}, Rotation: core.Quaternion{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5}},
		}},
	}
	cam := &core.Frame{
		SessionID: 1,
		Tick:      1,
		Entity:    core.TrackedEntity{ID: "Cam", Kind: core.KindCamera, SubjectName: "Main"},
		Sample:    core.CameraTransform{Position: core.Vec3{Z: 4}, Rotation: core.IdentityRotation},
	}
	camRow, ok := FrameToCameraState(cam)
	require.True(t, ok)

	frames := StatesToFrames(FrameToBoneStates(arm), []model.CameraState{camRow})
	require.Len(t, frames, 2)

	assert.Equal(t, uint64(1), frames[0].Tick)
	assert.Equal(t, "Main", frames[0].Entity.Subject())
	assert.Equal(t, core.KindCamera, frames[0].Entity.Kind)
	assert.Equal(t, cam.Sample, frames[0].Sample)

	assert.Equal(t, "Arm01", frames[1].Entity.Subject())
	assert.Equal(t, arm.Sample, frames[1].Sample)
}

func TestTick_RoundTrip(t *testing.T) {
	ts := core.TickStats{SessionID: 1, Tick: 3, Duration: 1200 * time.Microsecond, Entities: 2, Skipped: 1, Bytes: 64}
	m := TickToModel(&ts)
	assert.Equal(t, int64(1200), m.DurationMicros)
	assert.Equal(t, ts, TickToCore(m))
}
