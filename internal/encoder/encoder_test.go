package encoder

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/streaming"
)

func arm01() core.SkeletalSample {
	return core.SkeletalSample{Bones: []core.BoneSample{
		{
			Name:     "Hand",
			Position: core.Vec3{X: 0.1, Y: 0.2, Z: 0.3},
			Scale:    core.Vec3{X: 1, Y: 1, Z: 1},
			Rotation: core.Quaternion{W: 1},
		},
		{
			Name:     "Elbow",
			Position: core.Vec3{X: -1.5},
			Scale:    core.Vec3{X: 2, Y: 2, Z: 2},
			Rotation: core.Quaternion{W: 0.707107, Z: 0.707107},
		},
	}}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "line", "binary", "json"} {
		enc, err := New(name)
		require.NoError(t, err, name)
		assert.NotNil(t, enc)
	}

	_, err := New("protobuf")
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestLine_Skeleton(t *testing.T) {
	got := string(Line{}.Encode("Arm01", arm01()))

	want := "Hand <0.100000,0.200000,0.300000> <1.000000,1.000000,1.000000> <1.000000,0.000000,0.000000,0.000000>\n" +
		"Elbow <-1.500000,0.000000,0.000000> <2.000000,2.000000,2.000000> <0.707107,0.000000,0.000000,0.707107>\n"
	assert.Equal(t, want, got)
}

func TestLine_Camera(t *testing.T) {
	got := string(Line{}.Encode("MainCam", core.CameraTransform{
		Position: core.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: core.IdentityRotation,
	}))
	assert.Equal(t, "MainCam <1.000000,2.000000,3.000000> <1.000000,1.000000,1.000000> <1.000000,0.000000,0.000000,0.000000>\n", got)
}

func TestLine_EmptySkeleton(t *testing.T) {
	assert.Empty(t, Line{}.Encode("Arm01", core.SkeletalSample{}))
}

func TestLine_NamesKeepFourFields(t *testing.T) {
	s := core.SkeletalSample{Bones: []core.BoneSample{
		{Name: "Upper Arm", Rotation: core.IdentityRotation},
		{Name: "Hand\nX", Rotation: core.IdentityRotation},
		{Name: "Tab\tBone\x00", Rotation: core.IdentityRotation},
		{Name: "Épaule", Rotation: core.IdentityRotation},
	}}
	got := string(Line{}.Encode("Arm01", s))

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Len(t, strings.Fields(line), 4, line)
	}
	assert.True(t, strings.HasPrefix(lines[0], "Upper_Arm <"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Hand_X <"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "Tab_Bone_ <"), lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "Épaule <"), lines[3])

	cam := string(Line{}.Encode("Main Cam", core.CameraTransform{Rotation: core.IdentityRotation}))
	assert.True(t, strings.HasPrefix(cam, "Main_Cam <"), cam)
}

func TestLine_NonFinite(t *testing.T) {
	s := core.SkeletalSample{Bones: []core.BoneSample{{
		Name:     "Bad",
		Position: core.Vec3{X: math.NaN(), Y: math.Inf(1), Z: math.Inf(-1)},
	}}}
	got := string(Line{}.Encode("x", s))
	assert.Contains(t, got, "<NaN,+Inf,-Inf>")
}

func TestEncoders_Deterministic(t *testing.T) {
	for _, enc := range []Encoder{Line{}, Binary{}, JSON{}} {
		t.Run(enc.Name(), func(t *testing.T) {
			a := enc.Encode("Arm01", arm01())
			b := enc.Encode("Arm01", arm01())
			assert.Equal(t, a, b)
			assert.NotEmpty(t, a)
		})
	}
}

func TestEncoders_NilSample(t *testing.T) {
	for _, enc := range []Encoder{Line{}, Binary{}, JSON{}} {
		assert.NotPanics(t, func() { enc.Encode("x", nil) }, enc.Name())
	}
}

func TestBinary_DecodeSkeletonAndCamera(t *testing.T) {
	cam := core.CameraTransform{Position: core.Vec3{X: 4}, Rotation: core.Quaternion{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5}}

	var buf bytes.Buffer
	buf.Write(Binary{}.Encode("Arm01", arm01()))
	buf.Write(Binary{}.Encode("Cam", cam))

	subject, s, err := DecodeBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Arm01", subject)
	assert.Equal(t, arm01(), s)

	subject, s, err = DecodeBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Cam", subject)
	assert.Equal(t, cam, s)
}

func TestBinary_DecodeTruncated(t *testing.T) {
	frame := Binary{}.Encode("Arm01", arm01())
	// keep the declared length but cut the payload short
	_, _, err := DecodeBinary(bytes.NewReader(frame[:len(frame)-5]))
	assert.Error(t, err)
}

func TestJSON_Envelope(t *testing.T) {
	out := JSON{}.Encode("Arm01", arm01())
	require.True(t, bytes.HasSuffix(out, []byte("\n")))

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(out, &env))
	assert.Equal(t, streaming.TypeSkeleton, env.Type)

	var p streaming.SkeletonPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, "Arm01", p.Subject)
	assert.Equal(t, arm01().Bones, p.Bones)
}

func TestJSON_NonFiniteBecomesZero(t *testing.T) {
	out := JSON{}.Encode("Cam", core.CameraTransform{Position: core.Vec3{X: math.NaN()}})
	require.NotEmpty(t, out)

	var env streaming.Envelope
	require.NoError(t, json.Unmarshal(out, &env))
	var p streaming.CameraPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, 0.0, p.Position.X)
}
