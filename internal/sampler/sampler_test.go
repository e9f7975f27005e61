package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/registry"
	"github.com/uell/livelink/internal/scene/ecsscene"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostscene"
)

func setup(t *testing.T) (*ecsscene.Scene, *registry.Registry, *Sampler) {
	t.Helper()
	s := ecsscene.New()
	require.NoError(t, s.AddMesh("Arm01"))
	require.NoError(t, s.AddArmature("Arm01Rig", "Arm01", "Hand", "Elbow"))
	require.NoError(t, s.AddCamera("Cam", hostscene.Transform{
		Location: core.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: core.IdentityRotation,
	}))
	r := registry.New(s, nil)
	return s, r, New(s, r)
}

func TestSample_Skeleton(t *testing.T) {
	s, _, smp := setup(t)
	require.NoError(t, s.SetBone("Arm01Rig", hostscene.PoseBone{
		Name:     "Elbow",
		Location: core.Vec3{X: 0.5},
		Scale:    core.Vec3{X: 2, Y: 2, Z: 2},
		Rotation: core.Quaternion{W: 0.7071, Z: 0.7071},
	}))

	got, err := smp.Sample(core.TrackedEntity{ID: "Arm01", Kind: core.KindMeshWithSkeleton})
	require.NoError(t, err)

	sk, ok := got.(core.SkeletalSample)
	require.True(t, ok)
	require.Len(t, sk.Bones, 2)
	assert.Equal(t, "Hand", sk.Bones[0].Name)
	assert.Equal(t, "Elbow", sk.Bones[1].Name)
	assert.Equal(t, 0.5, sk.Bones[1].Position.X)
	assert.Equal(t, 2.0, sk.Bones[1].Scale.Y)
	assert.Equal(t, 0.7071, sk.Bones[1].Rotation.Z)
}

func TestSample_Camera(t *testing.T) {
	_, _, smp := setup(t)

	got, err := smp.Sample(core.TrackedEntity{ID: "Cam", Kind: core.KindCamera})
	require.NoError(t, err)

	cam, ok := got.(core.CameraTransform)
	require.True(t, ok)
	assert.Equal(t, core.Vec3{X: 1, Y: 2, Z: 3}, cam.Position)
	assert.Equal(t, core.IdentityRotation, cam.Rotation)
}

func TestSample_Unresolvable(t *testing.T) {
	s, _, smp := setup(t)

	s.Delete("Arm01Rig")
	_, err := smp.Sample(core.TrackedEntity{ID: "Arm01", Kind: core.KindMeshWithSkeleton})
	assert.ErrorIs(t, err, ErrEntityUnresolvable)
	assert.ErrorIs(t, err, registry.ErrNoArmatureFound)

	s.Delete("Cam")
	_, err = smp.Sample(core.TrackedEntity{ID: "Cam", Kind: core.KindCamera})
	assert.ErrorIs(t, err, ErrEntityUnresolvable)
	assert.ErrorIs(t, err, registry.ErrNotFound)

	_, err = smp.Sample(core.TrackedEntity{ID: "Cam"})
	assert.ErrorIs(t, err, ErrEntityUnresolvable)
}
