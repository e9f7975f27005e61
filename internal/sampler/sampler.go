package sampler

import (
	"errors"
	"fmt"

	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostscene"
)

// ErrEntityUnresolvable wraps any failure to reach the scene data of a
// tracked entity. The tick loop skips such entities.
var ErrEntityUnresolvable = errors.New("entity unresolvable")

// Resolver maps tracked ids back to live scene objects.
type Resolver interface {
	Resolve(id string) (hostscene.Object, error)
	Object(id string) (hostscene.Object, error)
}

// Sampler reads the current pose or transform of tracked entities.
type Sampler struct {
	scene    hostscene.Scene
	resolver Resolver
}

func New(scene hostscene.Scene, resolver Resolver) *Sampler {
	return &Sampler{scene: scene, resolver: resolver}
}

// Sample returns a SkeletalSample for meshes and a CameraTransform for cameras.
func (s *Sampler) Sample(e core.TrackedEntity) (core.Sample, error) {
	switch e.Kind {
	case core.KindMeshWithSkeleton:
		return s.skeleton(e.ID)
	case core.KindCamera:
		return s.camera(e.ID)
	default:
		return nil, unresolvable(e.ID, fmt.Errorf("unknown kind %s", e.Kind))
	}
}

func (s *Sampler) skeleton(id string) (core.Sample, error) {
	arm, err := s.resolver.Resolve(id)
	if err != nil {
		return nil, unresolvable(id, err)
	}
	bones, err := s.scene.GetCurrentPoseBones(arm)
	if err != nil {
		return nil, unresolvable(id, err)
	}

	out := core.SkeletalSample{Bones: make([]core.BoneSample, len(bones))}
	for i, b := range bones {
		out.Bones[i] = core.BoneSample{
			Name:     b.Name,
			Position: b.Location,
			Scale:    b.Scale,
			Rotation: b.Rotation,
		}
	}
	return out, nil
}

func (s *Sampler) camera(id string) (core.Sample, error) {
	obj, err := s.resolver.Object(id)
	if err != nil {
		return nil, unresolvable(id, err)
	}
	t, err := s.scene.GetTransform(obj)
	if err != nil {
		return nil, unresolvable(id, err)
	}
	return core.CameraTransform{Position: t.Location, Rotation: t.Rotation}, nil
}

func unresolvable(id string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrEntityUnresolvable, id, cause)
}
