// Package ecsscene is an in-process host scene backed by a donburi ECS world.
// It stands in for the 3D application when running the demo and in tests.
package ecsscene

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostscene"
	"github.com/yohamta/donburi"
)

type handle struct {
	id     string
	entity donburi.Entity
}

func (h handle) ID() string { return h.id }

// Scene implements hostscene.Scene.
type Scene struct {
	mu     sync.RWMutex
	world  donburi.World
	ids    map[string]donburi.Entity
	frame  uint64
	frames chan uint64
}

var _ hostscene.Scene = (*Scene)(nil)

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		world:  donburi.NewWorld(),
		ids:    make(map[string]donburi.Entity),
		frames: make(chan uint64, 1),
	}
}

// AddMesh adds a mesh object at the root of the scene.
func (s *Scene) AddMesh(id string) error {
	return s.add(id, hostscene.KindMesh, "", nil)
}

// AddCamera adds a camera object with the given world transform.
func (s *Scene) AddCamera(id string, t hostscene.Transform) error {
	if err := s.add(id, hostscene.KindCamera, "", nil); err != nil {
		return err
	}
	return s.SetTransform(id, t)
}

// AddArmature adds an armature parented to parent (may be empty) with the
// given bones in skeleton order.
func (s *Scene) AddArmature(id, parent string, bones ...string) error {
	pose := make([]hostscene.PoseBone, len(bones))
	for i, name := range bones {
		pose[i] = hostscene.PoseBone{
			Name:     name,
			Scale:    core.UnitScale,
			Rotation: core.IdentityRotation,
		}
	}
	return s.add(id, hostscene.KindArmature, parent, pose)
}

// AddOther adds an object of a kind that cannot be tracked.
func (s *Scene) AddOther(id, parent string) error {
	return s.add(id, hostscene.KindOther, parent, nil)
}

func (s *Scene) add(id string, kind hostscene.ObjectKind, parent string, pose []hostscene.PoseBone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[id]; exists {
		return fmt.Errorf("object %q already exists", id)
	}

	var parentEntry *donburi.Entry
	if parent != "" {
		pe, ok := s.ids[parent]
		if !ok || !s.world.Valid(pe) {
			return fmt.Errorf("parent %q: %w", parent, hostscene.ErrNotFound)
		}
		parentEntry = s.world.Entry(pe)
	}

	var entity donburi.Entity
	if pose != nil {
		entity = s.world.Create(Object, Transform, Pose)
	} else {
		entity = s.world.Create(Object, Transform)
	}
	entry := s.world.Entry(entity)

	Object.Set(entry, &ObjectData{ID: id, Kind: kind, Parent: parent})
	Transform.Set(entry, &TransformData{Transform: hostscene.Transform{Rotation: core.IdentityRotation}})
	if pose != nil {
		Pose.Set(entry, &PoseData{Bones: pose})
	}

	if parentEntry != nil {
		po := Object.Get(parentEntry)
		po.Children = append(po.Children, id)
	}

	s.ids[id] = entity
	return nil
}

// Delete removes an object. Its children stay in the scene, unparented.
func (s *Scene) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.ids[id]
	if !ok {
		return
	}
	delete(s.ids, id)
	if !s.world.Valid(entity) {
		return
	}

	obj := Object.Get(s.world.Entry(entity))
	if pe, ok := s.ids[obj.Parent]; ok && s.world.Valid(pe) {
		po := Object.Get(s.world.Entry(pe))
		po.Children = slices.DeleteFunc(po.Children, func(c string) bool { return c == id })
	}
	for _, child := range obj.Children {
		if ce, ok := s.ids[child]; ok && s.world.Valid(ce) {
			Object.Get(s.world.Entry(ce)).Parent = ""
		}
	}

	s.world.Remove(entity)
}

// SetBone replaces the pose of one bone of an armature.
func (s *Scene) SetBone(armature string, bone hostscene.PoseBone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(armature)
	if err != nil {
		return err
	}
	if !entry.HasComponent(Pose) {
		return fmt.Errorf("%s is not an armature", armature)
	}
	pose := Pose.Get(entry)
	for i := range pose.Bones {
		if pose.Bones[i].Name == bone.Name {
			pose.Bones[i] = bone
			return nil
		}
	}
	return fmt.Errorf("bone %q not in %s", bone.Name, armature)
}

// SetTransform sets the world transform of an object.
func (s *Scene) SetTransform(id string, t hostscene.Transform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entry(id)
	if err != nil {
		return err
	}
	Transform.Set(entry, &TransformData{Transform: t})
	return nil
}

// Animate poses every armature and camera as a function of t seconds.
// The motion is deterministic so recordings can be compared.
func (s *Scene) Animate(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	Pose.Each(s.world, func(entry *donburi.Entry) {
		pose := Pose.Get(entry)
		for i := range pose.Bones {
			angle := math.Sin(t+float64(i)) * math.Pi / 4
			pose.Bones[i].Rotation = axisAngleZ(angle)
			pose.Bones[i].Location = core.Vec3{Z: 0.05 * math.Sin(2*t+float64(i))}
		}
	})

	Object.Each(s.world, func(entry *donburi.Entry) {
		if Object.Get(entry).Kind != hostscene.KindCamera {
			return
		}
		tr := Transform.Get(entry)
		tr.Location = core.Vec3{X: 5 * math.Cos(t/4), Y: 5 * math.Sin(t/4), Z: 1.7}
		tr.Rotation = axisAngleZ(t/4 + math.Pi/2)
	})
}

// Step advances the scene frame and notifies a waiting frame listener.
func (s *Scene) Step() uint64 {
	s.mu.Lock()
	s.frame++
	frame := s.frame
	s.mu.Unlock()

	select {
	case s.frames <- frame:
	default:
	}
	return frame
}

// Frames delivers frame numbers as Step is called. Frames are dropped
// when nobody is listening.
func (s *Scene) Frames() <-chan uint64 {
	return s.frames
}

// GetObjectByIdentifier implements hostscene.Scene.
func (s *Scene) GetObjectByIdentifier(id string) (hostscene.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.ids[id]
	if !ok || !s.world.Valid(entity) {
		return nil, fmt.Errorf("%s: %w", id, hostscene.ErrNotFound)
	}
	return handle{id: id, entity: entity}, nil
}

// GetChildren implements hostscene.Scene.
func (s *Scene) GetChildren(obj hostscene.Object) []hostscene.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.entry(obj.ID())
	if err != nil {
		return nil
	}
	children := Object.Get(entry).Children
	out := make([]hostscene.Object, 0, len(children))
	for _, id := range children {
		if e, ok := s.ids[id]; ok && s.world.Valid(e) {
			out = append(out, handle{id: id, entity: e})
		}
	}
	return out
}

// GetObjectKind implements hostscene.Scene.
func (s *Scene) GetObjectKind(obj hostscene.Object) hostscene.ObjectKind {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.entry(obj.ID())
	if err != nil {
		return hostscene.KindOther
	}
	return Object.Get(entry).Kind
}

// GetCurrentPoseBones implements hostscene.Scene.
func (s *Scene) GetCurrentPoseBones(armature hostscene.Object) ([]hostscene.PoseBone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.entry(armature.ID())
	if err != nil {
		return nil, err
	}
	if !entry.HasComponent(Pose) {
		return nil, fmt.Errorf("%s has no pose", armature.ID())
	}
	return slices.Clone(Pose.Get(entry).Bones), nil
}

// GetTransform implements hostscene.Scene.
func (s *Scene) GetTransform(obj hostscene.Object) (hostscene.Transform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := s.entry(obj.ID())
	if err != nil {
		return hostscene.Transform{}, err
	}
	return Transform.Get(entry).Transform, nil
}

func (s *Scene) entry(id string) (*donburi.Entry, error) {
	entity, ok := s.ids[id]
	if !ok || !s.world.Valid(entity) {
		return nil, fmt.Errorf("%s: %w", id, hostscene.ErrNotFound)
	}
	return s.world.Entry(entity), nil
}

func axisAngleZ(angle float64) core.Quaternion {
	return core.Quaternion{W: math.Cos(angle / 2), Z: math.Sin(angle / 2)}
}
