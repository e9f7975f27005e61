// Package registry holds the ordered set of scene objects selected for
// streaming.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostscene"
)

var (
	// ErrNotQualified is returned by Track for objects that are neither a
	// mesh with an armature child nor a camera.
	ErrNotQualified = errors.New("object is not a skinned mesh or camera")
	// ErrNoArmatureFound is returned by Resolve when a tracked mesh lost its armature.
	ErrNoArmatureFound = errors.New("no armature child found")
	// ErrNotFound is returned when an identifier is not tracked or the
	// object is gone from the scene.
	ErrNotFound = errors.New("not found")
)

// Registry is safe for one writer and any number of concurrent readers.
// Readers get an immutable snapshot and never block.
type Registry struct {
	scene  hostscene.Scene
	logger *slog.Logger

	mu       sync.Mutex // serializes writers
	snapshot atomic.Pointer[[]core.TrackedEntity]
}

// New creates an empty registry over the given scene.
func New(scene hostscene.Scene, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{scene: scene, logger: logger}
	empty := []core.TrackedEntity{}
	r.snapshot.Store(&empty)
	return r
}

// Track qualifies obj and appends it. It reports false without error when
// obj is already tracked.
func (r *Registry) Track(obj hostscene.Object) (bool, error) {
	kind, err := r.qualify(obj)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.snapshot.Load()
	if indexOf(cur, obj.ID()) >= 0 {
		r.logger.Info("object is already being tracked", "id", obj.ID())
		return false, nil
	}

	next := make([]core.TrackedEntity, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, core.TrackedEntity{
		ID:          obj.ID(),
		Kind:        kind,
		SubjectName: obj.ID(),
		Active:      true,
	})
	r.snapshot.Store(&next)

	r.logger.Debug("tracking object", "id", obj.ID(), "kind", kind)
	return true, nil
}

func (r *Registry) qualify(obj hostscene.Object) (core.EntityKind, error) {
	switch r.scene.GetObjectKind(obj) {
	case hostscene.KindCamera:
		return core.KindCamera, nil
	case hostscene.KindMesh:
		if r.armatureOf(obj) != nil {
			return core.KindMeshWithSkeleton, nil
		}
		return 0, fmt.Errorf("%s: mesh without armature child: %w", obj.ID(), ErrNotQualified)
	default:
		return 0, fmt.Errorf("%s: %w", obj.ID(), ErrNotQualified)
	}
}

// Untrack removes id. Unknown ids are ignored.
func (r *Registry) Untrack(id string) {
	r.mutate(func(cur []core.TrackedEntity) []core.TrackedEntity {
		i := indexOf(cur, id)
		if i < 0 {
			return nil
		}
		return slices.Delete(slices.Clone(cur), i, i+1)
	})
}

// UntrackAt removes the entry at position index of the current list.
func (r *Registry) UntrackAt(index int) (core.TrackedEntity, error) {
	var removed core.TrackedEntity
	var err error
	r.mutate(func(cur []core.TrackedEntity) []core.TrackedEntity {
		if index < 0 || index >= len(cur) {
			err = fmt.Errorf("index %d out of range [0,%d)", index, len(cur))
			return nil
		}
		removed = cur[index]
		return slices.Delete(slices.Clone(cur), index, index+1)
	})
	return removed, err
}

// SetActive toggles whether id is included in broadcasts.
func (r *Registry) SetActive(id string, active bool) error {
	return r.update(id, func(e *core.TrackedEntity) { e.Active = active })
}

// SetSubjectName sets the name the peer sees for id. An empty name resets
// it to the object identifier.
func (r *Registry) SetSubjectName(id, name string) error {
	return r.update(id, func(e *core.TrackedEntity) {
		if name == "" {
			name = e.ID
		}
		e.SubjectName = name
	})
}

func (r *Registry) update(id string, fn func(*core.TrackedEntity)) error {
	found := false
	r.mutate(func(cur []core.TrackedEntity) []core.TrackedEntity {
		i := indexOf(cur, id)
		if i < 0 {
			return nil
		}
		found = true
		next := slices.Clone(cur)
		fn(&next[i])
		return next
	})
	if !found {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// mutate publishes the slice returned by fn. A nil result means no change.
func (r *Registry) mutate(fn func([]core.TrackedEntity) []core.TrackedEntity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if next := fn(*r.snapshot.Load()); next != nil {
		r.snapshot.Store(&next)
	}
}

// List returns the tracked entities in insertion order. The returned slice
// must not be modified.
func (r *Registry) List() []core.TrackedEntity {
	return *r.snapshot.Load()
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (core.TrackedEntity, bool) {
	cur := r.List()
	if i := indexOf(cur, id); i >= 0 {
		return cur[i], true
	}
	return core.TrackedEntity{}, false
}

// Contains reports whether id is tracked.
func (r *Registry) Contains(id string) bool {
	return indexOf(r.List(), id) >= 0
}

// Len returns the number of tracked entities.
func (r *Registry) Len() int {
	return len(r.List())
}

// Resolve returns the first direct armature child of the tracked mesh id.
func (r *Registry) Resolve(id string) (hostscene.Object, error) {
	obj, err := r.scene.GetObjectByIdentifier(id)
	if err != nil {
		if errors.Is(err, hostscene.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	arm := r.armatureOf(obj)
	if arm == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrNoArmatureFound)
	}
	return arm, nil
}

// Object returns the live scene object for id.
func (r *Registry) Object(id string) (hostscene.Object, error) {
	obj, err := r.scene.GetObjectByIdentifier(id)
	if errors.Is(err, hostscene.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return obj, err
}

func (r *Registry) armatureOf(obj hostscene.Object) hostscene.Object {
	for _, child := range r.scene.GetChildren(obj) {
		if r.scene.GetObjectKind(child) == hostscene.KindArmature {
			return child
		}
	}
	return nil
}

func indexOf(list []core.TrackedEntity, id string) int {
	return slices.IndexFunc(list, func(e core.TrackedEntity) bool { return e.ID == id })
}
