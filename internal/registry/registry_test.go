package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/scene/ecsscene"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostscene"
)

func newScene(t *testing.T) *ecsscene.Scene {
	t.Helper()
	s := ecsscene.New()
	require.NoError(t, s.AddMesh("Body"))
	require.NoError(t, s.AddArmature("Rig", "Body", "Hip", "Spine"))
	require.NoError(t, s.AddMesh("Prop"))
	require.NoError(t, s.AddCamera("Cam", hostscene.Transform{}))
	require.NoError(t, s.AddOther("Light", ""))
	return s
}

func track(t *testing.T, r *Registry, s hostscene.Scene, id string) (bool, error) {
	t.Helper()
	obj, err := s.GetObjectByIdentifier(id)
	require.NoError(t, err)
	return r.Track(obj)
}

func ids(list []core.TrackedEntity) []string {
	out := make([]string, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

func TestTrack_Qualification(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)

	added, err := track(t, r, s, "Body")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = track(t, r, s, "Cam")
	require.NoError(t, err)
	assert.True(t, added)

	_, err = track(t, r, s, "Prop")
	assert.ErrorIs(t, err, ErrNotQualified)

	_, err = track(t, r, s, "Light")
	assert.ErrorIs(t, err, ErrNotQualified)

	// an armature on its own is not trackable
	_, err = track(t, r, s, "Rig")
	assert.ErrorIs(t, err, ErrNotQualified)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, core.KindMeshWithSkeleton, list[0].Kind)
	assert.Equal(t, core.KindCamera, list[1].Kind)
	assert.True(t, list[0].Active)
	assert.Equal(t, "Body", list[0].Subject())
}

func TestTrack_Duplicate(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)

	for range 3 {
		_, err := track(t, r, s, "Cam")
		require.NoError(t, err)
	}
	added, err := track(t, r, s, "Cam")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, r.Len())
}

func TestUntrack(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)
	_, _ = track(t, r, s, "Body")
	_, _ = track(t, r, s, "Cam")

	r.Untrack("Body")
	assert.False(t, r.Contains("Body"))
	assert.Equal(t, []string{"Cam"}, ids(r.List()))

	// unknown id is a no-op
	r.Untrack("Nope")
	assert.Equal(t, 1, r.Len())
}

func TestList_InsertionOrderAfterReAdd(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)
	_, _ = track(t, r, s, "Body")
	_, _ = track(t, r, s, "Cam")

	r.Untrack("Body")
	_, _ = track(t, r, s, "Body")

	assert.Equal(t, []string{"Cam", "Body"}, ids(r.List()))
}

func TestList_SnapshotIsStable(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)
	_, _ = track(t, r, s, "Body")

	snap := r.List()
	_, _ = track(t, r, s, "Cam")
	r.Untrack("Body")

	assert.Equal(t, []string{"Body"}, ids(snap))
	assert.Equal(t, []string{"Cam"}, ids(r.List()))
}

func TestUntrackAt(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)
	_, _ = track(t, r, s, "Body")
	_, _ = track(t, r, s, "Cam")

	removed, err := r.UntrackAt(0)
	require.NoError(t, err)
	assert.Equal(t, "Body", removed.ID)

	_, err = r.UntrackAt(5)
	assert.Error(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestSetActiveAndSubjectName(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)
	_, _ = track(t, r, s, "Cam")

	require.NoError(t, r.SetActive("Cam", false))
	require.NoError(t, r.SetSubjectName("Cam", "MainCamera"))

	e, ok := r.Get("Cam")
	require.True(t, ok)
	assert.False(t, e.Active)
	assert.Equal(t, "MainCamera", e.Subject())

	require.NoError(t, r.SetSubjectName("Cam", ""))
	e, _ = r.Get("Cam")
	assert.Equal(t, "Cam", e.Subject())

	assert.ErrorIs(t, r.SetActive("Nope", true), ErrNotFound)
}

func TestResolve(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)
	_, _ = track(t, r, s, "Body")

	arm, err := r.Resolve("Body")
	require.NoError(t, err)
	assert.Equal(t, "Rig", arm.ID())

	s.Delete("Rig")
	_, err = r.Resolve("Body")
	assert.ErrorIs(t, err, ErrNoArmatureFound)

	s.Delete("Body")
	_, err = r.Resolve("Body")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_FirstArmatureWins(t *testing.T) {
	s := ecsscene.New()
	require.NoError(t, s.AddMesh("Body"))
	require.NoError(t, s.AddArmature("RigA", "Body", "A"))
	require.NoError(t, s.AddArmature("RigB", "Body", "B"))
	r := New(s, nil)

	arm, err := r.Resolve("Body")
	require.NoError(t, err)
	assert.Equal(t, "RigA", arm.ID())
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	s := newScene(t)
	r := New(s, nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, e := range r.List() {
					assert.NotEmpty(t, e.ID)
				}
			}
		}()
	}

	for range 200 {
		_, _ = track(t, r, s, "Body")
		_, _ = track(t, r, s, "Cam")
		r.Untrack("Body")
	}
	close(stop)
	wg.Wait()
}
