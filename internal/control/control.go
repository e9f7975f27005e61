// Package control implements the operations the host UI exposes: editing
// the tracked set and toggling the broadcast server.
package control

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/uell/livelink/internal/lifecycle"
	"github.com/uell/livelink/internal/registry"
	"github.com/uell/livelink/internal/session"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/hostscene"
)

// ErrServerRunning is returned when the tracked set is extended while
// broadcasting.
var ErrServerRunning = errors.New("stop the server before tracking new objects")

// Dependencies holds all dependencies for the control service
type Dependencies struct {
	Scene      hostscene.Scene
	Registry   *registry.Registry
	Lifecycle  *lifecycle.Lifecycle
	Session    *session.Context // optional, for Status
	// Editor receives the host's scene feed. Scene commands are only
	// registered when it is set.
	Editor     SceneEditor
	SceneQueue int
	Logger     *slog.Logger
}

// Service is the control surface. Its methods are meant to be called from
// the single control goroutine.
type Service struct {
	deps Dependencies
}

func New(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// Track adds every qualifying object of the selection and returns how many
// were added. Objects that are missing, already tracked or not qualified are
// logged and skipped; their errors are joined in the returned error.
func (s *Service) Track(selection []string) (int, error) {
	if s.deps.Lifecycle.IsRunning() {
		return 0, ErrServerRunning
	}

	added := 0
	var errs []error
	for _, id := range selection {
		obj, err := s.deps.Scene.GetObjectByIdentifier(id)
		if err != nil {
			s.deps.Logger.Warn("selected object not found", "id", id)
			errs = append(errs, err)
			continue
		}
		ok, err := s.deps.Registry.Track(obj)
		if err != nil {
			s.deps.Logger.Warn("object cannot be tracked", "id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			added++
		}
	}
	return added, errors.Join(errs...)
}

// Untrack removes the given ids. Allowed while broadcasting; the change
// applies from the next pass.
func (s *Service) Untrack(ids ...string) {
	for _, id := range ids {
		s.deps.Registry.Untrack(id)
	}
}

// UntrackAt removes the entry at index of the tracked list.
func (s *Service) UntrackAt(index int) (core.TrackedEntity, error) {
	return s.deps.Registry.UntrackAt(index)
}

// ToggleServer starts or stops broadcasting.
func (s *Service) ToggleServer() (lifecycle.State, error) {
	return s.deps.Lifecycle.Toggle()
}

// IsRunning drives the toggle button label.
func (s *Service) IsRunning() bool {
	return s.deps.Lifecycle.IsRunning()
}

// ListTracked returns the tracked identifiers in display order.
func (s *Service) ListTracked() []string {
	list := s.deps.Registry.List()
	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids
}

// Tracked returns the full tracked entries in display order.
func (s *Service) Tracked() []core.TrackedEntity {
	return s.deps.Registry.List()
}

// SetActive includes or excludes a tracked entity from broadcasts.
func (s *Service) SetActive(id string, active bool) error {
	return s.deps.Registry.SetActive(id, active)
}

// SetSubjectName renames the subject sent for a tracked entity.
func (s *Service) SetSubjectName(id, name string) error {
	return s.deps.Registry.SetSubjectName(id, name)
}

// Status is a point-in-time summary for the UI.
type Status struct {
	State     string `json:"state"`
	Tracked   int    `json:"tracked"`
	Peer      string `json:"peer,omitempty"`
	Ticks     uint64 `json:"ticks"`
	BytesSent uint64 `json:"bytesSent"`
}

func (s *Service) Status() Status {
	st := Status{
		State:   s.deps.Lifecycle.State().String(),
		Tracked: s.deps.Registry.Len(),
	}
	if s.deps.Session != nil {
		if cur, ok := s.deps.Session.Current(); ok && s.IsRunning() {
			st.Peer = cur.Peer
			st.Ticks = cur.Ticks
			st.BytesSent = cur.BytesSent
		}
	}
	return st
}

func (st Status) String() string {
	if st.Peer == "" {
		return fmt.Sprintf("%s tracked=%d", st.State, st.Tracked)
	}
	return fmt.Sprintf("%s tracked=%d peer=%s ticks=%d bytes=%d", st.State, st.Tracked, st.Peer, st.Ticks, st.BytesSent)
}
