package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/uell/livelink/internal/dispatcher"
)

// RegisterHandlers registers the control commands with the dispatcher.
// Tracking and server commands are synchronous: the host UI waits for the
// reply. The scene feed is added when an editor is configured.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	if s.deps.Editor != nil {
		s.registerSceneHandlers(d)
	}

	// Tracked set
	d.Register(":TRACK:", s.handleTrack, dispatcher.Logged())
	d.Register(":UNTRACK:", s.handleUntrack, dispatcher.Logged())
	d.Register(":UNTRACK:INDEX:", s.handleUntrackIndex, dispatcher.Logged())
	d.Register(":ACTIVE:", s.handleActive, dispatcher.Logged())
	d.Register(":SUBJECT:", s.handleSubject, dispatcher.Logged())
	d.Register(":LIST:", s.handleList)

	// Server
	d.Register(":TOGGLE:", s.handleToggle, dispatcher.Logged())
	d.Register(":START:", s.handleStart, dispatcher.Logged())
	d.Register(":STOP:", s.handleStop, dispatcher.Logged())
	d.Register(":STATUS:", s.handleStatus)
}

func (s *Service) handleTrack(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, errors.New("no objects selected")
	}
	added, err := s.Track(e.Args)
	if errors.Is(err, ErrServerRunning) {
		return nil, err
	}
	if added == 0 && err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Service) handleUntrack(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, errors.New("no objects given")
	}
	s.Untrack(e.Args...)
	return s.deps.Registry.Len(), nil
}

func (s *Service) handleUntrackIndex(e dispatcher.Event) (any, error) {
	index, err := strconv.Atoi(e.Arg(0))
	if err != nil {
		return nil, fmt.Errorf("invalid index %q", e.Arg(0))
	}
	removed, err := s.UntrackAt(index)
	if err != nil {
		return nil, err
	}
	return removed.ID, nil
}

func (s *Service) handleActive(e dispatcher.Event) (any, error) {
	if len(e.Args) != 2 {
		return nil, errors.New("usage: :ACTIVE: <id> <true|false>")
	}
	active, err := strconv.ParseBool(e.Args[1])
	if err != nil {
		return nil, fmt.Errorf("invalid flag %q", e.Args[1])
	}
	return nil, s.SetActive(e.Args[0], active)
}

func (s *Service) handleSubject(e dispatcher.Event) (any, error) {
	if len(e.Args) < 1 || len(e.Args) > 2 {
		return nil, errors.New("usage: :SUBJECT: <id> [name]")
	}
	return nil, s.SetSubjectName(e.Args[0], e.Arg(1))
}

// handleList replies with id:kind:subject:active entries, comma separated.
func (s *Service) handleList(dispatcher.Event) (any, error) {
	list := s.Tracked()
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = fmt.Sprintf("%s:%s:%s:%t", e.ID, e.Kind, e.Subject(), e.Active)
	}
	return strings.Join(parts, ","), nil
}

func (s *Service) handleToggle(dispatcher.Event) (any, error) {
	state, err := s.ToggleServer()
	if err != nil {
		return nil, err
	}
	return state.String(), nil
}

func (s *Service) handleStart(dispatcher.Event) (any, error) {
	if err := s.deps.Lifecycle.Start(); err != nil {
		return nil, err
	}
	return s.deps.Lifecycle.State().String(), nil
}

func (s *Service) handleStop(dispatcher.Event) (any, error) {
	s.deps.Lifecycle.Stop()
	return s.deps.Lifecycle.State().String(), nil
}

func (s *Service) handleStatus(dispatcher.Event) (any, error) {
	return s.Status().String(), nil
}
