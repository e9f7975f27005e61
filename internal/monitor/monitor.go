package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/uell/livelink/internal/control"
	"github.com/uell/livelink/internal/session"
	"github.com/uell/livelink/pkg/core"
)

// FileName is the status file written into Dir.
const FileName = "status.json"

// StatusSource is satisfied by *control.Service.
type StatusSource interface {
	Status() control.Status
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Control StatusSource
	Session *session.Context
	// Pending reports queued recorder writes; optional.
	Pending  func() int
	Dir      string
	Interval time.Duration
	Logger   *slog.Logger
}

// Status is the content of status.json.
type Status struct {
	Time          time.Time      `json:"time"`
	State         string         `json:"state"`
	Tracked       int            `json:"tracked"`
	Session       *SessionStatus `json:"session,omitempty"`
	LastSession   *SessionStatus `json:"lastSession,omitempty"`
	PendingWrites int            `json:"pendingWrites"`
}

// SessionStatus summarizes one broadcast session for humans.
type SessionStatus struct {
	ID        uint   `json:"id"`
	Peer      string `json:"peer"`
	Encoding  string `json:"encoding"`
	Started   string `json:"started"`
	Ticks     string `json:"ticks"`
	BytesSent string `json:"bytesSent"`
}

func summarize(s core.Session, now time.Time) *SessionStatus {
	return &SessionStatus{
		ID:        s.ID,
		Peer:      s.Peer,
		Encoding:  s.Encoding,
		Started:   humanize.RelTime(s.StartTime, now, "ago", "from now"),
		Ticks:     humanize.Comma(int64(s.Ticks)),
		BytesSent: humanize.Bytes(s.BytesSent),
	}
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Path returns the status file location.
func (s *Service) Path() string {
	return filepath.Join(s.deps.Dir, FileName)
}

// Snapshot collects the current program status.
func (s *Service) Snapshot() Status {
	now := time.Now()
	ctl := s.deps.Control.Status()
	st := Status{
		Time:    now.UTC(),
		State:   ctl.State,
		Tracked: ctl.Tracked,
	}
	if s.deps.Session != nil {
		if cur, ok := s.deps.Session.Current(); ok {
			st.Session = summarize(cur, now)
		}
		if last, ok := s.deps.Session.Last(); ok {
			st.LastSession = summarize(last, now)
		}
	}
	if s.deps.Pending != nil {
		st.PendingWrites = s.deps.Pending()
	}
	return st
}

// WriteStatus replaces the status file with the current snapshot.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	tmp := s.Path() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return os.Rename(tmp, s.Path())
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(s.deps.Dir, 0755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create status dir: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.Path(), "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
