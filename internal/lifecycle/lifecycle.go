// Package lifecycle owns the start/stop state of the broadcast server and the
// goroutine running its loop.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/uell/livelink/internal/broadcast"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	// ErrStillStopping is returned by Start while the previous loop has not
	// released the socket yet.
	ErrStillStopping = errors.New("previous server is still stopping")
)

// State is the user-visible server state.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Server is the part of broadcast.Server the lifecycle drives.
type Server interface {
	Listen() error
	Run(ctx context.Context, stop broadcast.StopSignal) error
}

// Factory builds a fresh server for every start.
type Factory func() (Server, error)

// Lifecycle is safe for concurrent use.
type Lifecycle struct {
	factory Factory
	logger  *slog.Logger

	state atomic.Int32

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

func New(factory Factory, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{factory: factory, logger: logger}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

// IsRunning reports whether the server is Running.
func (l *Lifecycle) IsRunning() bool {
	return l.State() == Running
}

// StopRequested implements broadcast.StopSignal.
func (l *Lifecycle) StopRequested() bool {
	return !l.IsRunning()
}

// Toggle starts a stopped server or stops a running one and returns the
// resulting state. A failed start leaves the state Stopped.
func (l *Lifecycle) Toggle() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.IsRunning() {
		l.stopLocked()
		return Stopped, nil
	}
	if err := l.startLocked(); err != nil {
		return Stopped, err
	}
	return Running, nil
}

// Start binds the port and launches the broadcast loop. Bind errors are
// returned here, before any goroutine is spawned.
func (l *Lifecycle) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startLocked()
}

func (l *Lifecycle) startLocked() error {
	if l.IsRunning() {
		return ErrAlreadyRunning
	}
	if l.done != nil {
		select {
		case <-l.done:
		default:
			return ErrStillStopping
		}
	}

	srv, err := l.factory()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		l.logger.Error("failed to start broadcast server", "error", err)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.lastErr = nil
	l.state.Store(int32(Running))

	go func() {
		defer close(done)
		defer cancel()

		err := srv.Run(ctx, l)
		if err != nil {
			l.logger.Error("broadcast loop exited", "error", err)
			l.mu.Lock()
			l.lastErr = err
			l.mu.Unlock()
		}
		// the loop may end on its own; reflect that to the user
		l.state.CompareAndSwap(int32(Running), int32(Stopped))
	}()

	l.logger.Info("broadcast server started")
	return nil
}

// Stop requests the loop to exit and returns without waiting for it.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

func (l *Lifecycle) stopLocked() {
	if !l.state.CompareAndSwap(int32(Running), int32(Stopped)) {
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.logger.Info("broadcast server stop requested")
}

// Wait blocks until the loop goroutine has exited or ctx is done.
func (l *Lifecycle) Wait(ctx context.Context) error {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error the last loop exited with, if any.
func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}
