// Package broadcast serves tracked entity samples to a single TCP peer.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uell/livelink/internal/encoder"
	"github.com/uell/livelink/internal/session"
	"github.com/uell/livelink/internal/storage"
	"github.com/uell/livelink/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrBind matches any *BindError.
	ErrBind = errors.New("bind failed")
	// ErrConnectionLost is reported when a write to the peer fails or the
	// peer closes its end.
	ErrConnectionLost = errors.New("connection lost")
)

// BindError is returned by Listen when the port cannot be bound.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %s: %v", e.Addr, e.Err) }

func (e *BindError) Unwrap() error { return e.Err }

func (e *BindError) Is(target error) bool { return target == ErrBind }

// State of the server.
type State int32

const (
	StateStopped State = iota
	StateListening
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateConnected:
		return "connected"
	default:
		return "stopped"
	}
}

// StopSignal is polled at pass boundaries and after each accept timeout.
type StopSignal interface {
	StopRequested() bool
}

// Snapshotter provides the tracked set for one pass.
type Snapshotter interface {
	List() []core.TrackedEntity
}

// SampleSource samples one tracked entity.
type SampleSource interface {
	Sample(e core.TrackedEntity) (core.Sample, error)
}

type Config struct {
	Host          string
	Port          int
	AcceptTimeout time.Duration // 0 blocks in accept until a peer arrives
	WriteTimeout  time.Duration // 0 means no write deadline
}

type Dependencies struct {
	Registry Snapshotter
	Sampler  SampleSource
	Encoder  encoder.Encoder
	Pacer    Pacer           // nil runs passes back to back
	Recorder storage.Backend // optional
	Session  *session.Context
	Logger   *slog.Logger
}

// Server is a one-shot broadcast server: Listen, then Run until stopped.
type Server struct {
	cfg  Config
	deps Dependencies

	state    atomic.Int32
	mu       sync.Mutex
	listener *net.TCPListener
	conn     net.Conn

	nextSession atomic.Uint32
	metrics     *metrics
}

func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Registry == nil || deps.Sampler == nil {
		return nil, errors.New("broadcast: registry and sampler are required")
	}
	if deps.Encoder == nil {
		deps.Encoder = encoder.Line{}
	}
	if deps.Pacer == nil {
		deps.Pacer = unpaced{}
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	m, err := newMetrics()
	if err != nil {
		return nil, err
	}
	return &Server{cfg: cfg, deps: deps, metrics: m}, nil
}

// State returns the current server state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the listening socket. Failures are *BindError.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return &BindError{Addr: addr, Err: err}
	}

	s.mu.Lock()
	s.listener = l.(*net.TCPListener)
	s.mu.Unlock()
	s.state.Store(int32(StateListening))

	s.deps.Logger.Info("broadcast server listening", "addr", l.Addr().String())
	return nil
}

var errStopRequested = errors.New("stop requested")

// Run accepts peers and streams to them until stop is requested or accept
// fails. ctx only interrupts pacing waits. The listener is closed on return.
func (s *Server) Run(ctx context.Context, stop StopSignal) error {
	defer s.shutdown()

	if s.Addr() == nil {
		return errors.New("broadcast: Run called before Listen")
	}

	for {
		conn, err := s.accept(stop)
		if errors.Is(err, errStopRequested) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}

		err = s.serve(ctx, conn, stop)
		switch {
		case errors.Is(err, errStopRequested):
			return nil
		case errors.Is(err, ErrConnectionLost):
			s.deps.Logger.Warn("peer disconnected, waiting for a new connection", "error", err)
		default:
			return err
		}
	}
}

func (s *Server) accept(stop StopSignal) (net.Conn, error) {
	for {
		if stop.StopRequested() {
			return nil, errStopRequested
		}
		if s.cfg.AcceptTimeout > 0 {
			if err := s.listener.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
				return nil, err
			}
		}
		conn, err := s.listener.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if stop.StopRequested() {
				return nil, errStopRequested
			}
			return nil, err
		}
		return conn, nil
	}
}

// serve streams to conn until the peer is lost (ErrConnectionLost) or a
// stop is requested (errStopRequested).
func (s *Server) serve(ctx context.Context, conn net.Conn, stop StopSignal) error {
	sess := &core.Session{
		Port:      s.cfg.Port,
		Encoding:  s.deps.Encoder.Name(),
		Peer:      conn.RemoteAddr().String(),
		StartTime: time.Now(),
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.state.Store(int32(StateConnected))
	s.metrics.sessions.Add(context.Background(), 1)

	logger := s.deps.Logger.With("peer", sess.Peer)
	logger.Info("peer connected")

	// the recorder may assign a persistent ID
	s.record(func(r storage.Backend) error { return r.StartSession(sess) })
	if sess.ID == 0 {
		sess.ID = uint(s.nextSession.Add(1))
	}
	s.deps.Session.Publish(*sess)

	defer func() {
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		if s.State() == StateConnected {
			s.state.Store(int32(StateListening))
		}

		sess.EndTime = time.Now()
		s.record(func(r storage.Backend) error { return r.EndSession(sess) })
		s.deps.Session.End(*sess)
		logger.Info("session ended", "ticks", sess.Ticks, "bytes", sess.BytesSent)
	}()

	// A pass with nothing to send never writes, so a departed peer is
	// noticed on the read side instead.
	peerCtx, peerLost := context.WithCancelCause(ctx)
	defer peerLost(nil)
	go watchPeer(conn, peerLost)

	for {
		if stop.StopRequested() {
			return errStopRequested
		}
		if err := s.deps.Pacer.Wait(peerCtx); err != nil {
			if stop.StopRequested() || ctx.Err() != nil {
				return errStopRequested
			}
			if peerCtx.Err() != nil {
				return fmt.Errorf("%w: %w", ErrConnectionLost, context.Cause(peerCtx))
			}
			return fmt.Errorf("pacer: %w", err)
		}
		if stop.StopRequested() {
			return errStopRequested
		}
		if peerCtx.Err() != nil {
			return fmt.Errorf("%w: %w", ErrConnectionLost, context.Cause(peerCtx))
		}

		if err := s.pass(conn, sess, logger); err != nil {
			return err
		}
		s.deps.Session.Publish(*sess)
	}
}

// watchPeer drains whatever the peer sends and reports when it goes away.
func watchPeer(conn net.Conn, lost context.CancelCauseFunc) {
	_, err := io.Copy(io.Discard, conn)
	if err == nil {
		err = io.EOF
	}
	lost(err)
}

// pass samples, encodes and writes every active entity of one snapshot.
func (s *Server) pass(conn net.Conn, sess *core.Session, logger *slog.Logger) error {
	ctx := context.Background()
	start := time.Now()
	sess.Ticks++

	stats := core.TickStats{SessionID: sess.ID, Tick: sess.Ticks, Time: start}
	for _, e := range s.deps.Registry.List() {
		if !e.Active {
			continue
		}
		smp, err := s.deps.Sampler.Sample(e)
		if err != nil {
			stats.Skipped++
			s.metrics.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", e.Kind.String())))
			logger.Debug("skipping entity", "id", e.ID, "error", err)
			continue
		}

		payload := s.deps.Encoder.Encode(e.Subject(), smp)
		if len(payload) > 0 {
			if err := s.write(conn, payload); err != nil {
				return fmt.Errorf("%w: %w", ErrConnectionLost, err)
			}
		}

		stats.Entities++
		stats.Bytes += len(payload)
		sess.BytesSent += uint64(len(payload))
		s.metrics.frames.Add(ctx, 1)
		s.record(func(r storage.Backend) error {
			return r.RecordFrame(&core.Frame{SessionID: sess.ID, Tick: sess.Ticks, Time: start, Entity: e, Sample: smp})
		})
	}

	stats.Duration = time.Since(start)
	s.metrics.ticks.Add(ctx, 1)
	s.metrics.bytes.Add(ctx, int64(stats.Bytes))
	s.record(func(r storage.Backend) error { return r.RecordTick(&stats) })
	return nil
}

func (s *Server) write(conn net.Conn, b []byte) error {
	if s.cfg.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return err
		}
	}
	_, err := conn.Write(b)
	return err
}

func (s *Server) record(fn func(storage.Backend) error) {
	if s.deps.Recorder == nil {
		return
	}
	if err := fn(s.deps.Recorder); err != nil {
		s.deps.Logger.Warn("recorder error", "error", err)
	}
}

func (s *Server) shutdown() {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	s.state.Store(int32(StateStopped))
	s.deps.Logger.Info("broadcast server stopped")
}
