// Package websocket relays recorded sessions to a remote recorder over a
// WebSocket. Frames and ticks are fire-and-forget; session start and end
// expect an ack from the recorder, awaited off the caller's goroutine.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/uell/livelink/internal/storage"
	"github.com/uell/livelink/pkg/core"
	"github.com/uell/livelink/pkg/streaming"
)

type Config struct {
	URL          string
	Secret       string
	AckTimeout   time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	QueueSize    int
	WriteTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = time.Second
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = 30 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 10_000
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// Backend implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn    *connection
	nextID  atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
}

var _ storage.Backend = (*Backend)(nil)

func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{conn: newConnection(cfg.withDefaults(), logger.With("recorder", "websocket"))}
}

// Init connects to the recorder.
func (b *Backend) Init() error {
	return b.conn.dial()
}

func (b *Backend) Close() error {
	return b.conn.close()
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := streaming.NewEnvelope(msgType, payload)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

func (b *Backend) push(data []byte) {
	if b.conn.send(data) {
		b.sent.Add(1)
	} else {
		b.dropped.Add(1)
	}
}

// StartSession assigns a local ID when none is set and queues
// start_session. It does not wait for the ack.
func (b *Backend) StartSession(s *core.Session) error {
	if s.ID == 0 {
		s.ID = uint(b.nextID.Add(1))
	}
	data, err := marshalEnvelope(streaming.TypeStartSession, s)
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.cachedStart = data
	b.conn.mu.Unlock()

	return b.conn.sendAcked(data, streaming.TypeStartSession)
}

// EndSession queues end_session. It does not wait for the ack.
func (b *Backend) EndSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeEndSession, s)
	if err != nil {
		return err
	}
	err = b.conn.sendAcked(data, streaming.TypeEndSession)

	b.conn.mu.Lock()
	b.conn.cachedStart = nil
	b.conn.mu.Unlock()
	return err
}

func (b *Backend) RecordFrame(f *core.Frame) error {
	env, err := streaming.SampleEnvelope(f.SessionID, f.Tick, f.Entity.Subject(), f.Sample)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}
	b.push(data)
	return nil
}

func (b *Backend) RecordTick(t *core.TickStats) error {
	data, err := marshalEnvelope(streaming.TypeTick, t)
	if err != nil {
		return err
	}
	b.push(data)
	return nil
}

// Stats returns how many fire-and-forget messages were queued and dropped.
func (b *Backend) Stats() (sent, dropped uint64) {
	return b.sent.Load(), b.dropped.Load()
}

// AckStats returns how many session messages were acked and how many timed out.
func (b *Backend) AckStats() (acked, missed uint64) {
	return b.conn.acked.Load(), b.conn.missed.Load()
}
