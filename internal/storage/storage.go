// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/uell/livelink/pkg/core"
)

// Backend is the interface all session recorders must satisfy.
// Calls come from the broadcast loop and must not block on I/O.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management (StartSession assigns s.ID when zero)
	StartSession(s *core.Session) error
	EndSession(s *core.Session) error

	// Recording
	RecordFrame(f *core.Frame) error
	RecordTick(t *core.TickStats) error
}

// UploadMetadata describes an exported session file.
type UploadMetadata struct {
	SessionID uint
	Peer      string
	Encoding  string
	Duration  float64 // seconds
	Ticks     uint64
}

// Uploadable is an optional interface for backends that produce a file per session.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() UploadMetadata
}

// Multi fans every call out to all backends. Errors are joined.
type Multi []Backend

var _ Backend = Multi(nil)

func (m Multi) Init() error {
	return m.each(func(b Backend) error { return b.Init() })
}

func (m Multi) Close() error {
	return m.each(func(b Backend) error { return b.Close() })
}

// StartSession lets the first backend assign the ID, the rest reuse it.
func (m Multi) StartSession(s *core.Session) error {
	return m.each(func(b Backend) error { return b.StartSession(s) })
}

func (m Multi) EndSession(s *core.Session) error {
	return m.each(func(b Backend) error { return b.EndSession(s) })
}

func (m Multi) RecordFrame(f *core.Frame) error {
	return m.each(func(b Backend) error { return b.RecordFrame(f) })
}

func (m Multi) RecordTick(t *core.TickStats) error {
	return m.each(func(b Backend) error { return b.RecordTick(t) })
}

func (m Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, b := range m {
		if err := fn(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
