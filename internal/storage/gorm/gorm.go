// Package gormstorage implements storage.Backend on gorm with internal
// queues and a background DB writer goroutine. The sqlite and postgres
// backends embed it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/uell/livelink/internal/database"
	"github.com/uell/livelink/internal/model"
	"github.com/uell/livelink/internal/model/convert"
	"github.com/uell/livelink/internal/queue"
	"github.com/uell/livelink/internal/storage"
	"github.com/uell/livelink/pkg/core"
	"gorm.io/gorm"
)

const (
	DefaultFlushInterval = 2 * time.Second
	// DefaultQueueSize bounds each queue; about a minute of a 60-bone rig at 60 Hz.
	DefaultQueueSize = 250_000
)

var ErrNotInitialized = errors.New("gorm backend not initialized")

type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	QueueSize     int
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	BoneStates   *queue.Queue[model.BoneState]
	CameraStates *queue.Queue[model.CameraState]
	TickStats    *queue.Queue[model.TickStat]
}

func newQueues(size int) *queues {
	return &queues{
		BoneStates:   queue.NewBounded[model.BoneState](size),
		CameraStates: queue.NewBounded[model.CameraState](size),
		TickStats:    queue.NewBounded[model.TickStat](size),
	}
}

// Backend records sessions with gorm. Frames and ticks are queued and
// written in batches; session rows are written synchronously.
type Backend struct {
	deps   Dependencies
	queues *queues

	// writeMu serializes batch writes between the writer and Flush.
	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

var _ storage.Backend = (*Backend)(nil)

func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	if deps.QueueSize <= 0 {
		deps.QueueSize = DefaultQueueSize
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNotInitialized
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.queues = newQueues(b.deps.QueueSize)
	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writer()
	return nil
}

// Close stops the writer and writes whatever is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	return b.Flush()
}

// StartSession inserts the session row and assigns its ID.
func (b *Backend) StartSession(s *core.Session) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	row := convert.SessionToModel(*s)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID
	return nil
}

// EndSession flushes the session's queued rows and stores its totals.
func (b *Backend) EndSession(s *core.Session) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	flushErr := b.Flush()

	row := convert.SessionToModel(*s)
	err := b.deps.DB.Model(&model.Session{ID: s.ID}).Updates(map[string]any{
		"end_time":   row.EndTime,
		"ticks":      row.Ticks,
		"bytes_sent": row.BytesSent,
	}).Error
	if err != nil {
		err = fmt.Errorf("failed to update session %d: %w", s.ID, err)
	}
	return errors.Join(flushErr, err)
}

// RecordFrame converts a frame to rows and pushes them to the write queue.
func (b *Backend) RecordFrame(f *core.Frame) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	if rows := convert.FrameToBoneStates(f); len(rows) > 0 {
		b.queues.BoneStates.Push(rows...)
	} else if row, ok := convert.FrameToCameraState(f); ok {
		b.queues.CameraStates.Push(row)
	}
	return nil
}

func (b *Backend) RecordTick(t *core.TickStats) error {
	if b.queues == nil {
		return ErrNotInitialized
	}
	b.queues.TickStats.Push(convert.TickToModel(t))
	return nil
}

// Pending is the number of rows waiting for the writer.
func (b *Backend) Pending() int {
	if b.queues == nil {
		return 0
	}
	return b.queues.BoneStates.Len() + b.queues.CameraStates.Len() + b.queues.TickStats.Len()
}

// Flush writes all queued rows now.
func (b *Backend) Flush() error {
	if b.queues == nil {
		return nil
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	return errors.Join(
		writeQueue(b.deps.DB, b.queues.BoneStates, "bone states", b.deps.Logger),
		writeQueue(b.deps.DB, b.queues.CameraStates, "camera states", b.deps.Logger),
		writeQueue(b.deps.DB, b.queues.TickStats, "tick stats", b.deps.Logger),
	)
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the head of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.GetAndEmpty()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&items).Error
	})
	if err != nil {
		log.Error("Error creating "+name, "count", len(items), "error", err)
		q.Requeue(items)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func (b *Backend) writer() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
