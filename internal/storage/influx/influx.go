// Package influxstorage records sessions as InfluxDB points.
package influxstorage

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/uell/livelink/internal/influx"
	"github.com/uell/livelink/internal/storage"
	"github.com/uell/livelink/pkg/core"
)

// ConnectTimeout bounds the ping and bucket setup in Init.
const ConnectTimeout = 10 * time.Second

// Writer is the subset of *influx.Manager the backend uses.
type Writer interface {
	Connect(ctx context.Context) error
	WritePoint(point *influx.Point) error
	Close() error
}

// Backend implements storage.Backend on top of an influx writer.
type Backend struct {
	w      Writer
	nextID atomic.Uint64
}

var _ storage.Backend = (*Backend)(nil)

func New(w Writer) *Backend {
	return &Backend{w: w}
}

func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	return b.w.Connect(ctx)
}

func (b *Backend) Close() error {
	return b.w.Close()
}

func (b *Backend) StartSession(s *core.Session) error {
	if s.ID == 0 {
		s.ID = uint(b.nextID.Add(1))
	}
	return b.w.WritePoint(influx.SessionPoint(s, "start"))
}

func (b *Backend) EndSession(s *core.Session) error {
	return b.w.WritePoint(influx.SessionPoint(s, "end"))
}

func (b *Backend) RecordFrame(f *core.Frame) error {
	var errs []error
	for _, p := range influx.FramePoints(f) {
		if err := b.w.WritePoint(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) RecordTick(t *core.TickStats) error {
	return b.w.WritePoint(influx.TickPoint(t))
}
