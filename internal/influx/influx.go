// Package influx writes session samples and tick stats to InfluxDB, falling
// back to a gzip line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/uell/livelink/internal/config"
	"github.com/uell/livelink/pkg/core"
)

var ErrDisabled = errors.New("influx.enabled is false")

// Point is the client's point type.
type Point = influxdb2_write.Point

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg    config.InfluxConfig
	logger zerolog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
}

func NewManager(cfg config.InfluxConfig, log zerolog.Logger) *Manager {
	return &Manager{cfg: cfg, logger: log}
}

// Connect pings the server. When it is unreachable a backup file is opened
// in cfg.BackupDir and Connect still succeeds.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		m.logger.Warn().Err(err).Str("url", m.cfg.URL()).Msg("InfluxDB unreachable, using backup writer")
		return m.openBackup()
	}

	if err := m.setupBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backup != nil {
		return nil
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return fmt.Errorf("error creating backup dir: %w", err)
	}
	path := filepath.Join(m.cfg.BackupDir, fmt.Sprintf("livelink_%s.lp.gz", time.Now().Format("20060102_150405")))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	m.logger.Info().Str("backupPath", path).Msg("Writing InfluxDB points to backup file")
	return nil
}

// setupBucket ensures the org and bucket exist, with 30 day retention.
func (m *Manager) setupBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")
	rule := domain.RetentionRuleTypeExpire
	_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: 60 * 60 * 24 * 30,
	})
	if err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Valid reports whether points go to the server rather than the backup file.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// WritePoint queues a point on the async write API or appends it to the backup.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backup == nil {
		return errors.New("influxDB client not initialized and backup writer not available")
	}
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := m.backup.Write([]byte(line)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	var errs []error
	if m.backup != nil {
		errs = append(errs, m.backup.Close())
		errs = append(errs, m.backupFile.Close())
		m.backup = nil
	}
	m.valid = false
	return errors.Join(errs...)
}

// FramePoints converts a frame to one point per bone, or one point for a camera.
func FramePoints(f *core.Frame) []*influxdb2_write.Point {
	tags := map[string]string{
		"session": strconv.FormatUint(uint64(f.SessionID), 10),
		"subject": f.Entity.Subject(),
	}

	switch s := f.Sample.(type) {
	case core.SkeletalSample:
		points := make([]*influxdb2_write.Point, 0, len(s.Bones))
		for _, b := range s.Bones {
			p := influxdb2_write.NewPoint("bone", tags, transformFields(b.Position, b.Rotation), f.Time)
			p.AddTag("bone", b.Name)
			p.AddField("sx", b.Scale.X)
			p.AddField("sy", b.Scale.Y)
			p.AddField("sz", b.Scale.Z)
			p.AddField("tick", f.Tick)
			points = append(points, p)
		}
		return points
	case core.CameraTransform:
		p := influxdb2_write.NewPoint("camera", tags, transformFields(s.Position, s.Rotation), f.Time)
		p.AddField("tick", f.Tick)
		return []*influxdb2_write.Point{p}
	}
	return nil
}

func transformFields(pos core.Vec3, rot core.Quaternion) map[string]any {
	return map[string]any{
		"x": pos.X, "y": pos.Y, "z": pos.Z,
		"qw": rot.W, "qx": rot.X, "qy": rot.Y, "qz": rot.Z,
	}
}

// TickPoint converts pass statistics to a point in the "tick" measurement.
func TickPoint(t *core.TickStats) *influxdb2_write.Point {
	return influxdb2_write.NewPoint("tick",
		map[string]string{"session": strconv.FormatUint(uint64(t.SessionID), 10)},
		map[string]any{
			"tick":        t.Tick,
			"duration_us": t.Duration.Microseconds(),
			"entities":    t.Entities,
			"skipped":     t.Skipped,
			"bytes":       t.Bytes,
		},
		t.Time)
}

// SessionPoint marks the start or end of a session in the "session" measurement.
func SessionPoint(s *core.Session, event string) *influxdb2_write.Point {
	ts := s.StartTime
	if event == "end" && !s.EndTime.IsZero() {
		ts = s.EndTime
	}
	return influxdb2_write.NewPoint("session",
		map[string]string{
			"session": strconv.FormatUint(uint64(s.ID), 10),
			"event":   event,
		},
		map[string]any{
			"peer":     s.Peer,
			"port":     s.Port,
			"encoding": s.Encoding,
			"ticks":    s.Ticks,
			"bytes":    s.BytesSent,
		},
		ts)
}
