// internal/storage/memory/memory_test.go
package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/config"
	"github.com/uell/livelink/pkg/core"
)

func record(t *testing.T, b *Backend, s *core.Session) {
	t.Helper()
	require.NoError(t, b.StartSession(s))

	cam := core.TrackedEntity{ID: "Cam", Kind: core.KindCamera}
	for tick := uint64(1); tick <= 3; tick++ {
		require.NoError(t, b.RecordFrame(&core.Frame{
			SessionID: s.ID,
			Tick:      tick,
			Entity:    cam,
			Sample:    core.CameraTransform{Position: core.Vec3{X: float64(tick)}, Rotation: core.IdentityRotation},
		}))
		require.NoError(t, b.RecordTick(&core.TickStats{SessionID: s.ID, Tick: tick, Entities: 1}))
	}

	s.Ticks = 3
	s.EndTime = s.StartTime.Add(2 * time.Second)
	require.NoError(t, b.EndSession(s))
}

func TestBackend_ExportsCompressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true})
	require.NoError(t, b.Init())

	s := &core.Session{Peer: "127.0.0.1:7000", Encoding: "line", StartTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	record(t, b, s)

	assert.Equal(t, uint(1), s.ID, "zero ID is assigned")
	path := b.GetExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "session_1_20260301_120000.json.gz"), path)

	meta := b.GetExportMetadata()
	assert.Equal(t, uint(1), meta.SessionID)
	assert.Equal(t, 2.0, meta.Duration)
	assert.Equal(t, uint64(3), meta.Ticks)

	data, err := ReadExport(path)
	require.NoError(t, err)
	require.Len(t, data.Subjects, 1)
	assert.Len(t, data.Subjects[0].Frames, 3)
	assert.Len(t, data.TickStats, 3)
	assert.Equal(t, "127.0.0.1:7000", data.Peer)
}

func TestBackend_ExportsPlainJSON(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})

	s := &core.Session{ID: 42, StartTime: time.Unix(0, 0).UTC()}
	record(t, b, s)

	path := b.GetExportedFilePath()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sessionId":42`)

	data, err := ReadExport(path)
	require.NoError(t, err)
	assert.Equal(t, uint(42), data.SessionID)
}

func TestBackend_RecordWithoutSession(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})

	assert.NoError(t, b.RecordFrame(&core.Frame{}))
	assert.NoError(t, b.RecordTick(&core.TickStats{}))
	assert.NoError(t, b.EndSession(&core.Session{}))
	assert.Empty(t, b.GetExportedFilePath())
}

func TestBackend_CloseFlushesOpenSession(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir})
	require.NoError(t, b.StartSession(&core.Session{ID: 9}))

	require.NoError(t, b.Close())
	assert.FileExists(t, b.GetExportedFilePath())

	// a second close has nothing left to write
	require.NoError(t, b.Close())
}

func TestReadExport_Missing(t *testing.T) {
	_, err := ReadExport(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
