package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/model"
)

func TestManager_SQLiteMemory(t *testing.T) {
	m := NewManager(zerolog.Nop())
	require.NoError(t, m.ConnectSQLite(""))
	defer m.Close()

	assert.True(t, m.Local)
	require.NoError(t, m.Setup())
	assert.True(t, m.DB.Migrator().HasTable(&model.BoneState{}))
	assert.True(t, m.DB.Migrator().HasTable(&model.Session{}))
}

func TestManager_SetupWithoutConnection(t *testing.T) {
	assert.Error(t, NewManager(zerolog.Nop()).Setup())
}

func TestOpenSQLite_MemoryDatabasesArePrivate(t *testing.T) {
	a, err := OpenSQLite("")
	require.NoError(t, err)
	b, err := OpenSQLite("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	require.NoError(t, a.Create(&model.Session{Peer: "a"}).Error)
	assert.False(t, b.Migrator().HasTable(&model.Session{}))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.Session{Peer: "127.0.0.1:9000"}).Error)

	path := DumpPath(t.TempDir(), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// a second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := OpenSQLite(path)
	require.NoError(t, err)
	var sessions []model.Session
	require.NoError(t, disk.Find(&sessions).Error)
	require.Len(t, sessions, 1)
	assert.Equal(t, "127.0.0.1:9000", sessions[0].Peer)

	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestFindDumps(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"livelink_20260101_000000.db", "livelink_20260102_000000.db", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.db"), 0o755))

	paths, err := FindDumps(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "livelink_20260102_000000.db"),
		filepath.Join(dir, "livelink_20260101_000000.db"),
	}, paths)
}
