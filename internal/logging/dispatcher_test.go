package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/dispatcher"
)

var _ dispatcher.Logger = (*DispatcherLogger)(nil)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		level string
		log   func(*DispatcherLogger)
	}{
		{"debug", func(dl *DispatcherLogger) { dl.Debug("handling command", "command", ":TRACK:", "args", 2) }},
		{"info", func(dl *DispatcherLogger) { dl.Info("handling command", "command", ":TRACK:", "args", 2) }},
		{"error", func(dl *DispatcherLogger) { dl.Error("handling command", "command", ":TRACK:", "args", 2) }},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))

			entry := decode(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "handling command", entry["message"])
			assert.Equal(t, "dispatcher", entry["component"])
			assert.Equal(t, ":TRACK:", entry["command"])
			assert.Equal(t, float64(2), entry["args"])
		})
	}
}

func TestDispatcherLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("dropped")
	assert.Zero(t, buf.Len())
}

func TestDispatcherLogger_OddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("odd", "command", ":UNTRACK:", 3, "skipped", "dangling")

	entry := decode(t, &buf)
	assert.Equal(t, ":UNTRACK:", entry["command"])
	assert.NotContains(t, entry, "dangling")
	assert.NotContains(t, entry, "skipped")
}

func TestDispatcherLogger_ErrorValue(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Error("command failed", "error", errors.New("server running"))

	assert.Equal(t, "server running", decode(t, &buf)["error"])
}

func TestDispatcherLogger_Nop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewDispatcherLogger(zerolog.Nop()).Info("ignored", "k", "v")
	})
}
