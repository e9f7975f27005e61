// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/uell/livelink/internal/config"
	"github.com/uell/livelink/internal/storage"
	v1 "github.com/uell/livelink/internal/storage/memory/export/v1"
	"github.com/uell/livelink/pkg/core"
)

// Backend buffers the current session in memory and exports it to JSON
// when the session ends.
type Backend struct {
	cfg config.MemoryConfig

	mu      sync.Mutex
	builder *v1.Builder

	idCounter      uint
	lastExportPath string
	lastExportMeta storage.UploadMetadata
}

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Uploadable = (*Backend)(nil)
)

func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

func (b *Backend) Init() error {
	return nil
}

// Close exports a session that never ended, so nothing buffered is lost.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.builder == nil {
		return nil
	}
	return b.export(b.builder.Build(core.Session{}))
}

// StartSession begins a new buffer, dropping any unfinished one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.ID == 0 {
		b.idCounter++
		s.ID = b.idCounter
	}
	b.builder = v1.NewBuilder(*s)
	return nil
}

// EndSession writes the buffered session to disk.
func (b *Backend) EndSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.builder == nil {
		return nil
	}
	return b.export(b.builder.Build(*s))
}

func (b *Backend) RecordFrame(f *core.Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.builder != nil {
		b.builder.AddFrame(f)
	}
	return nil
}

func (b *Backend) RecordTick(t *core.TickStats) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.builder != nil {
		b.builder.AddTick(t)
	}
	return nil
}

// GetExportedFilePath returns the path of the last exported session.
func (b *Backend) GetExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last exported session.
func (b *Backend) GetExportMetadata() storage.UploadMetadata {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastExportMeta
}
