package storage

import (
	"log/slog"
	"sync"

	"github.com/uell/livelink/pkg/core"
)

// Uploader posts an exported session file somewhere.
type Uploader interface {
	Upload(filePath string, meta UploadMetadata) error
}

// uploading wraps an Uploadable backend and uploads each export after
// EndSession. Uploads run in the background; Close waits for them.
type uploading struct {
	Backend
	files    Uploadable
	uploader Uploader
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// WithUpload returns b extended to upload its exports. Backends that do
// not produce files are returned unchanged.
func WithUpload(b Backend, u Uploader, logger *slog.Logger) Backend {
	files, ok := b.(Uploadable)
	if !ok || u == nil {
		return b
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &uploading{Backend: b, files: files, uploader: u, logger: logger}
}

func (u *uploading) EndSession(s *core.Session) error {
	if err := u.Backend.EndSession(s); err != nil {
		return err
	}
	path := u.files.GetExportedFilePath()
	if path == "" {
		return nil
	}
	meta := u.files.GetExportMetadata()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if err := u.uploader.Upload(path, meta); err != nil {
			u.logger.Error("Session upload failed", "session", meta.SessionID, "path", path, "error", err)
			return
		}
		u.logger.Info("Session uploaded", "session", meta.SessionID, "path", path)
	}()
	return nil
}

func (u *uploading) Close() error {
	err := u.Backend.Close()
	u.wg.Wait()
	return err
}
