// internal/storage/memory/export.go
package memory

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/uell/livelink/internal/storage"
	v1 "github.com/uell/livelink/internal/storage/memory/export/v1"
)

// export writes the session and clears the buffer. Called with b.mu held.
func (b *Backend) export(data v1.Export) error {
	b.builder = nil

	path, err := WriteExport(b.cfg.OutputDir, data, b.cfg.CompressOutput)
	if err != nil {
		return err
	}

	b.lastExportPath = path
	b.lastExportMeta = storage.UploadMetadata{
		SessionID: data.SessionID,
		Peer:      data.Peer,
		Encoding:  data.Encoding,
		Duration:  data.EndTime.Sub(data.StartTime).Seconds(),
		Ticks:     data.Ticks,
	}
	return nil
}

// FileName is session_<id>_<start>.json, with .gz when compressed.
func FileName(data v1.Export, compress bool) string {
	name := fmt.Sprintf("session_%d_%s.json", data.SessionID, data.StartTime.Format("20060102_150405"))
	if compress {
		name += ".gz"
	}
	return name
}

// WriteExport writes data into dir and returns the file path.
func WriteExport(dir string, data v1.Export, compress bool) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, FileName(data, compress))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		w = gz
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	return path, f.Close()
}

// ReadExport loads an export written by WriteExport, compressed or not.
func ReadExport(path string) (v1.Export, error) {
	var data v1.Export

	f, err := os.Open(path)
	if err != nil {
		return data, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var r io.Reader = br
	if magic, _ := br.Peek(2); len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return data, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return data, fmt.Errorf("failed to decode export %s: %w", path, err)
	}
	return data, nil
}
