// internal/api/client_test.go
package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uell/livelink/internal/storage"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000/", "secret123", 0)

	require.NotNil(t, c)
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret123", c.apiKey)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	c = New("http://localhost:5000", "", time.Second)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
}

func TestHealthcheck(t *testing.T) {
	status := http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer server.Close()

	c := New(server.URL, "", 0)
	assert.NoError(t, c.Healthcheck())

	status = http.StatusInternalServerError
	assert.Error(t, c.Healthcheck())
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New("http://127.0.0.1:1", "", time.Second)
	assert.Error(t, c.Healthcheck())
}

func TestUpload_Success(t *testing.T) {
	form := map[string]string{}
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sessions/add", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, k := range []string{"secret", "filename", "sessionId", "peer", "encoding", "duration", "ticks"} {
			form[k] = r.FormValue(k)
		}

		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ = io.ReadAll(file)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "session_3_20260101_120000.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("test content"), 0644))

	c := New(server.URL, "mysecret", 0)
	err := c.Upload(path, storage.UploadMetadata{
		SessionID: 3,
		Peer:      "10.0.0.5:51000",
		Encoding:  "binary",
		Duration:  12.25,
		Ticks:     735,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"secret":    "mysecret",
		"filename":  "session_3_20260101_120000.json.gz",
		"sessionId": "3",
		"peer":      "10.0.0.5:51000",
		"encoding":  "binary",
		"duration":  "12.250",
		"ticks":     "735",
	}, form)
	assert.Equal(t, "test content", string(content))
}

func TestUpload_FileNotFound(t *testing.T) {
	c := New("http://localhost:5000", "secret", 0)
	assert.Error(t, c.Upload("/nonexistent/file.json.gz", storage.UploadMetadata{}))
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "test.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	c := New(server.URL, "wrong-secret", 0)
	err := c.Upload(path, storage.UploadMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUpload_ServerErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "session already stored", http.StatusConflict)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "test.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	err := New(server.URL, "secret", 0).Upload(path, storage.UploadMetadata{SessionID: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "session already stored")
}

func TestUpload_Unreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	err := New("http://127.0.0.1:1", "secret", time.Second).Upload(path, storage.UploadMetadata{})
	assert.ErrorContains(t, err, "upload request failed")
}
