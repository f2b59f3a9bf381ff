package webdav

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func request(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if method == "PROPFIND" {
		req.Header.Set("Depth", "1")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSingleMountServedAtRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Inception (2010)", "Inception (2010).mkv"), "video-bytes")
	h := NewServer(Mount{Name: "library", Dir: dir}).Handler()

	rec := request(t, h, http.MethodGet, "/Inception%20(2010)/Inception%20(2010).mkv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video-bytes", rec.Body.String())
	assert.Equal(t, "video/x-matroska", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("ETag"))

	rec = request(t, h, "PROPFIND", "/", nil)
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.Contains(t, rec.Body.String(), "Inception")
}

func TestMultipleMountsAsFolders(t *testing.T) {
	movies := t.TempDir()
	shows := t.TempDir()
	writeFile(t, filepath.Join(movies, "A (2001)", "A (2001).mkv"), "a")
	writeFile(t, filepath.Join(shows, "B (2008)", "Season 01", "B S01E01.mkv"), "b")

	h := NewServer(
		Mount{Name: "movies", Dir: movies},
		Mount{Name: "episodes", Dir: shows},
	).Handler()

	rec := request(t, h, "PROPFIND", "/", nil)
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/movies/")
	assert.Contains(t, body, "/episodes/")

	rec = request(t, h, http.MethodGet, "/episodes/B%20(2008)/Season%2001/B%20S01E01.mkv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b", rec.Body.String())

	rec = request(t, h, http.MethodGet, "/unknown/file.mkv", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWritesAreRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.mkv"), "keep")
	h := NewServer(Mount{Name: "library", Dir: dir}).Handler()

	tests := []struct {
		method string
		target string
		body   io.Reader
	}{
		{http.MethodPut, "/new.mkv", strings.NewReader("x")},
		{"MKCOL", "/folder", nil},
		{http.MethodDelete, "/keep.mkv", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := request(t, h, tt.method, tt.target, tt.body)
			assert.GreaterOrEqual(t, rec.Code, 400)
		})
	}

	assert.NoFileExists(t, filepath.Join(dir, "new.mkv"))
	assert.NoDirExists(t, filepath.Join(dir, "folder"))
	assert.FileExists(t, filepath.Join(dir, "keep.mkv"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", contentType("a.MP4"))
	assert.Equal(t, "text/vtt", contentType("a.vtt"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}
