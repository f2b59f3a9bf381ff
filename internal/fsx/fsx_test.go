package fsx

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.mkv"), "a")
	writeFile(t, filepath.Join(root, "sub", "b.MP4"), "b")
	writeFile(t, filepath.Join(root, "sub", "deep", "c.avi"), "c")
	writeFile(t, filepath.Join(root, "notes.txt"), "n")

	files, err := New().ListFiles(root, []string{".mkv", ".mp4", ".avi"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.mkv"),
		filepath.Join(root, "sub", "b.MP4"),
		filepath.Join(root, "sub", "deep", "c.avi"),
	}, files)
}

func TestListFilesMissingRoot(t *testing.T) {
	_, err := New().ListFiles(filepath.Join(t.TempDir(), "nope"), []string{".mkv"})
	assert.Error(t, err)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x")
	fs := New()

	ok, err := fs.Exists(path)
	require.NoError(t, err)
	assert.False(t, ok)

	writeFile(t, path, "x")
	ok, err = fs.Exists(path)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSameFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.mkv")
	writeFile(t, a, "a")
	writeFile(t, b, "b")
	linked := filepath.Join(dir, "linked.mkv")
	require.NoError(t, os.Link(a, linked))
	fs := New()

	tests := []struct {
		name  string
		x, y  string
		match bool
	}{
		{"same path", a, a, true},
		{"hard link", a, linked, true},
		{"different files", a, b, false},
		{"missing target", a, filepath.Join(dir, "c.mkv"), false},
		{"missing source", filepath.Join(dir, "c.mkv"), a, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fs.SameFile(tt.x, tt.y)
			require.NoError(t, err)
			assert.Equal(t, tt.match, got)
		})
	}
}

func TestMoveSameDevice(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mkv")
	dst := filepath.Join(dir, "out", "dst.mkv")
	writeFile(t, src, "payload")
	require.NoError(t, New().MkdirAll(filepath.Dir(dst)))

	require.NoError(t, New().Move(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.NoFileExists(t, src)
}

func TestMoveCrossDeviceFallsBackToCopy(t *testing.T) {
	orig := renameFunc
	t.Cleanup(func() { renameFunc = orig })
	renameFunc = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: syscall.EXDEV}
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mkv")
	dst := filepath.Join(dir, "dst.mkv")
	writeFile(t, src, "cross device payload")

	require.NoError(t, New().Move(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "cross device payload", string(data))
	assert.NoFileExists(t, src)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestMoveOtherErrorIsReturned(t *testing.T) {
	orig := renameFunc
	t.Cleanup(func() { renameFunc = orig })
	boom := errors.New("boom")
	renameFunc = func(string, string) error { return boom }

	dir := t.TempDir()
	src := filepath.Join(dir, "src.mkv")
	writeFile(t, src, "x")

	err := New().Move(src, filepath.Join(dir, "dst.mkv"))
	assert.ErrorIs(t, err, boom)
	assert.FileExists(t, src)
}

func TestIsEXDEV(t *testing.T) {
	assert.True(t, isEXDEV(syscall.EXDEV))
	assert.True(t, isEXDEV(&os.LinkError{Err: syscall.EXDEV}))
	assert.False(t, isEXDEV(&os.LinkError{Err: syscall.ENOENT}))
	assert.False(t, isEXDEV(nil))
}
