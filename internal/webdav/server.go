// Package webdav serves the renamed library read-only over WebDAV so media
// players can browse the result without a network share.
package webdav

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/webdav"

	"github.com/to-wer/media-renamer/internal/common"
)

// Mount exposes one directory under a top-level name.
type Mount struct {
	Name string
	Dir  string
}

// Server wraps a WebDAV server
type Server struct {
	handler *webdav.Handler
}

// NewServer creates a read-only WebDAV server. A single mount is served at
// the root; several mounts appear as top-level folders.
func NewServer(mounts ...Mount) *Server {
	s := &Server{}

	s.handler = &webdav.Handler{
		Prefix:     "",
		FileSystem: newReadOnlyFS(mounts, time.Now()),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				slog.Debug("WebDAV request",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
				)
			} else {
				slog.Debug("WebDAV request",
					"method", r.Method,
					"path", r.URL.Path,
				)
			}
		},
	}

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// readOnlyFS maps mount names to directories and rejects every write.
type readOnlyFS struct {
	single  webdav.Dir
	mounts  map[string]webdav.Dir
	names   []string
	started time.Time
}

func newReadOnlyFS(mounts []Mount, started time.Time) *readOnlyFS {
	rfs := &readOnlyFS{mounts: make(map[string]webdav.Dir), started: started}
	if len(mounts) == 1 {
		rfs.single = webdav.Dir(mounts[0].Dir)
		return rfs
	}

	for _, m := range mounts {
		if _, ok := rfs.mounts[m.Name]; ok {
			continue
		}
		rfs.mounts[m.Name] = webdav.Dir(m.Dir)
		rfs.names = append(rfs.names, m.Name)
	}
	sort.Strings(rfs.names)
	return rfs
}

// resolve returns the directory serving name and the path inside it. An
// empty dir with no error means the virtual root.
func (rfs *readOnlyFS) resolve(name string) (webdav.Dir, string, error) {
	name = common.CleanPath(name)
	if rfs.single != "" {
		return rfs.single, name, nil
	}
	if name == "/" {
		return "", "/", nil
	}

	head, rest, _ := strings.Cut(strings.TrimPrefix(name, "/"), "/")
	dir, ok := rfs.mounts[head]
	if !ok {
		return "", "", os.ErrNotExist
	}
	return dir, "/" + rest, nil
}

func (rfs *readOnlyFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return os.ErrPermission // Read-only filesystem
}

func (rfs *readOnlyFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	// Reject write operations
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, os.ErrPermission
	}

	dir, rest, err := rfs.resolve(name)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return &rootDir{fs: rfs}, nil
	}

	file, err := dir.OpenFile(ctx, rest, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &readOnlyFile{File: file}, nil
}

func (rfs *readOnlyFS) RemoveAll(ctx context.Context, name string) error {
	return os.ErrPermission // Read-only filesystem
}

func (rfs *readOnlyFS) Rename(ctx context.Context, oldName, newName string) error {
	return os.ErrPermission // Read-only filesystem
}

func (rfs *readOnlyFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	dir, rest, err := rfs.resolve(name)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return rfs.dirInfo("/"), nil
	}
	return dir.Stat(ctx, rest)
}

func (rfs *readOnlyFS) dirInfo(name string) os.FileInfo {
	return common.NewDirInfo(name, rfs.started)
}

// readOnlyFile wraps a file of a mounted directory
type readOnlyFile struct {
	webdav.File
}

func (f *readOnlyFile) Write(p []byte) (int, error) {
	return 0, os.ErrPermission // Read-only
}

// ContentType returns the MIME type for the file
func (f *readOnlyFile) ContentType(ctx context.Context) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "text/html; charset=utf-8", nil
	}
	return contentType(info.Name()), nil
}

// ETag returns the entity tag for the file
func (f *readOnlyFile) ETag(ctx context.Context) (string, error) {
	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	return `"` + strconv.FormatInt(info.ModTime().UnixNano(), 36) + "-" + strconv.FormatInt(info.Size(), 10) + `"`, nil
}

// Implement DeadPropsHolder to satisfy webdav requirements
func (f *readOnlyFile) DeadProps() (map[string][]byte, error) {
	return nil, nil
}

func (f *readOnlyFile) Patch(patches []webdav.Proppatch) ([]webdav.Propstat, error) {
	return nil, os.ErrPermission
}

// rootDir lists the mounts as folders.
type rootDir struct {
	fs  *readOnlyFS
	pos int
}

func (d *rootDir) Close() error { return nil }

func (d *rootDir) Read(p []byte) (int, error) {
	return 0, os.ErrInvalid
}

func (d *rootDir) Seek(offset int64, whence int) (int64, error) {
	return 0, nil
}

func (d *rootDir) Write(p []byte) (int, error) {
	return 0, os.ErrPermission
}

func (d *rootDir) Stat() (os.FileInfo, error) {
	return d.fs.dirInfo("/"), nil
}

func (d *rootDir) Readdir(count int) ([]os.FileInfo, error) {
	remaining := d.fs.names[d.pos:]
	if count > 0 && count < len(remaining) {
		remaining = remaining[:count]
	}
	if count > 0 && len(remaining) == 0 {
		return nil, io.EOF
	}

	infos := make([]os.FileInfo, 0, len(remaining))
	for _, name := range remaining {
		infos = append(infos, d.fs.dirInfo(name))
	}
	d.pos += len(remaining)
	return infos, nil
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".ts":
		return "video/mp2t"
	case ".srt", ".ass", ".ssa":
		return "text/plain; charset=utf-8"
	case ".vtt":
		return "text/vtt"
	case ".nfo":
		return "text/xml; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
