package common

import (
	"io/fs"
	"time"
)

// FileInfo implements os.FileInfo for directories that exist only in a
// served view, such as the WebDAV root listing the output libraries.
type FileInfo struct {
	FileName    string
	FileSize    int64
	FileIsDir   bool
	FileModTime time.Time
}

func (fi *FileInfo) Name() string       { return fi.FileName }
func (fi *FileInfo) Size() int64        { return fi.FileSize }
func (fi *FileInfo) IsDir() bool        { return fi.FileIsDir }
func (fi *FileInfo) ModTime() time.Time { return fi.FileModTime }
func (fi *FileInfo) Sys() interface{}   { return nil }

func (fi *FileInfo) Mode() fs.FileMode {
	if fi.FileIsDir {
		return fs.ModeDir | 0755
	}
	return 0644
}

// NewDirInfo creates a FileInfo for a virtual directory.
func NewDirInfo(name string, modTime time.Time) *FileInfo {
	return &FileInfo{
		FileName:    name,
		FileIsDir:   true,
		FileModTime: modTime,
	}
}
