package testhelper

import (
	"fmt"
	"io/fs"
	"time"
)

type reader func(b []byte, offset int64) (int, error)
type writer func(b []byte, offset int64) (int, error)

// FileImpl implements volume.Handle, used for testing to enable stubbing
// out host files and devices.
type FileImpl struct {
	Reader   reader
	Writer   writer
	FileSize int64
}

func (f *FileImpl) Stat() (fs.FileInfo, error) {
	return &fileInfo{size: f.FileSize}, nil
}

// ReadAt read at a particular offset
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	return f.Reader(b, offset)
}

// WriteAt write at a particular offset
func (f *FileImpl) WriteAt(b []byte, offset int64) (int, error) {
	if f.Writer == nil {
		return 0, fmt.Errorf("FileImpl has no writer")
	}
	return f.Writer(b, offset)
}

type fileInfo struct {
	size int64
}

func (fi *fileInfo) Name() string       { return "fileimpl" }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return 0o600 }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return false }
func (fi *fileInfo) Sys() any           { return nil }
