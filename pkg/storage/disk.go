// Package storage exposes the read side of a file store to the static stage.
//
// Two drivers are available:
//   - "local": a directory on the local filesystem (default)
//   - "s3": an S3-compatible bucket (AWS S3, MinIO, R2, Spaces)
//
//	disk, err := storage.New(ctx, cfg)
//	info, err := disk.Stat(ctx, "css/site.css")
package storage

import (
	"context"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

// ErrNotExist is returned (wrapped) when a path is absent from the disk.
var ErrNotExist = fs.ErrNotExist

// FileInfo describes one stored object.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// Disk is the driver interface every backend implements.
type Disk interface {
	// Name is the driver name, e.g. "local" or "s3".
	Name() string

	// Stat returns metadata for the object at p.
	Stat(ctx context.Context, p string) (FileInfo, error)

	// Open returns the object's content. The caller must close it. Drivers
	// return an io.ReadSeekCloser when they can.
	Open(ctx context.Context, p string) (io.ReadCloser, error)
}

// Clean turns a URL path into a disk-relative key without leading slash and
// without any ".." segment escaping the root.
func Clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}
