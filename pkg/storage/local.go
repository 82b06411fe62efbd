package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// localDisk is the local-filesystem driver.
type localDisk struct {
	root string
}

// NewLocal returns a disk rooted at root. Relative roots are resolved
// against the working directory.
func NewLocal(root string) Disk {
	if !filepath.IsAbs(root) {
		if cwd, err := os.Getwd(); err == nil {
			root = filepath.Join(cwd, root)
		}
	}
	return &localDisk{root: root}
}

func (d *localDisk) Name() string { return "local" }

func (d *localDisk) abs(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(Clean(p)))
}

func (d *localDisk) Stat(_ context.Context, p string) (FileInfo, error) {
	info, err := os.Stat(d.abs(p))
	if err != nil {
		return FileInfo{}, localErr("stat", p, err)
	}
	return FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

func (d *localDisk) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(d.abs(p))
	if err != nil {
		return nil, localErr("open", p, err)
	}
	return f, nil
}

// localErr reports err against the disk-relative path p. Paths that cannot
// name a file (a segment under a regular file, an over-long or invalid name)
// count as missing. The absolute path is dropped so it never reaches a
// response.
func localErr(op, p string, err error) error {
	if missing(err) {
		return fmt.Errorf("storage/local: %s %s: %w", op, p, ErrNotExist)
	}

	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return fmt.Errorf("storage/local: %s %s: %w", op, p, err)
}

func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.ENAMETOOLONG) ||
		errors.Is(err, syscall.EINVAL)
}
