package device

import (
	"fmt"
	"os"

	"github.com/ehrlich-b/go-zlabel/internal/interfaces"
)

// File is a leaf device backed by a regular file or block device node.
// Flush maps to fdatasync on Linux (fsync elsewhere) so the cache-flush
// barriers between label phases hold on real media.
type File struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-write. For block devices the size is queried
// from the kernel; for regular files it is the file length.
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	size, err := deviceSize(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("device size %s: %w", path, err)
	}
	return &File{f: f, size: size}, nil
}

// OpenFileReadOnly opens path for label inspection only; writes fail.
func OpenFileReadOnly(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	size, err := deviceSize(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("device size %s: %w", path, err)
	}
	return &File{f: f, size: size}, nil
}

// ReadAt implements the Device interface.
func (d *File) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

// WriteAt implements the Device interface.
func (d *File) WriteAt(p []byte, off int64) (int, error) {
	return d.f.WriteAt(p, off)
}

// Size implements the Device interface.
func (d *File) Size() int64 {
	return d.size
}

// Flush implements the Device interface.
func (d *File) Flush() error {
	return flushFile(d.f)
}

// Close implements the Device interface.
func (d *File) Close() error {
	return d.f.Close()
}

var (
	_ interfaces.Device = (*File)(nil)
	_ interfaces.Device = (*Memory)(nil)
)
