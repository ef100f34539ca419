//go:build linux

package device

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deviceSize returns the usable size of f: the BLKGETSIZE64 ioctl for block
// devices, the file length otherwise.
func deviceSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Mode()&os.ModeDevice == 0 {
		return fi.Size(), nil
	}

	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(),
		unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, errno
	}
	return int64(size), nil
}

// flushFile forces dirty pages and the device write cache to stable media.
// fdatasync suffices: label writes never change the file length.
func flushFile(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
