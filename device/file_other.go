//go:build !linux

package device

import "os"

func deviceSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func flushFile(f *os.File) error {
	return f.Sync()
}
