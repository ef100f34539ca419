package device

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func tempImage(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leaf.img")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestFileReadWriteFlush(t *testing.T) {
	d, err := OpenFile(tempImage(t, 1024*1024))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer d.Close()

	if d.Size() != 1024*1024 {
		t.Errorf("Size() = %d, want %d", d.Size(), 1024*1024)
	}

	data := []byte("durable bytes")
	if _, err := d.WriteAt(data, 8192); err != nil {
		t.Fatalf("WriteAt failed: %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	got := make([]byte, len(data))
	if _, err := d.ReadAt(got, 8192); err != nil {
		t.Fatalf("ReadAt failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("ReadAt got %q, want %q", got, data)
	}
}

func TestFileReadOnly(t *testing.T) {
	path := tempImage(t, 64*1024)
	d, err := OpenFileReadOnly(path)
	if err != nil {
		t.Fatalf("OpenFileReadOnly failed: %v", err)
	}
	defer d.Close()

	if _, err := d.WriteAt([]byte("nope"), 0); err == nil {
		t.Error("write through read-only device succeeded")
	}
}

func TestOpenFileMissing(t *testing.T) {
	if _, err := OpenFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("OpenFile of missing path succeeded")
	}
}
