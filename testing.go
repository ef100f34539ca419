package zlabel

import (
	"errors"
	"sync"
)

// ErrInjected is the error produced by FaultDevice's canned fault modes.
var ErrInjected = errors.New("zlabel: injected fault")

// FaultDevice wraps a Device with programmable read/write faults. Tests of
// partial-failure and crash paths use it to fail exactly the writes they
// care about (e.g. everything in the uberblock ring) while counting all
// traffic.
type FaultDevice struct {
	Inner Device

	mu         sync.Mutex
	readFault  func(off int64, n int) error
	writeFault func(off int64, n int) error
	reads      int
	writes     int
	flushes    int
}

// NewFaultDevice wraps inner; with no faults set it is transparent.
func NewFaultDevice(inner Device) *FaultDevice {
	return &FaultDevice{Inner: inner}
}

// SetReadFault installs f; a non-nil return fails the read without
// touching the inner device. Pass nil to clear.
func (d *FaultDevice) SetReadFault(f func(off int64, n int) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readFault = f
}

// SetWriteFault installs f; a non-nil return drops the write without
// touching the inner device. Pass nil to clear.
func (d *FaultDevice) SetWriteFault(f func(off int64, n int) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writeFault = f
}

// FailAllWrites makes every write fail with ErrInjected.
func (d *FaultDevice) FailAllWrites() {
	d.SetWriteFault(func(int64, int) error { return ErrInjected })
}

// Reads returns the number of read attempts seen.
func (d *FaultDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Writes returns the number of write attempts seen.
func (d *FaultDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Flushes returns the number of flush barriers seen.
func (d *FaultDevice) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

// ReadAt implements the Device interface.
func (d *FaultDevice) ReadAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	d.reads++
	f := d.readFault
	d.mu.Unlock()
	if f != nil {
		if err := f(off, len(p)); err != nil {
			return 0, err
		}
	}
	return d.Inner.ReadAt(p, off)
}

// WriteAt implements the Device interface.
func (d *FaultDevice) WriteAt(p []byte, off int64) (int, error) {
	d.mu.Lock()
	d.writes++
	f := d.writeFault
	d.mu.Unlock()
	if f != nil {
		if err := f(off, len(p)); err != nil {
			return 0, err
		}
	}
	return d.Inner.WriteAt(p, off)
}

// Size implements the Device interface.
func (d *FaultDevice) Size() int64 {
	return d.Inner.Size()
}

// Flush implements the Device interface.
func (d *FaultDevice) Flush() error {
	d.mu.Lock()
	d.flushes++
	d.mu.Unlock()
	return d.Inner.Flush()
}

// Close implements the Device interface.
func (d *FaultDevice) Close() error {
	return d.Inner.Close()
}

var _ Device = (*FaultDevice)(nil)
