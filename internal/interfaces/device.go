// Package interfaces provides internal interface definitions for go-zlabel.
// These are separate from the public aliases to avoid circular imports
// between the root package and internal packages.
package interfaces

// Device is the leaf block device surface the label subsystem drives.
// Implementations live in the device package; anything with ordered reads,
// writes and a cache-flush barrier qualifies.
type Device interface {
	ReadAt(p []byte, off int64) (n int, err error)
	WriteAt(p []byte, off int64) (n int, err error)
	Size() int64
	Flush() error
	Close() error
}

// Observer receives per-operation notifications from the phys I/O layer.
// Implementations must be thread-safe; methods are called from batch
// goroutines. Speculative reads report speculative=true so their failures
// can be kept out of device error counters.
type Observer interface {
	ObserveRead(bytes uint64, success, speculative bool)
	ObserveWrite(bytes uint64, success bool)
	ObserveFlush(success bool)
}
