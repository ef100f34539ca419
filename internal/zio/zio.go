// Package zio is the thin ordered-I/O layer between the label subsystem and
// a leaf device: checksummed region reads and writes plus cache-flush
// barriers, grouped into batches that execute concurrently and join at
// Wait. The block-I/O engine proper (queueing, retry policy, device
// scheduling) lives behind the Device interface.
package zio

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ehrlich-b/go-zlabel/internal/interfaces"
)

// Priority mirrors the request classes the transport understands. Label
// traffic is always synchronous; flushes run at PriorityNow.
type Priority int

const (
	PrioritySyncRead Priority = iota
	PrioritySyncWrite
	PriorityNow
)

// Flag alters how an individual operation is issued and accounted.
type Flag uint32

const (
	// FlagCanFail marks an operation whose failure the caller aggregates
	// (good-write counting) instead of aborting on.
	FlagCanFail Flag = 1 << iota

	// FlagSpeculative keeps a failure out of device error counters; used
	// when probing label slots that may legitimately be blank.
	FlagSpeculative

	// FlagConfigHeld records that the caller holds the pool config lock.
	FlagConfigHeld

	// FlagDontRetry forbids transport-level retry; flushes use it.
	FlagDontRetry
)

// DefaultParallelism bounds in-flight operations per batch.
const DefaultParallelism = 16

// IO carries one operation's parameters and outcome into its done callback.
type IO struct {
	Dev      interfaces.Device
	Offset   int64
	Size     int
	Priority Priority
	Flags    Flag

	// Data holds the verified payload of a successful read. It aliases a
	// pooled buffer and is only valid for the duration of the done call.
	Data []byte
	Err  error
}

// DoneFunc is the completion continuation for one operation. It runs on the
// batch goroutine that executed the operation, before Wait returns.
type DoneFunc func(io *IO)

// Batch groups operations that execute concurrently; the caller blocks in
// Wait, which is the only suspension point at this layer.
type Batch struct {
	eg       errgroup.Group
	flags    Flag
	observer interfaces.Observer
}

// NewBatch creates an empty batch. Flags are inherited by every operation
// submitted to it. The observer may be nil.
func NewBatch(flags Flag, observer interfaces.Observer) *Batch {
	b := &Batch{flags: flags, observer: observer}
	b.eg.SetLimit(DefaultParallelism)
	return b
}

// ReadPhys reads and verifies one checksummed region. done (may be nil)
// receives the payload on success or the error on failure.
func (b *Batch) ReadPhys(dev interfaces.Device, offset int64, size int, prio Priority, flags Flag, done DoneFunc) {
	flags |= b.flags
	b.eg.Go(func() error {
		io := &IO{Dev: dev, Offset: offset, Size: size, Priority: prio, Flags: flags}
		buf := GetBuffer(size)
		defer PutBuffer(buf)

		if _, err := dev.ReadAt(buf, offset); err != nil {
			io.Err = fmt.Errorf("read %d@%d: %w", size, offset, err)
		} else if payload, err := openRegion(buf); err != nil {
			io.Err = err
		} else {
			io.Data = payload
		}
		if b.observer != nil {
			b.observer.ObserveRead(uint64(size), io.Err == nil, flags&FlagSpeculative != 0)
		}
		if done != nil {
			done(io)
		}
		return io.Err
	})
}

// WritePhys writes payload into a checksummed region of the given size.
// The payload is copied into a region buffer when the operation runs, so it
// must stay unchanged until Wait returns; one payload may be shared by
// several writes.
func (b *Batch) WritePhys(dev interfaces.Device, offset int64, payload []byte, size int, prio Priority, flags Flag, done DoneFunc) {
	flags |= b.flags
	if len(payload) > size-TrailerSize {
		panic("zio: payload exceeds region")
	}
	b.eg.Go(func() error {
		io := &IO{Dev: dev, Offset: offset, Size: size, Priority: prio, Flags: flags}
		buf := GetBuffer(size)
		defer PutBuffer(buf)

		n := copy(buf, payload)
		clear(buf[n:])
		sealRegion(buf, len(payload))

		if _, err := dev.WriteAt(buf, offset); err != nil {
			io.Err = fmt.Errorf("write %d@%d: %w", size, offset, err)
		}
		if b.observer != nil {
			b.observer.ObserveWrite(uint64(size), io.Err == nil)
		}
		if done != nil {
			done(io)
		}
		return io.Err
	})
}

// Flush issues a cache-flush barrier to the device.
func (b *Batch) Flush(dev interfaces.Device, done DoneFunc) {
	b.eg.Go(func() error {
		io := &IO{Dev: dev, Priority: PriorityNow, Flags: b.flags | FlagDontRetry}
		if err := dev.Flush(); err != nil {
			io.Err = fmt.Errorf("flush: %w", err)
		}
		if b.observer != nil {
			b.observer.ObserveFlush(io.Err == nil)
		}
		if done != nil {
			done(io)
		}
		return io.Err
	})
}

// Wait joins the batch and returns the first error observed, if any. Done
// callbacks for every operation have run by the time Wait returns.
func (b *Batch) Wait() error {
	return b.eg.Wait()
}
