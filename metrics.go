package zlabel

import "sync/atomic"

// Metrics tracks label I/O statistics for one pool. All fields are safe
// for concurrent update from batch goroutines.
type Metrics struct {
	// Operation counters
	RegionReads  atomic.Uint64 // Checksummed region reads issued
	RegionWrites atomic.Uint64 // Checksummed region writes issued
	Flushes      atomic.Uint64 // Cache-flush barriers issued

	// Byte counters
	BytesRead    atomic.Uint64
	BytesWritten atomic.Uint64

	// Error counters. Speculative probe failures are tracked separately
	// so blank-slot scans don't look like a failing device.
	ReadErrors        atomic.Uint64
	WriteErrors       atomic.Uint64
	FlushErrors       atomic.Uint64
	SpeculativeMisses atomic.Uint64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveRead implements the Observer interface
func (m *Metrics) ObserveRead(bytes uint64, success, speculative bool) {
	m.RegionReads.Add(1)
	if success {
		m.BytesRead.Add(bytes)
		return
	}
	if speculative {
		m.SpeculativeMisses.Add(1)
	} else {
		m.ReadErrors.Add(1)
	}
}

// ObserveWrite implements the Observer interface
func (m *Metrics) ObserveWrite(bytes uint64, success bool) {
	m.RegionWrites.Add(1)
	if success {
		m.BytesWritten.Add(bytes)
	} else {
		m.WriteErrors.Add(1)
	}
}

// ObserveFlush implements the Observer interface
func (m *Metrics) ObserveFlush(success bool) {
	m.Flushes.Add(1)
	if !success {
		m.FlushErrors.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	RegionReads       uint64
	RegionWrites      uint64
	Flushes           uint64
	BytesRead         uint64
	BytesWritten      uint64
	ReadErrors        uint64
	WriteErrors       uint64
	FlushErrors       uint64
	SpeculativeMisses uint64
}

// Snapshot returns a consistent-enough copy for reporting.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RegionReads:       m.RegionReads.Load(),
		RegionWrites:      m.RegionWrites.Load(),
		Flushes:           m.Flushes.Load(),
		BytesRead:         m.BytesRead.Load(),
		BytesWritten:      m.BytesWritten.Load(),
		ReadErrors:        m.ReadErrors.Load(),
		WriteErrors:       m.WriteErrors.Load(),
		FlushErrors:       m.FlushErrors.Load(),
		SpeculativeMisses: m.SpeculativeMisses.Load(),
	}
}

var _ Observer = (*Metrics)(nil)
