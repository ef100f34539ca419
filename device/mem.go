// Package device provides leaf device implementations for go-zlabel
package device

import (
	"fmt"
	"sync"
)

// ShardSize is the size of each memory shard (64KB).
// Label regions span at most four shards, so lock overhead stays small
// while concurrent slot writes from one batch proceed in parallel.
const ShardSize = 64 * 1024

// Memory is a RAM-backed leaf device. It uses sharded locking so that the
// parallel region writes a label batch issues do not serialize on one lock.
type Memory struct {
	data   []byte
	size   int64
	shards []sync.RWMutex
}

// NewMemory creates a memory device of the specified size.
func NewMemory(size int64) *Memory {
	numShards := (size + ShardSize - 1) / ShardSize
	return &Memory{
		data:   make([]byte, size),
		size:   size,
		shards: make([]sync.RWMutex, numShards),
	}
}

func (m *Memory) shardRange(off, length int64) (start, end int) {
	start = int(off / ShardSize)
	end = int((off + length - 1) / ShardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	return start, end
}

// ReadAt implements the Device interface.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= m.size {
		return 0, fmt.Errorf("read beyond end of device")
	}
	available := m.size - off
	if int64(len(p)) > available {
		p = p[:available]
	}

	startShard, endShard := m.shardRange(off, int64(len(p)))
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RLock()
	}
	n := copy(p, m.data[off:off+int64(len(p))])
	for i := startShard; i <= endShard; i++ {
		m.shards[i].RUnlock()
	}
	return n, nil
}

// WriteAt implements the Device interface.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= m.size {
		return 0, fmt.Errorf("write beyond end of device")
	}
	if int64(len(p)) > m.size-off {
		return 0, fmt.Errorf("write beyond end of device")
	}

	startShard, endShard := m.shardRange(off, int64(len(p)))
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Lock()
	}
	n := copy(m.data[off:off+int64(len(p))], p)
	for i := startShard; i <= endShard; i++ {
		m.shards[i].Unlock()
	}
	return n, nil
}

// Size implements the Device interface.
func (m *Memory) Size() int64 {
	return m.size
}

// Flush implements the Device interface. Memory has no volatile cache.
func (m *Memory) Flush() error {
	return nil
}

// Close implements the Device interface.
func (m *Memory) Close() error {
	m.data = nil
	return nil
}

// Snapshot copies the current contents; tests use it to compare device
// state across commits.
func (m *Memory) Snapshot() []byte {
	for i := range m.shards {
		m.shards[i].RLock()
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	for i := range m.shards {
		m.shards[i].RUnlock()
	}
	return out
}
