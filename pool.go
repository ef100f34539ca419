package zlabel

import (
	"math"
	"sync"
)

// txgWindow is the number of in-flight transaction group states tracked by
// the per-txg vdev lists.
const txgWindow = 4

// Pool holds the label subsystem's view of one storage pool: the vdev tree,
// the in-memory committed uberblock, and the bookkeeping the config sync
// walks (dirty top vdevs, per-txg written vdevs).
//
// The embedded RWMutex is the pool configuration lock: label reads and the
// uberblock load take it shared; label init and config sync take it
// exclusive. The uberblock mutex only guards the best-candidate slot while
// a load is scanning.
type Pool struct {
	mu   sync.RWMutex
	ubMu sync.Mutex

	Name    string
	Guid    uint64
	Version uint64
	State   PoolState
	Root    *Vdev

	// Uberblock is the in-memory committed uberblock; ConfigSync advances
	// it. The root block pointer is supplied by the commit driver.
	Uberblock Uberblock

	// FreezeTxg stops commits past a given txg (test hook); FinalTxg is
	// the last txg this pool may ever commit.
	FreezeTxg uint64
	FinalTxg  uint64

	dirty    []*Vdev
	txgVdevs [txgWindow][]*Vdev
	spares   map[uint64]struct{}

	metrics *Metrics
}

// NewPool creates an empty pool shell. The caller attaches a root vdev and
// registers the pool before using label operations.
func NewPool(name string, guid uint64) *Pool {
	return &Pool{
		Name:    name,
		Guid:    guid,
		Version: PoolVersion,
		State:   PoolStateActive,
		Uberblock: Uberblock{
			Magic:   UberblockMagic,
			Version: PoolVersion,
		},
		FreezeTxg: math.MaxUint64,
		FinalTxg:  math.MaxUint64,
		spares:    make(map[uint64]struct{}),
		metrics:   NewMetrics(),
	}
}

// SetRoot attaches the root vdev. Guid sums are maintained by AddChild.
func (p *Pool) SetRoot(rvd *Vdev) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Root = rvd
}

// Metrics returns the pool's label I/O counters.
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// ConfigDirty marks a top-level vdev as needing a label rewrite in the next
// config sync. Passing the root dirties every top vdev.
func (p *Pool) ConfigDirty(vd *Vdev) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configDirty(vd)
}

func (p *Pool) configDirty(vd *Vdev) {
	if vd == p.Root {
		for _, c := range vd.Children {
			p.configDirty(c)
		}
		return
	}
	top := vd.Top()
	for _, d := range p.dirty {
		if d == top {
			return
		}
	}
	p.dirty = append(p.dirty, top)
}

// ConfigClean empties the dirty list; the commit driver calls this after a
// successful sync.
func (p *Pool) ConfigClean() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = nil
}

// DirtyAll marks every top vdev dirty. Pool open uses this so the first
// sync after a crash catches all labels up before any user data changes.
func (p *Pool) DirtyAll() {
	p.ConfigDirty(p.Root)
}

// VdevDirtiedInTxg records that vd's top-level vdev had data written during
// txg. The pre-uberblock flush barrier covers exactly these vdevs.
func (p *Pool) VdevDirtiedInTxg(vd *Vdev, txg uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	top := vd.Top()
	bucket := int(txg % txgWindow)
	for _, d := range p.txgVdevs[bucket] {
		if d == top {
			return
		}
	}
	p.txgVdevs[bucket] = append(p.txgVdevs[bucket], top)
}

// txgClean returns the bucket of vdevs whose data writes completed in the
// txg window preceding txg.
func txgClean(txg uint64) int {
	return int((txg - 1) % txgWindow)
}

// AddSpare declares guid as one of this pool's spares (on-disk or pending).
// Caller holds the config writer lock or has exclusive setup access.
func (p *Pool) AddSpare(guid uint64) {
	p.spares[guid] = struct{}{}
}

// hasSpare reports whether guid is on this pool's own spare list,
// including spares pending addition.
func (p *Pool) hasSpare(guid uint64) bool {
	_, ok := p.spares[guid]
	return ok
}
