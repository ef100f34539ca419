package zlabel

import (
	"testing"

	"github.com/ehrlich-b/go-zlabel/device"
)

const testDevSize = 4 * LabelSize

// newTestPool creates a registered pool and resets the process-wide
// registry when the test finishes. Tests using it must not run in
// parallel.
func newTestPool(t *testing.T, name string, guid uint64) *Pool {
	t.Helper()
	p := NewPool(name, guid)
	RegisterPool(p)
	t.Cleanup(resetRegistry)
	return p
}

// newMirrorPool builds a registered pool whose root holds one mirror of
// leafCount memory-backed leaves wrapped in fault devices. Leaf guids are
// 1000, 1001, ...
func newMirrorPool(t *testing.T, name string, guid uint64, leafCount int) (*Pool, *Vdev, []*FaultDevice) {
	t.Helper()
	p := newTestPool(t, name, guid)

	root := NewInterior(KindRoot, guid)
	mirror := NewInterior(KindMirror, 100)
	devs := make([]*FaultDevice, leafCount)
	for i := 0; i < leafCount; i++ {
		devs[i] = NewFaultDevice(device.NewMemory(testDevSize))
		leaf := NewLeaf(KindDisk, uint64(1000+i), devs[i])
		leaf.Path = "/dev/test" + string(rune('a'+i))
		mirror.AddChild(leaf)
	}
	root.AddChild(mirror)
	p.SetRoot(root)
	return p, mirror, devs
}

// leafOf returns the i'th leaf under top.
func leafOf(top *Vdev, i int) *Vdev {
	return top.Children[i]
}

// commitTxg drives one full config sync for txg, the way the pool-level
// commit driver would: stamp the root block pointer, dirty the config,
// sync.
func commitTxg(t *testing.T, p *Pool, txg uint64) {
	t.Helper()
	p.Uberblock.RootBP.BirthTxg = txg
	p.DirtyAll()
	if err := p.ConfigSync(p.Root, txg); err != nil {
		t.Fatalf("ConfigSync(txg=%d) failed: %v", txg, err)
	}
}
