package zlabel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/go-zlabel/device"
)

// failRingWrites makes every write into any label's uberblock ring fail,
// simulating a crash after the even-label barrier but before any new
// uberblock lands.
func failRingWrites(d *FaultDevice) {
	psize := AlignedSize(d.Size())
	d.SetWriteFault(func(off int64, n int) error {
		for l := 0; l < VdevLabels; l++ {
			ringStart := LabelOffset(psize, l, UberblockBase)
			ringEnd := ringStart + (LabelSize - UberblockBase)
			if off >= ringStart && off < ringEnd {
				return ErrInjected
			}
		}
		return nil
	})
}

func createAndCommit(t *testing.T, leafCount int) (*Pool, *Vdev, []*FaultDevice) {
	t.Helper()
	p, mirror, devs := newMirrorPool(t, "tank", 0xabc, leafCount)
	require.NoError(t, p.LabelInit(p.Root, 5, LabelCreate))
	mirror.MsArray = 1
	commitTxg(t, p, 10)
	return p, mirror, devs
}

func TestConfigSyncAdvancesPool(t *testing.T) {
	p, mirror, _ := createAndCommit(t, 2)

	ub, err := p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(10), ub.Txg)
	require.Equal(t, p.Root.GuidSum, ub.GuidSum)

	// Every label slot on every leaf carries the committed txg.
	for i := 0; i < 2; i++ {
		for l := 0; l < VdevLabels; l++ {
			cfg := p.ReadLabelConfigSlot(leafOf(mirror, i), l)
			require.NotNil(t, cfg, "leaf %d slot %d", i, l)
			txg, _ := cfg.LookupUint64(KeyTxg)
			require.Equal(t, uint64(10), txg, "leaf %d slot %d", i, l)
			// The create txg from initialization never changes.
			crtxg, _ := cfg.LookupUint64(KeyCreateTxg)
			require.Equal(t, uint64(5), crtxg)
		}
	}
}

func TestConfigSyncNothingToDo(t *testing.T) {
	p, _, devs := createAndCommit(t, 2)
	p.ConfigClean()

	before := devs[0].Writes()
	// Root pointer still born at txg 10: txg 11 has nothing to commit.
	require.NoError(t, p.ConfigSync(p.Root, 11))
	require.Equal(t, before, devs[0].Writes(), "no-op sync touched the disk")
}

func TestConfigSyncFrozenPool(t *testing.T) {
	p, _, devs := createAndCommit(t, 2)
	p.FreezeTxg = 10

	before := devs[0].Writes()
	p.Uberblock.RootBP.BirthTxg = 11
	p.DirtyAll()
	require.NoError(t, p.ConfigSync(p.Root, 11))
	require.Equal(t, before, devs[0].Writes(), "frozen pool wrote labels")
}

func TestConfigSyncBehindCommittedPanics(t *testing.T) {
	p, _, _ := createAndCommit(t, 2)
	require.Panics(t, func() { p.ConfigSync(p.Root, 9) })
}

func TestConfigSyncIdempotent(t *testing.T) {
	p, _, devs := createAndCommit(t, 2)

	snap := func() [][]byte {
		var out [][]byte
		for _, d := range devs {
			out = append(out, d.Inner.(*device.Memory).Snapshot())
		}
		return out
	}

	first := snap()
	// Same txg again, nothing dirtied in between beyond the same config.
	require.NoError(t, p.ConfigSync(p.Root, 10))
	second := snap()

	for i := range first {
		if !bytes.Equal(first[i], second[i]) {
			t.Errorf("leaf %d: repeated sync changed the disk", i)
		}
	}
}

func TestConfigSyncTornCommit(t *testing.T) {
	// Durable at txg 10. Commit 11 crashes after the even labels are on
	// media but before any uberblock write lands. The pool must come
	// back up at txg 10.
	p, mirror, devs := createAndCommit(t, 2)

	for _, d := range devs {
		failRingWrites(d)
	}
	p.Uberblock.RootBP.BirthTxg = 11
	p.DirtyAll()
	err := p.ConfigSync(p.Root, 11)
	require.Error(t, err, "commit with no uberblock writes must fail")

	for _, d := range devs {
		d.SetWriteFault(nil)
	}

	// Re-open: the best uberblock is still txg 10.
	ub, err := p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(10), ub.Txg)

	// Even labels reference the uncommitted txg 11 (intentionally
	// invalid, ignored because no txg-11 uberblock exists); odd labels
	// still match txg 10.
	for i := 0; i < 2; i++ {
		even := p.ReadLabelConfigSlot(leafOf(mirror, i), 0)
		require.NotNil(t, even)
		txg, _ := even.LookupUint64(KeyTxg)
		require.Equal(t, uint64(11), txg, "leaf %d even label", i)

		odd := p.ReadLabelConfigSlot(leafOf(mirror, i), 1)
		require.NotNil(t, odd)
		txg, _ = odd.LookupUint64(KeyTxg)
		require.Equal(t, uint64(10), txg, "leaf %d odd label", i)
	}

	// Catch-up: mark everything dirty and re-run the same txg. The
	// commit converges and the pool advances.
	p.DirtyAll()
	require.NoError(t, p.ConfigSync(p.Root, 11))
	ub, err = p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(11), ub.Txg)

	for i := 0; i < 2; i++ {
		for l := 0; l < VdevLabels; l++ {
			cfg := p.ReadLabelConfigSlot(leafOf(mirror, i), l)
			require.NotNil(t, cfg)
			txg, _ := cfg.LookupUint64(KeyTxg)
			require.Equal(t, uint64(11), txg, "leaf %d slot %d after catch-up", i, l)
		}
	}
}

func TestConfigSyncTotalLabelFailure(t *testing.T) {
	p, _, devs := createAndCommit(t, 2)

	for _, d := range devs {
		d.FailAllWrites()
	}
	p.Uberblock.RootBP.BirthTxg = 11
	p.DirtyAll()
	err := p.ConfigSync(p.Root, 11)
	require.Error(t, err)

	// Disk still opens at txg 10.
	for _, d := range devs {
		d.SetWriteFault(nil)
	}
	ub, err := p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(10), ub.Txg)
}

func TestConfigSyncLogVdevFailureTolerated(t *testing.T) {
	// A pool with a failing log vdev still commits: the main pool can
	// absorb the log's loss on next open.
	p, mirror, _ := newMirrorPool(t, "tank", 0xabc, 2)

	logDev := NewFaultDevice(device.NewMemory(testDevSize))
	logTop := NewLeaf(KindDisk, 2000, logDev)
	logTop.IsLog = true
	p.Root.AddChild(logTop)

	require.NoError(t, p.LabelInit(p.Root, 5, LabelCreate))
	mirror.MsArray = 1
	logTop.MsArray = 1
	commitTxg(t, p, 10)

	logDev.FailAllWrites()
	p.Uberblock.RootBP.BirthTxg = 11
	p.DirtyAll()
	require.NoError(t, p.ConfigSync(p.Root, 11))

	// Main pool advanced; the log labels are stuck at txg 10.
	ub, err := p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(11), ub.Txg)

	cfg := p.ReadLabelConfigSlot(logTop, 0)
	require.NotNil(t, cfg)
	txg, _ := cfg.LookupUint64(KeyTxg)
	require.Equal(t, uint64(10), txg)
}

func TestConfigSyncOfflineReplica(t *testing.T) {
	// A replica misses two commits while offline and returns; the loader
	// prefers the surviving leaf's newer uberblocks over the stale one.
	p, mirror, _ := createAndCommit(t, 2)
	y := leafOf(mirror, 1)
	commitTxg(t, p, 20)

	y.Offline = true
	for _, txg := range []uint64{21, 22} {
		p.Uberblock.RootBP.BirthTxg = txg
		p.DirtyAll()
		require.NoError(t, p.ConfigSync(p.Root, txg))
	}
	y.Offline = false

	// With the stale replica back, the survivor's txg-22 uberblock still
	// wins over Y's txg-20 copies.
	ub, err := p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(22), ub.Txg)
	ubY, err := p.LoadBestUberblock(y)
	require.NoError(t, err)
	require.Equal(t, uint64(20), ubY.Txg)

	p.Uberblock.RootBP.BirthTxg = 23
	p.DirtyAll()
	require.NoError(t, p.ConfigSync(p.Root, 23))

	ub, err = p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(23), ub.Txg)

	// The returned replica caught txg 23 directly.
	ubY, err = p.LoadBestUberblock(y)
	require.NoError(t, err)
	require.Equal(t, uint64(23), ubY.Txg)
}

func TestConfigSyncUberblockFallbackToRoot(t *testing.T) {
	// If the requested commit subtree takes no uberblock writes, the
	// orchestrator retries against the whole root before failing.
	p, mirror, _ := createAndCommit(t, 2)

	newTop := NewLeaf(KindDisk, 3000, NewFaultDevice(device.NewMemory(testDevSize)))
	p.Root.AddChild(newTop)
	require.NoError(t, p.LabelInit(newTop, 11, LabelCreate))
	// newTop.MsArray stays 0: not yet a committed top vdev.

	p.Uberblock.RootBP.BirthTxg = 11
	p.ConfigDirty(mirror)
	require.NoError(t, p.ConfigSync(newTop, 11))

	ub, err := p.LoadBestUberblock(p.Root)
	require.NoError(t, err)
	require.Equal(t, uint64(11), ub.Txg)
}

func TestConfigSyncPhaseBRetryDirtiesRoot(t *testing.T) {
	// Every dirty vdev fails label writes; the retry dirties the whole
	// root. With a second healthy top vdev, the retry finds a good write
	// and the commit proceeds.
	p, mirror, devs := createAndCommit(t, 1)

	second := NewLeaf(KindDisk, 4000, NewFaultDevice(device.NewMemory(testDevSize)))
	p.Root.AddChild(second)
	require.NoError(t, p.LabelInit(second, 11, LabelCreate))
	second.MsArray = 1
	commitTxg(t, p, 11)
	p.ConfigClean()

	// Only the mirror is dirty, and its device is now failing.
	devs[0].FailAllWrites()
	p.Uberblock.RootBP.BirthTxg = 12
	p.ConfigDirty(mirror)
	require.NoError(t, p.ConfigSync(p.Root, 12))

	// The healthy top picked up the commit.
	ub, err := p.LoadBestUberblock(second)
	require.NoError(t, err)
	require.Equal(t, uint64(12), ub.Txg)
}
