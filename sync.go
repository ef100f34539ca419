package zlabel

import (
	"sync/atomic"

	"github.com/ehrlich-b/go-zlabel/internal/logging"
	"github.com/ehrlich-b/go-zlabel/internal/zio"
)

// syncLabel regenerates the config for every live leaf under vd and writes
// it into slot l's phys region, counting good writes.
func (p *Pool) syncLabel(b *zio.Batch, vd *Vdev, l int, txg uint64, goodWrites *atomic.Uint64) {
	for _, c := range vd.Children {
		p.syncLabel(b, c, l, txg, goodWrites)
	}
	if !vd.IsLeaf() || vd.Dead() {
		return
	}

	label := p.ConfigGenerate(vd, txg, false)
	buf := label.Encode()
	if len(buf) > PhysSize-zio.TrailerSize {
		// Counted as a missing good write; the encode cannot shrink here.
		return
	}
	p.labelWrite(b, vd, l, PhysOffset, buf, PhysSize,
		func(io *zio.IO) {
			if io.Err == nil {
				goodWrites.Add(1)
			}
		})
	logging.Debugf("sync label vdev %016x slot %d txg %d", vd.Guid, l, txg)
}

// syncLabels writes slot l of one dirty top-level vdev. One good write
// anywhere under a non-log top vdev keeps its label lineage alive; a
// failing log vdev is not fatal because the main pool absorbs its loss on
// next open.
func (p *Pool) syncLabels(vd *Vdev, l int, txg uint64) error {
	var goodWrites atomic.Uint64
	b := zio.NewBatch(zio.FlagConfigHeld|zio.FlagCanFail, p.metrics)
	p.syncLabel(b, vd, l, txg, &goodWrites)
	err := b.Wait()

	if err != nil && goodWrites.Load() > 0 {
		logging.Debugf("partial label sync: good_writes=%d", goodWrites.Load())
		err = nil
	}
	if goodWrites.Load() == 0 && err == nil {
		err = NewVdevError("label_sync", vd.Guid, ErrCodeDeviceUnavailable,
			"no leaf accepted the label")
	}
	if vd.IsLog {
		err = nil
	}
	return err
}

// flushVdev queues a cache-flush for every live leaf under vd.
func (p *Pool) flushVdev(b *zio.Batch, vd *Vdev) {
	for _, c := range vd.Children {
		p.flushVdev(b, c)
	}
	if vd.IsLeaf() && !vd.Dead() {
		b.Flush(vd.Dev, nil)
	}
}

func (p *Pool) flushAll(vdevs []*Vdev) {
	b := zio.NewBatch(zio.FlagConfigHeld|zio.FlagCanFail|zio.FlagDontRetry, p.metrics)
	for _, vd := range vdevs {
		p.flushVdev(b, vd)
	}
	b.Wait() // barrier failures are not fatal by themselves
}

// ConfigSync atomically advances the pool across a txg boundary: the
// four-phase commit over every dirty vdev. uvd is the subtree receiving
// the new uberblock, usually the root.
//
// The order of operations is carefully crafted to ensure that if the
// system panics or loses power at any time, the state on disk is still
// transactionally consistent. It is also idempotent: if a sync fails, the
// caller can just invoke it again for the same txg and it resumes its
// work.
func (p *Pool) ConfigSync(uvd *Vdev, txg uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ub := &p.Uberblock
	rvd := p.Root

	if ub.Txg > txg {
		panic("zlabel: config sync behind committed uberblock")
	}

	// Nothing changed in this txg and no vdev config is dirty: no commit
	// needed.
	if ub.Txg < txg && !ub.update(rvd, txg) && len(p.dirty) == 0 {
		logging.Debugf("nothing to sync in %s for txg %d", p.Name, txg)
		return nil
	}

	if txg > p.FreezeTxg {
		return nil
	}
	if txg > p.FinalTxg {
		panic("zlabel: config sync past final txg")
	}

	logging.Debugf("syncing %s txg %d", p.Name, txg)

	// Flush the write cache of every vdev written during the previous
	// txg window, so all data blocks are on stable media before any
	// uberblock that references them.
	p.flushAll(p.txgVdevs[txgClean(txg)])

	// Sync the even labels (slots 0, 2) for every dirty vdev. Dying in
	// the middle is fine: even labels that made it out are newer than
	// every uberblock and therefore invalid; the untouched odd labels
	// still match the committed state. If nothing at all succeeds, dirty
	// the whole root and try once more before giving up.
	var lastErr error
	goodWrites := 0
	for attempt := 0; ; attempt++ {
		goodWrites = 0
		lastErr = nil
		for _, vd := range p.dirty {
			for l := 0; l < VdevLabels; l++ {
				if l&1 == 1 {
					continue
				}
				if err := p.syncLabels(vd, l, txg); err != nil {
					lastErr = err
				} else {
					goodWrites++
				}
			}
		}
		if goodWrites > 0 || attempt == 1 {
			break
		}
		p.configDirty(rvd)
	}
	if goodWrites == 0 {
		return lastErr
	}

	// Barrier: all even-label updates reach stable media before any
	// uberblock update.
	p.flushAll(p.dirty)

	// Write the new uberblock into every ring. Whether none or some of
	// the new uberblocks land, the disk stays consistent: the previous
	// uberblock pairs with the odd labels, the new one with the even
	// labels. Fall back to the whole root if the requested subtree fails.
	err := p.syncUberblockTree(ub, uvd, txg)
	if err != nil && uvd != rvd {
		err = p.syncUberblockTree(ub, rvd, txg)
	}
	if err != nil {
		return err
	}

	// Barrier: the new uberblocks are durable, so the odd labels are no
	// longer needed and may be overwritten.
	p.flushAll([]*Vdev{uvd})

	// Sync the odd labels (slots 1, 3). Dying here is harmless: the even
	// labels and new uberblocks open the pool, and the first sync after
	// open dirties everything and catches all labels up.
	lastErr = nil
	for _, vd := range p.dirty {
		for l := 0; l < VdevLabels; l++ {
			if l&1 == 0 {
				continue
			}
			if err := p.syncLabels(vd, l, txg); err != nil {
				lastErr = err
			} else {
				goodWrites++
			}
		}
	}
	if goodWrites == 0 {
		return lastErr
	}

	// Final barrier before the next txg begins.
	p.flushAll(p.dirty)
	return nil
}
