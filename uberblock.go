package zlabel

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-zlabel/internal/logging"
	"github.com/ehrlich-b/go-zlabel/internal/zio"
)

// BlockPointer names the root of the copy-on-write tree for one committed
// transaction group, plus the integrity data the open path verifies it
// with. This subsystem treats it as opaque payload.
type BlockPointer struct {
	Vdev     uint64
	Offset   uint64
	Asize    uint64
	BirthTxg uint64
	Fill     uint64
	Checksum [4]uint64
}

// Uberblock is the atomic commit record. One lives in each of the
// UberblockCount ring cells per label; the cell for txg t is t mod
// UberblockCount, so a commit disturbs exactly one cell per ring.
type Uberblock struct {
	Magic     uint64
	Version   uint64
	Txg       uint64
	GuidSum   uint64
	Timestamp uint64
	RootBP    BlockPointer
}

const uberblockPayloadSize = 112

func (ub *Uberblock) marshal() []byte {
	buf := make([]byte, uberblockPayloadSize)
	binary.LittleEndian.PutUint64(buf[0:8], ub.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], ub.Version)
	binary.LittleEndian.PutUint64(buf[16:24], ub.Txg)
	binary.LittleEndian.PutUint64(buf[24:32], ub.GuidSum)
	binary.LittleEndian.PutUint64(buf[32:40], ub.Timestamp)
	binary.LittleEndian.PutUint64(buf[40:48], ub.RootBP.Vdev)
	binary.LittleEndian.PutUint64(buf[48:56], ub.RootBP.Offset)
	binary.LittleEndian.PutUint64(buf[56:64], ub.RootBP.Asize)
	binary.LittleEndian.PutUint64(buf[64:72], ub.RootBP.BirthTxg)
	binary.LittleEndian.PutUint64(buf[72:80], ub.RootBP.Fill)
	for i, c := range ub.RootBP.Checksum {
		binary.LittleEndian.PutUint64(buf[80+i*8:88+i*8], c)
	}
	return buf
}

func unmarshalUberblock(data []byte, ub *Uberblock) bool {
	if len(data) < uberblockPayloadSize {
		return false
	}
	ub.Magic = binary.LittleEndian.Uint64(data[0:8])
	ub.Version = binary.LittleEndian.Uint64(data[8:16])
	ub.Txg = binary.LittleEndian.Uint64(data[16:24])
	ub.GuidSum = binary.LittleEndian.Uint64(data[24:32])
	ub.Timestamp = binary.LittleEndian.Uint64(data[32:40])
	ub.RootBP.Vdev = binary.LittleEndian.Uint64(data[40:48])
	ub.RootBP.Offset = binary.LittleEndian.Uint64(data[48:56])
	ub.RootBP.Asize = binary.LittleEndian.Uint64(data[56:64])
	ub.RootBP.BirthTxg = binary.LittleEndian.Uint64(data[64:72])
	ub.RootBP.Fill = binary.LittleEndian.Uint64(data[72:80])
	for i := range ub.RootBP.Checksum {
		ub.RootBP.Checksum[i] = binary.LittleEndian.Uint64(data[80+i*8 : 88+i*8])
	}
	return true
}

// verify reports whether a decoded cell is a real uberblock. The region
// checksum already passed; this rejects cells whose payload does not carry
// the uberblock magic.
func (ub *Uberblock) verify() bool {
	return ub.Magic == UberblockMagic
}

// Compare orders two uberblocks by (txg, timestamp). Two replicas can
// carry the same txg when one missed a commit and was later resynced; the
// later wall-clock stamp identifies the newer copy. Ties are payload-
// equivalent by construction.
func (ub *Uberblock) Compare(other *Uberblock) int {
	if ub.Txg != other.Txg {
		if ub.Txg < other.Txg {
			return -1
		}
		return 1
	}
	if ub.Timestamp != other.Timestamp {
		if ub.Timestamp < other.Timestamp {
			return -1
		}
		return 1
	}
	return 0
}

// update stamps the in-memory uberblock for txg and reports whether the
// root block pointer was born in this txg, i.e. whether anything was
// written that the commit must reference.
func (ub *Uberblock) update(rvd *Vdev, txg uint64) bool {
	ub.Txg = txg
	ub.GuidSum = rvd.GuidSum
	ub.Timestamp = uint64(time.Now().Unix())
	return ub.RootBP.BirthTxg == txg
}

// uberblockOffset returns the intra-label offset of ring cell n.
func uberblockOffset(n int) int64 {
	return UberblockBase + int64(n)*UberblockSize
}

// LoadBestUberblock scans every ring cell of every label of every live
// leaf under vd and returns the maximum valid uberblock under Compare.
// If no cell verifies it returns a zero uberblock and a stale error; the
// caller treats that as cold start.
func (p *Pool) LoadBestUberblock(vd *Vdev) (Uberblock, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var best Uberblock
	b := zio.NewBatch(zio.FlagCanFail|zio.FlagSpeculative|zio.FlagConfigHeld, p.metrics)
	p.uberblockLoad(b, vd, &best)
	b.Wait() // per-cell failures just remove candidates

	if !best.verify() {
		return Uberblock{}, NewError("uberblock_load", ErrCodeStale, "no valid uberblock found")
	}
	return best, nil
}

func (p *Pool) uberblockLoad(b *zio.Batch, vd *Vdev, best *Uberblock) {
	for _, c := range vd.Children {
		p.uberblockLoad(b, c, best)
	}
	if !vd.IsLeaf() || vd.Dead() {
		return
	}

	for l := 0; l < VdevLabels; l++ {
		for n := 0; n < UberblockCount; n++ {
			p.labelRead(b, vd, l, uberblockOffset(n), UberblockSize, zio.FlagSpeculative,
				func(io *zio.IO) {
					if io.Err != nil {
						return
					}
					var ub Uberblock
					if !unmarshalUberblock(io.Data, &ub) || !ub.verify() {
						return
					}
					p.ubMu.Lock()
					if !best.verify() || ub.Compare(best) > 0 {
						*best = ub
					}
					p.ubMu.Unlock()
				})
		}
	}
}

// uberblockSync writes ub into ring cell txg mod UberblockCount of all four
// labels on every live leaf under vd. Only leaves of committed top vdevs
// (non-zero metaslab array) count toward good writes, so a brand-new top
// vdev can't satisfy the at-least-one-success rule by itself.
func (p *Pool) uberblockSync(b *zio.Batch, ub *Uberblock, vd *Vdev, txg uint64, goodWrites *atomic.Uint64) {
	for _, c := range vd.Children {
		p.uberblockSync(b, ub, c, txg, goodWrites)
	}
	if !vd.IsLeaf() || vd.Dead() {
		return
	}
	if ub.Txg != txg {
		panic("zlabel: uberblock txg mismatch")
	}

	n := int(txg & uint64(UberblockCount-1))
	payload := ub.marshal()
	top := vd.Top()

	for l := 0; l < VdevLabels; l++ {
		p.labelWrite(b, vd, l, uberblockOffset(n), payload, UberblockSize,
			func(io *zio.IO) {
				if io.Err == nil && top.MsArray != 0 {
					goodWrites.Add(1)
				}
			})
	}
	logging.Debugf("uberblock sync vdev %016x txg %d", vd.Guid, txg)
}

// syncUberblockTree submits the uberblock batch for vd's subtree and
// applies the partial-success rule: one good write commits the txg.
func (p *Pool) syncUberblockTree(ub *Uberblock, vd *Vdev, txg uint64) error {
	var goodWrites atomic.Uint64
	b := zio.NewBatch(zio.FlagConfigHeld|zio.FlagCanFail, p.metrics)
	p.uberblockSync(b, ub, vd, txg, &goodWrites)
	err := b.Wait()

	if err != nil && goodWrites.Load() > 0 {
		logging.Debugf("partial uberblock sync: good_writes=%d", goodWrites.Load())
		err = nil
	}
	// No good writes and no error means every leaf was in an unopenable
	// state.
	if goodWrites.Load() == 0 && err == nil {
		err = NewVdevError("uberblock_sync", vd.Guid, ErrCodeDeviceUnavailable,
			"no leaf accepted the uberblock")
	}
	if err != nil {
		return WrapError("uberblock_sync", ErrCodeIO, err)
	}
	return nil
}
