package zlabel

import (
	"encoding/binary"

	"github.com/ehrlich-b/go-zlabel/internal/nvlist"
	"github.com/ehrlich-b/go-zlabel/internal/zio"
)

// AlignedSize rounds a raw device size down to a label-size multiple, the
// usable size all geometry is computed against.
func AlignedSize(size int64) int64 {
	return size &^ (LabelSize - 1)
}

// LabelOffset maps (device size, label slot, offset within label) to an
// absolute byte offset. Slots 0 and 1 sit at the front of the device,
// slots 2 and 3 at the tail. Precondition violations are programming
// errors and panic.
func LabelOffset(psize int64, l int, offset int64) int64 {
	if psize <= 0 || psize%LabelSize != 0 {
		panic("zlabel: device size not a label-size multiple")
	}
	if l < 0 || l >= VdevLabels {
		panic("zlabel: label slot out of range")
	}
	if offset < 0 || offset >= LabelSize {
		panic("zlabel: offset outside label")
	}
	base := int64(l) * LabelSize
	if l >= VdevLabels/2 {
		base += psize - VdevLabels*LabelSize
	}
	return base + offset
}

// labelRead issues one checksummed region read within slot l of a leaf.
// Non-speculative failures count against the leaf's error stats.
func (p *Pool) labelRead(b *zio.Batch, vd *Vdev, l int, offset int64, size int, flags zio.Flag, done zio.DoneFunc) {
	speculative := flags&zio.FlagSpeculative != 0
	b.ReadPhys(vd.Dev, LabelOffset(vd.PSize(), l, offset), size,
		zio.PrioritySyncRead, flags|zio.FlagCanFail,
		func(io *zio.IO) {
			if io.Err != nil && !speculative {
				if zio.IsChecksumError(io.Err) {
					vd.Stats.ChecksumErrors.Add(1)
				} else {
					vd.Stats.ReadErrors.Add(1)
				}
			}
			if done != nil {
				done(io)
			}
		})
}

// labelWrite issues one checksummed region write within slot l of a leaf.
func (p *Pool) labelWrite(b *zio.Batch, vd *Vdev, l int, offset int64, payload []byte, size int, done zio.DoneFunc) {
	b.WritePhys(vd.Dev, LabelOffset(vd.PSize(), l, offset), payload, size,
		zio.PrioritySyncWrite, zio.FlagCanFail,
		func(io *zio.IO) {
			if io.Err != nil {
				vd.Stats.WriteErrors.Add(1)
			}
			if done != nil {
				done(io)
			}
		})
}

// ReadLabelConfig reads the property list from the first of the four
// labels that passes checksum and decodes, or nil if none does. Slot
// probes are speculative: a blank device produces no error counts.
func (p *Pool) ReadLabelConfig(vd *Vdev) *nvlist.List {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.readLabelConfig(vd)
}

func (p *Pool) readLabelConfig(vd *Vdev) *nvlist.List {
	if vd.Dead() {
		return nil
	}

	for l := 0; l < VdevLabels; l++ {
		if config := p.readLabelConfigSlot(vd, l); config != nil {
			return config
		}
	}
	return nil
}

// ReadLabelConfigSlot reads and decodes exactly one label slot's property
// list, or nil if that slot fails checksum or decode.
func (p *Pool) ReadLabelConfigSlot(vd *Vdev, l int) *nvlist.List {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if vd.Dead() {
		return nil
	}
	return p.readLabelConfigSlot(vd, l)
}

func (p *Pool) readLabelConfigSlot(vd *Vdev, l int) *nvlist.List {
	var config *nvlist.List
	b := zio.NewBatch(zio.FlagCanFail|zio.FlagSpeculative|zio.FlagConfigHeld, p.metrics)
	p.labelRead(b, vd, l, PhysOffset, PhysSize, zio.FlagSpeculative,
		func(io *zio.IO) {
			if io.Err != nil {
				return
			}
			if nv, err := nvlist.Decode(io.Data); err == nil {
				config = nv
			}
		})
	if err := b.Wait(); err != nil {
		return nil
	}
	return config
}

// BootHeader is the fixed descriptor at the front of every label's boot
// region.
type BootHeader struct {
	Magic   uint64
	Version uint64
	Offset  uint64
	Size    uint64
}

const bootHeaderPayloadSize = 32

func (bh *BootHeader) marshal() []byte {
	buf := make([]byte, bootHeaderPayloadSize)
	binary.LittleEndian.PutUint64(buf[0:8], bh.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], bh.Version)
	binary.LittleEndian.PutUint64(buf[16:24], bh.Offset)
	binary.LittleEndian.PutUint64(buf[24:32], bh.Size)
	return buf
}

func unmarshalBootHeader(data []byte, bh *BootHeader) bool {
	if len(data) < bootHeaderPayloadSize {
		return false
	}
	bh.Magic = binary.LittleEndian.Uint64(data[0:8])
	bh.Version = binary.LittleEndian.Uint64(data[8:16])
	bh.Offset = binary.LittleEndian.Uint64(data[16:24])
	bh.Size = binary.LittleEndian.Uint64(data[24:32])
	return bh.Magic == BootMagic
}
