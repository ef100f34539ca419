package zlabel

import (
	"github.com/ehrlich-b/go-zlabel/internal/logging"
	"github.com/ehrlich-b/go-zlabel/internal/nvlist"
	"github.com/ehrlich-b/go-zlabel/internal/zio"
)

// LabelInit writes first-time labels onto every leaf of vd's subtree for a
// create, replace, spare-add or removal. Leaves are visited sequentially,
// not in parallel: the second visit to a device supplied twice under
// different logical positions sees the label the first visit just wrote
// and refuses.
func (p *Pool) LabelInit(vd *Vdev, crtxg uint64, reason LabelReason) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.labelInit(vd, crtxg, reason)
}

func (p *Pool) labelInit(vd *Vdev, crtxg uint64, reason LabelReason) error {
	for _, c := range vd.Children {
		if err := p.labelInit(c, crtxg, reason); err != nil {
			return err
		}
	}
	if !vd.IsLeaf() {
		return nil
	}

	// Dead leaves cannot be initialized.
	if vd.Dead() {
		return NewVdevError("label_init", vd.Guid, ErrCodeDeviceUnavailable,
			"leaf not writable")
	}

	var spareGuid uint64
	if reason != LabelRemove {
		inuse, sg := p.vdevInUse(vd, crtxg, reason)
		if inuse {
			return NewVdevError("label_init", vd.Guid, ErrCodeBusy,
				"leaf already in use ("+reason.String()+")")
		}
		spareGuid = sg
	}

	// Adding or replacing with a spare that is in use elsewhere on the
	// system: adopt the shared guid in place of our random one and push
	// the delta up the ancestors' guid sums.
	if reason != LabelRemove && spareGuid != 0 {
		delta := spareGuid - vd.Guid
		for pvd := vd.Parent; pvd != nil; pvd = pvd.Parent {
			pvd.GuidSum += delta
		}
		vd.Guid = spareGuid
		vd.GuidSum = spareGuid

		// A spare-add stops here: the leaf already carries the right
		// label. A replacement falls through and labels it as ours.
		if reason == LabelSpare {
			return nil
		}
	}

	// Generate the label. Spares get a minimal shared-identity list; real
	// leaves get the full pool config marked txg 0 so they are not part
	// of a live pool until the next config sync stamps a real txg.
	var label *nvlist.List
	if reason == LabelSpare || (reason == LabelRemove && vd.IsSpare) {
		label = nvlist.New()
		label.AddUint64(KeyVersion, p.Version)
		label.AddUint64(KeyState, uint64(PoolStateSpare))
		label.AddUint64(KeyGuid, vd.Guid)
	} else {
		vd.CreateTxg = crtxg
		label = p.ConfigGenerate(vd, 0, false)
	}

	buf := label.Encode()
	if len(buf) > PhysSize-zio.TrailerSize {
		return NewVdevError("label_init", vd.Guid, ErrCodeNameTooLong,
			"encoded label exceeds phys region")
	}

	bh := BootHeader{
		Magic:   BootMagic,
		Version: BootVersion,
		Offset:  BootHeaderOffset,
		Size:    BootHeaderSize,
	}
	bootBuf := bh.marshal()

	// Uberblock template: the current in-memory uberblock at txg 0.
	ub := p.Uberblock
	ub.Txg = 0
	ubBuf := ub.marshal()

	// Write everything to all four slots in parallel.
	b := zio.NewBatch(zio.FlagConfigHeld|zio.FlagCanFail, p.metrics)
	for l := 0; l < VdevLabels; l++ {
		p.labelWrite(b, vd, l, PhysOffset, buf, PhysSize, nil)
		p.labelWrite(b, vd, l, BootHeaderOffset, bootBuf, BootHeaderSize, nil)
		for n := 0; n < UberblockCount; n++ {
			p.labelWrite(b, vd, l, uberblockOffset(n), ubBuf, UberblockSize, nil)
		}
	}
	if err := b.Wait(); err != nil {
		return WrapError("label_init", ErrCodeIO, err)
	}

	// If the leaf wasn't previously known as a spare, record it when we
	// just labeled it as one, or when it exists as a spare elsewhere.
	if !vd.IsSpare {
		_, known := spareExists(vd.Guid)
		if reason == LabelSpare || known {
			spareAdd(vd.Guid)
			vd.IsSpare = true
		}
	}

	logging.Debugf("labeled vdev %016x create_txg %d reason %s", vd.Guid, crtxg, reason)
	return nil
}
