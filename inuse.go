package zlabel

// LabelReason says why a label is being initialized; the in-use rules
// differ per reason.
type LabelReason int

const (
	LabelCreate LabelReason = iota
	LabelReplace
	LabelSpare
	LabelRemove
)

func (r LabelReason) String() string {
	switch r {
	case LabelCreate:
		return "create"
	case LabelReplace:
		return "replace"
	case LabelSpare:
		return "spare"
	case LabelRemove:
		return "remove"
	}
	return "unknown"
}

// vdevInUse decides whether a candidate leaf already belongs to some pool
// or spare set. spareGuid is the device guid when the leaf is a spare
// shared elsewhere on the system, so the caller can adopt it.
//
// Caller holds the pool config lock.
func (p *Pool) vdevInUse(vd *Vdev, crtxg uint64, reason LabelReason) (inuse bool, spareGuid uint64) {
	// Read the label, if any, and perform some basic sanity checks.
	label := p.readLabelConfig(vd)
	if label == nil {
		return false, 0
	}

	vdtxg, _ := label.LookupUint64(KeyCreateTxg)

	state, stateOK := label.LookupUint64(KeyState)
	deviceGuid, guidOK := label.LookupUint64(KeyGuid)
	if !stateOK || !guidOK {
		return false, 0
	}

	var poolGuid, txg uint64
	if state != uint64(PoolStateSpare) {
		var poolOK, txgOK bool
		poolGuid, poolOK = label.LookupUint64(KeyPoolGuid)
		txg, txgOK = label.LookupUint64(KeyTxg)
		if !poolOK || !txgOK {
			return false, 0
		}

		// The label must name a pool and device we actually know about;
		// anything else is a leftover from a destroyed or foreign config.
		// The only exception is a hot spare, checked below.
		if !guidExists(poolGuid, deviceGuid) {
			if _, known := spareExists(deviceGuid); !known {
				return false, 0
			}
		}

		// A zero txg means the label was initialized but the leaf never
		// joined a committed transaction. That only collides if the
		// on-disk create txg matches ours: the caller supplied the same
		// leaf twice in one transaction.
		if txg == 0 && vdtxg == crtxg {
			return true, 0
		}
	}

	// Spares are shared between pools; re-use is not a collision, but the
	// answer depends on why we're labeling.
	sparePool, known := spareExists(deviceGuid)
	if known || p.hasSpare(deviceGuid) {
		spareGuid = deviceGuid
		switch reason {
		case LabelCreate:
			return true, spareGuid
		case LabelReplace:
			return !p.hasSpare(deviceGuid) || sparePool != 0, spareGuid
		case LabelSpare:
			return p.hasSpare(deviceGuid), spareGuid
		case LabelRemove:
			// fall through to the active check
		}
	}

	// A device marked ACTIVE is in use by another pool on the system.
	return state == uint64(PoolStateActive), spareGuid
}
