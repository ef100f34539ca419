package zlabel

import (
	"sync/atomic"

	"github.com/ehrlich-b/go-zlabel/internal/nvlist"
)

// VdevKind identifies a node's operation type in the vdev tree.
type VdevKind string

const (
	KindRoot      VdevKind = "root"
	KindMirror    VdevKind = "mirror"
	KindRaidz     VdevKind = "raidz"
	KindReplacing VdevKind = "replacing"
	KindDisk      VdevKind = "disk"
	KindFile      VdevKind = "file"
)

// WholeDiskUnset marks the whole_disk field as never-set; zero is a valid
// value (partition) and must stay distinguishable.
const WholeDiskUnset = ^uint64(0)

// Vdev is one node of the device tree: the root, an interior grouping
// (mirror, raidz, replacing), or a leaf bound to a physical device.
type Vdev struct {
	Kind     VdevKind
	ID       uint64 // index within parent
	Guid     uint64
	GuidSum  uint64 // own guid plus all descendants'
	Parent   *Vdev
	Children []*Vdev

	// Leaf identity
	Path      string
	DevID     string
	PhysPath  string
	WholeDisk uint64
	Nparity   uint64 // raidz interior only

	// Leaf state
	Offline    bool
	Faulted    bool
	Degraded   bool
	Removed    bool
	Unspare    bool
	NotPresent bool
	IsSpare    bool

	// Top-level vdev metadata. MsArray is zero until the top vdev's
	// metaslab array is committed; uberblock good-write accounting keys
	// off that.
	IsLog   bool
	MsArray uint64
	MsShift uint64
	Ashift  uint64
	Asize   uint64
	DTL     uint64

	// CreateTxg is fixed at first label write and never changes.
	CreateTxg uint64

	// Dev is the bound device; nil for interior vdevs and missing leaves.
	Dev Device

	Stats VdevStats
}

// VdevStats tracks per-vdev error counters. Speculative label probes do
// not touch these.
type VdevStats struct {
	ReadErrors     atomic.Uint64
	WriteErrors    atomic.Uint64
	ChecksumErrors atomic.Uint64
}

func (s *VdevStats) array() []uint64 {
	return []uint64{
		s.ReadErrors.Load(),
		s.WriteErrors.Load(),
		s.ChecksumErrors.Load(),
	}
}

// NewLeaf creates a leaf vdev bound to dev. A nil dev models a missing
// device.
func NewLeaf(kind VdevKind, guid uint64, dev Device) *Vdev {
	return &Vdev{
		Kind:      kind,
		Guid:      guid,
		GuidSum:   guid,
		WholeDisk: WholeDiskUnset,
		Dev:       dev,
	}
}

// NewInterior creates an interior vdev (root, mirror, raidz, replacing).
func NewInterior(kind VdevKind, guid uint64) *Vdev {
	return &Vdev{
		Kind:      kind,
		Guid:      guid,
		GuidSum:   guid,
		WholeDisk: WholeDiskUnset,
	}
}

// AddChild links c under vd and folds c's guid sum into every ancestor.
func (vd *Vdev) AddChild(c *Vdev) {
	c.Parent = vd
	c.ID = uint64(len(vd.Children))
	vd.Children = append(vd.Children, c)
	for p := vd; p != nil; p = p.Parent {
		p.GuidSum += c.GuidSum
	}
}

// IsLeaf reports whether vd's kind has no children by construction.
func (vd *Vdev) IsLeaf() bool {
	return vd.Kind == KindDisk || vd.Kind == KindFile
}

// Top returns the top-level vdev containing vd: the ancestor directly
// below the root, or vd itself for the root.
func (vd *Vdev) Top() *Vdev {
	t := vd
	for t.Parent != nil && t.Parent.Parent != nil {
		t = t.Parent
	}
	return t
}

// Dead reports whether a leaf cannot service label I/O.
func (vd *Vdev) Dead() bool {
	return vd.Dev == nil || vd.Offline || vd.Faulted || vd.Removed || vd.NotPresent
}

// PSize returns the leaf's usable size: the device size rounded down to a
// label-size multiple.
func (vd *Vdev) PSize() int64 {
	return AlignedSize(vd.Dev.Size())
}

// lookupGuid finds the vdev with the given guid in vd's subtree.
func (vd *Vdev) lookupGuid(guid uint64) *Vdev {
	if vd.Guid == guid {
		return vd
	}
	for _, c := range vd.Children {
		if m := c.lookupGuid(guid); m != nil {
			return m
		}
	}
	return nil
}

// ConfigNvlist generates the property list describing vd's subtree, as
// stored under the vdev_tree key of every label. isspare elides the fields
// that a mutually shared hot spare must not claim.
func (vd *Vdev) ConfigNvlist(getstats, isspare bool) *nvlist.List {
	nv := nvlist.New()

	nv.AddString(KeyType, string(vd.Kind))
	if !isspare {
		nv.AddUint64(KeyID, vd.ID)
	}
	nv.AddUint64(KeyGuid, vd.Guid)

	if vd.Path != "" {
		nv.AddString(KeyPath, vd.Path)
	}
	if vd.DevID != "" {
		nv.AddString(KeyDevID, vd.DevID)
	}
	if vd.PhysPath != "" {
		nv.AddString(KeyPhysPath, vd.PhysPath)
	}

	if vd.Nparity != 0 {
		// Only raidz interiors carry parity metadata.
		nv.AddUint64(KeyNparity, vd.Nparity)
	}

	if vd.WholeDisk != WholeDiskUnset {
		nv.AddUint64(KeyWholeDisk, vd.WholeDisk)
	}
	if vd.NotPresent {
		nv.AddUint64(KeyNotPresent, 1)
	}
	if vd.IsSpare {
		nv.AddUint64(KeyIsSpare, 1)
	}

	if !isspare && vd == vd.Top() {
		nv.AddUint64(KeyMetaslabArray, vd.MsArray)
		nv.AddUint64(KeyMetaslabShift, vd.MsShift)
		nv.AddUint64(KeyAshift, vd.Ashift)
		nv.AddUint64(KeyAsize, vd.Asize)
		if vd.IsLog {
			nv.AddUint64(KeyIsLog, 1)
		}
	}

	if vd.DTL != 0 {
		nv.AddUint64(KeyDTL, vd.DTL)
	}

	if getstats {
		nv.AddUint64Array(KeyStats, vd.Stats.array())
	}

	if !vd.IsLeaf() {
		children := make([]*nvlist.List, len(vd.Children))
		for i, c := range vd.Children {
			children[i] = c.ConfigNvlist(getstats, isspare)
		}
		nv.AddListArray(KeyChildren, children)
	} else {
		if vd.Offline {
			nv.AddUint64(KeyOffline, 1)
		}
		if vd.Faulted {
			nv.AddUint64(KeyFaulted, 1)
		}
		if vd.Degraded {
			nv.AddUint64(KeyDegraded, 1)
		}
		if vd.Removed {
			nv.AddUint64(KeyRemoved, 1)
		}
		if vd.Unspare {
			nv.AddUint64(KeyUnspare, 1)
		}
	}

	return nv
}
