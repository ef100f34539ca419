package zlabel

import "github.com/ehrlich-b/go-zlabel/internal/nvlist"

// PropertyList is the label property list: an ordered name-to-typed-value
// map with a canonical binary encoding.
type PropertyList = nvlist.List

// Property list keys stored in the label phys region. These names are part
// of the on-disk format.
const (
	KeyVersion       = "version"
	KeyName          = "name"
	KeyState         = "state"
	KeyTxg           = "txg"
	KeyPoolGuid      = "pool_guid"
	KeyTopGuid       = "top_guid"
	KeyGuid          = "guid"
	KeyCreateTxg     = "create_txg"
	KeyVdevTree      = "vdev_tree"
	KeyType          = "type"
	KeyID            = "id"
	KeyPath          = "path"
	KeyDevID         = "devid"
	KeyPhysPath      = "phys_path"
	KeyWholeDisk     = "whole_disk"
	KeyMetaslabArray = "metaslab_array"
	KeyMetaslabShift = "metaslab_shift"
	KeyAshift        = "ashift"
	KeyAsize         = "asize"
	KeyIsLog         = "is_log"
	KeyIsSpare       = "is_spare"
	KeyOffline       = "offline"
	KeyFaulted       = "faulted"
	KeyDegraded      = "degraded"
	KeyRemoved       = "removed"
	KeyUnspare       = "unspare"
	KeyNotPresent    = "not_present"
	KeyNparity       = "nparity"
	KeyDTL           = "dtl"
	KeyChildren      = "children"
	KeyStats         = "stats"
)

// ConfigGenerate builds the label property list for one leaf: pool-wide
// identity plus the configuration of the top-level vdev the leaf belongs
// to. txg is the transaction group the label is written under; labels from
// txg 0 describe leaves that are not yet part of a live pool.
func (p *Pool) ConfigGenerate(vd *Vdev, txg uint64, getstats bool) *nvlist.List {
	nv := nvlist.New()

	nv.AddUint64(KeyVersion, p.Version)
	nv.AddString(KeyName, p.Name)
	nv.AddUint64(KeyState, uint64(p.State))
	nv.AddUint64(KeyTxg, txg)
	nv.AddUint64(KeyPoolGuid, p.Guid)

	top := vd.Top()
	nv.AddUint64(KeyTopGuid, top.Guid)
	nv.AddUint64(KeyGuid, vd.Guid)
	if vd.CreateTxg != 0 {
		nv.AddUint64(KeyCreateTxg, vd.CreateTxg)
	}

	nv.AddList(KeyVdevTree, top.ConfigNvlist(getstats, false))
	return nv
}
