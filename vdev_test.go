package zlabel

import (
	"testing"

	"github.com/ehrlich-b/go-zlabel/device"
)

func TestAddChildGuidSums(t *testing.T) {
	root := NewInterior(KindRoot, 1)
	mirror := NewInterior(KindMirror, 10)
	root.AddChild(mirror)
	a := NewLeaf(KindDisk, 100, nil)
	b := NewLeaf(KindDisk, 200, nil)
	mirror.AddChild(a)
	mirror.AddChild(b)

	if mirror.GuidSum != 10+100+200 {
		t.Errorf("mirror guid sum = %d, want %d", mirror.GuidSum, 310)
	}
	if root.GuidSum != 1+10+100+200 {
		t.Errorf("root guid sum = %d, want %d", root.GuidSum, 311)
	}
	if a.ID != 0 || b.ID != 1 {
		t.Errorf("child ids = %d, %d", a.ID, b.ID)
	}
}

func TestTop(t *testing.T) {
	root := NewInterior(KindRoot, 1)
	mirror := NewInterior(KindMirror, 10)
	root.AddChild(mirror)
	leaf := NewLeaf(KindDisk, 100, nil)
	mirror.AddChild(leaf)

	if leaf.Top() != mirror {
		t.Error("leaf.Top() != mirror")
	}
	if mirror.Top() != mirror {
		t.Error("mirror.Top() != mirror")
	}
	if root.Top() != root {
		t.Error("root.Top() != root")
	}

	// A top-level single disk is its own top.
	solo := NewLeaf(KindDisk, 200, nil)
	root.AddChild(solo)
	if solo.Top() != solo {
		t.Error("solo.Top() != solo")
	}
}

func TestDead(t *testing.T) {
	leaf := NewLeaf(KindDisk, 1, nil)
	if !leaf.Dead() {
		t.Error("leaf without device is not dead")
	}
	leaf.Dev = device.NewMemory(testDevSize)
	if leaf.Dead() {
		t.Error("healthy leaf is dead")
	}
	for _, set := range []func(*Vdev){
		func(v *Vdev) { v.Offline = true },
		func(v *Vdev) { v.Faulted = true },
		func(v *Vdev) { v.Removed = true },
		func(v *Vdev) { v.NotPresent = true },
	} {
		v := NewLeaf(KindDisk, 1, device.NewMemory(testDevSize))
		set(v)
		if !v.Dead() {
			t.Errorf("leaf with fault flag is not dead: %+v", v)
		}
	}
}

func TestConfigNvlistLeaf(t *testing.T) {
	root := NewInterior(KindRoot, 1)
	mirror := NewInterior(KindMirror, 10)
	root.AddChild(mirror)
	leaf := NewLeaf(KindDisk, 100, nil)
	leaf.Path = "/dev/dsk/c0t0d0"
	leaf.DevID = "id1"
	leaf.Degraded = true
	mirror.AddChild(leaf)
	mirror.MsArray = 7
	mirror.MsShift = 30
	mirror.Ashift = 9
	mirror.Asize = 1 << 30

	nv := mirror.ConfigNvlist(false, false)
	if typ, _ := nv.LookupString(KeyType); typ != "mirror" {
		t.Errorf("type = %q", typ)
	}
	if ms, _ := nv.LookupUint64(KeyMetaslabArray); ms != 7 {
		t.Errorf("metaslab_array = %d", ms)
	}
	children, ok := nv.LookupListArray(KeyChildren)
	if !ok || len(children) != 1 {
		t.Fatalf("children missing or wrong length")
	}
	c := children[0]
	if path, _ := c.LookupString(KeyPath); path != "/dev/dsk/c0t0d0" {
		t.Errorf("path = %q", path)
	}
	if _, ok := c.LookupUint64(KeyDegraded); !ok {
		t.Error("degraded flag missing")
	}
	if c.Has(KeyMetaslabArray) {
		t.Error("leaf carries top-vdev metaslab fields")
	}
}

func TestConfigNvlistSpareElidesID(t *testing.T) {
	leaf := NewLeaf(KindDisk, 100, nil)
	nv := leaf.ConfigNvlist(false, true)
	if nv.Has(KeyID) {
		t.Error("spare config carries a pool-relative id")
	}
	if guid, _ := nv.LookupUint64(KeyGuid); guid != 100 {
		t.Errorf("guid = %d", guid)
	}
}

func TestConfigNvlistRaidzParity(t *testing.T) {
	rz := NewInterior(KindRaidz, 10)
	rz.Nparity = 2
	nv := rz.ConfigNvlist(false, false)
	if np, _ := nv.LookupUint64(KeyNparity); np != 2 {
		t.Errorf("nparity = %d", np)
	}
}

func TestConfigNvlistStats(t *testing.T) {
	leaf := NewLeaf(KindDisk, 100, nil)
	leaf.Stats.WriteErrors.Add(3)
	nv := leaf.ConfigNvlist(true, false)
	stats, ok := nv.LookupUint64Array(KeyStats)
	if !ok {
		t.Fatal("stats missing with getstats=true")
	}
	if stats[1] != 3 {
		t.Errorf("write error count = %d, want 3", stats[1])
	}
}
