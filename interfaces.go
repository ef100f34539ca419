package zlabel

import "github.com/ehrlich-b/go-zlabel/internal/interfaces"

// Device is the leaf block device surface this subsystem drives. The
// implementations in the device package satisfy it; so does anything with
// ordered reads, writes and a cache-flush barrier.
type Device = interfaces.Device

// Observer receives per-operation notifications from the phys I/O layer.
type Observer = interfaces.Observer
