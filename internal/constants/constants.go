package constants

// On-disk label geometry. These are fixed constants of format version 1;
// changing any of them changes the on-disk format.
const (
	// LabelSize is the size of one label slot in bytes (256KB)
	LabelSize = 256 * 1024

	// VdevLabels is the number of label slots per leaf device.
	// Slots 0 and 1 sit at the front of the device, 2 and 3 at the tail.
	VdevLabels = 4

	// PadSize is the legacy partition-table padding at the head of each
	// label slot. Never interpreted.
	PadSize = 8 * 1024

	// PhysSize is the size of the property-list region including its
	// checksum trailer (112KB)
	PhysSize = 112 * 1024

	// BootHeaderSize is the size of the boot header region (8KB)
	BootHeaderSize = 8 * 1024

	// UberblockSize is the size of one uberblock ring cell (1KB)
	UberblockSize = 1024

	// UberblockCount is the number of ring cells per label.
	// Must be a power of two: ring indexing is txg & (UberblockCount-1).
	UberblockCount = (LabelSize - PadSize - PhysSize - BootHeaderSize) / UberblockSize

	// Region offsets within a label slot.
	PhysOffset       = PadSize
	BootHeaderOffset = PhysOffset + PhysSize
	UberblockBase    = BootHeaderOffset + BootHeaderSize
)

// Magic numbers and format versions.
const (
	// UberblockMagic marks a valid uberblock cell ("oo-ba-bloc").
	UberblockMagic = 0x00bab10c

	// BootMagic marks a valid boot header.
	BootMagic = 0x2f5b007b10c

	// BootVersion is the current boot header version.
	BootVersion = 1

	// PoolVersion is the current on-disk pool version.
	PoolVersion = 1
)

// Pool state values stored in the label property list.
const (
	PoolStateActive = iota
	PoolStateExported
	PoolStateDestroyed
	PoolStateSpare
	PoolStateL2Cache
	PoolStateUninitialized
)
