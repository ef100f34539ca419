package zlabel

import "github.com/ehrlich-b/go-zlabel/internal/constants"

// Re-export on-disk format constants for public API
const (
	LabelSize        = constants.LabelSize
	VdevLabels       = constants.VdevLabels
	PhysSize         = constants.PhysSize
	PhysOffset       = constants.PhysOffset
	BootHeaderSize   = constants.BootHeaderSize
	BootHeaderOffset = constants.BootHeaderOffset
	UberblockSize    = constants.UberblockSize
	UberblockCount   = constants.UberblockCount
	UberblockBase    = constants.UberblockBase
	UberblockMagic   = constants.UberblockMagic
	BootMagic        = constants.BootMagic
	BootVersion      = constants.BootVersion
	PoolVersion      = constants.PoolVersion
)

// PoolState is the lifecycle state recorded in every label.
type PoolState uint64

const (
	PoolStateActive        PoolState = constants.PoolStateActive
	PoolStateExported      PoolState = constants.PoolStateExported
	PoolStateDestroyed     PoolState = constants.PoolStateDestroyed
	PoolStateSpare         PoolState = constants.PoolStateSpare
	PoolStateL2Cache       PoolState = constants.PoolStateL2Cache
	PoolStateUninitialized PoolState = constants.PoolStateUninitialized
)
