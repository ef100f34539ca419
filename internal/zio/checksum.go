package zio

import (
	"encoding/binary"

	"github.com/OneOfOne/xxhash"
)

// Every label region (phys, boot header, uberblock cell) ends in a fixed
// trailer so a torn or stale write is detected on read. The digest covers
// the whole region except the digest field itself, so the magic, payload
// size and padding are all authenticated.
//
//	| payload | zero padding | magic u64 | size u64 | reserved u64 | digest u64 |

// checksum64 is the region digest function.
func checksum64(b []byte) uint64 { return xxhash.Checksum64(b) }

const (
	// TrailerSize is the number of bytes reserved at the end of every
	// checksummed region.
	TrailerSize = 32

	trailerMagic = 0x210da7ab10c
)

// checksumError is reported through IO.Err when a region fails verification.
type checksumError struct{ reason string }

func (e *checksumError) Error() string { return "zio: checksum: " + e.reason }

var (
	errBadTrailerMagic = &checksumError{"bad trailer magic"}
	errBadDigest       = &checksumError{"digest mismatch"}
	errBadPayloadSize  = &checksumError{"payload size out of range"}
)

// IsChecksumError reports whether err is a region verification failure,
// as opposed to a transport error.
func IsChecksumError(err error) bool {
	_, ok := err.(*checksumError)
	return ok
}

// sealRegion writes the trailer into a fully assembled region buffer.
// payloadLen is the number of meaningful bytes at the front of the region.
func sealRegion(region []byte, payloadLen int) {
	tr := region[len(region)-TrailerSize:]
	binary.LittleEndian.PutUint64(tr[0:8], trailerMagic)
	binary.LittleEndian.PutUint64(tr[8:16], uint64(payloadLen))
	binary.LittleEndian.PutUint64(tr[16:24], 0)
	digest := checksum64(region[:len(region)-8])
	binary.LittleEndian.PutUint64(tr[24:32], digest)
}

// openRegion verifies a region read back from disk and returns its payload.
func openRegion(region []byte) ([]byte, error) {
	tr := region[len(region)-TrailerSize:]
	if binary.LittleEndian.Uint64(tr[0:8]) != trailerMagic {
		return nil, errBadTrailerMagic
	}
	want := binary.LittleEndian.Uint64(tr[24:32])
	if checksum64(region[:len(region)-8]) != want {
		return nil, errBadDigest
	}
	size := binary.LittleEndian.Uint64(tr[8:16])
	if size > uint64(len(region)-TrailerSize) {
		return nil, errBadPayloadSize
	}
	return region[:size], nil
}
