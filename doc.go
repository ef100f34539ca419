// Package zlabel implements the on-disk label and uberblock subsystem of a
// copy-on-write storage pool: stamping each leaf device with self-describing
// metadata, discovering the freshest committed pool state after an arbitrary
// crash, and advancing that state atomically across all devices each
// transaction group.
//
// Every leaf carries four labels, two at the front of the device and two at
// the tail, so that a single torn write or trashed region never removes the
// last copy of the pool config. Each label holds a checksummed property list
// describing the pool and the leaf's top-level vdev, a boot header, and a
// ring of uberblock cells indexed by txg. Commits advance the pool with a
// two-phase label write around the uberblock update:
//
//  1. write the even labels (slots 0 and 2) with the new config
//  2. flush, then write the new uberblock into every ring
//  3. flush, then write the odd labels (slots 1 and 3)
//
// A crash between any two steps leaves either the previous uberblock with
// valid odd labels, or the new uberblock with valid even labels. Competing
// uberblocks are totally ordered by (txg, timestamp); pool open scans every
// cell of every label of every leaf and takes the maximum.
package zlabel
