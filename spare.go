package zlabel

import "sync"

// Hot spares are legitimately shared across pools, so the spare set and the
// set of open pools are process-wide. Lifetime is tied to pool open/close
// via RegisterPool/DeregisterPool; the in-use probe consults this registry
// to tell a shared spare from a stolen device.
var registry = struct {
	mu     sync.Mutex
	pools  map[uint64]*Pool
	spares map[uint64]uint64 // spare guid -> pool actively using it (0 = inactive)
}{
	pools:  make(map[uint64]*Pool),
	spares: make(map[uint64]uint64),
}

// RegisterPool makes p visible to cross-pool guid and spare checks.
func RegisterPool(p *Pool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.pools[p.Guid] = p
}

// DeregisterPool removes p from the registry at pool close.
func DeregisterPool(p *Pool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.pools, p.Guid)
}

// guidExists reports whether some open pool has the given pool guid and
// contains a vdev with the given device guid.
func guidExists(poolGuid, deviceGuid uint64) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	p, ok := registry.pools[poolGuid]
	if !ok || p.Root == nil {
		return false
	}
	return deviceGuid == poolGuid || p.Root.lookupGuid(deviceGuid) != nil
}

// spareExists reports whether guid is in the global spare set, and if so
// which pool (if any) holds it active.
func spareExists(guid uint64) (sparePool uint64, ok bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	sparePool, ok = registry.spares[guid]
	return sparePool, ok
}

// spareAdd records guid in the global spare set. Idempotent; never
// downgrades an active entry.
func spareAdd(guid uint64) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.spares[guid]; !ok {
		registry.spares[guid] = 0
	}
}

// SpareActivate marks guid as actively replacing a device in poolGuid;
// SpareRelease reverts it to shared-inactive.
func SpareActivate(guid, poolGuid uint64) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.spares[guid] = poolGuid
}

// SpareRelease returns an active spare to the shared pool-less state.
func SpareRelease(guid uint64) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.spares[guid]; ok {
		registry.spares[guid] = 0
	}
}

// SpareRemove drops guid from the global spare set entirely.
func SpareRemove(guid uint64) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.spares, guid)
}

// resetRegistry clears all process-wide state; tests use it between cases.
func resetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.pools = make(map[uint64]*Pool)
	registry.spares = make(map[uint64]uint64)
}
