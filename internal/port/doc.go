// Package port implements host-port allocation for branch environments.
//
// Each live branch holds exactly one port from a configured range
// (8001-8999 by default). The allocator keeps an in-memory used set
// guarded by a mutex; the set is seeded from the registry scan at
// startup, so allocations survive process restarts without any separate
// persistence. Terminal ports are derived (port + 1000) and never
// tracked separately.
package port
