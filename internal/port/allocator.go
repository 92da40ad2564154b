package port

import (
	"sync"

	"github.com/hovel-sh/hovel/internal/model"
)

// Allocator hands out unique host ports from a bounded range.
//
// The authoritative used set lives in memory and is rebuilt at startup
// from the registry scan (via MarkUsed). All mutation goes through a
// single mutex; allocation scans upward from the base port and returns
// the first free value, so freed ports are reused deterministically —
// the lowest free port always wins.
type Allocator struct {
	mu   sync.Mutex
	used map[int]struct{}
	base int
	max  int
}

// NewAllocator creates an Allocator for the inclusive range [base, max].
func NewAllocator(base, max int) *Allocator {
	return &Allocator{
		used: make(map[int]struct{}),
		base: base,
		max:  max,
	}
}

// Allocate returns the lowest free port in the range and marks it used.
// Returns a port-exhausted error when every port is held.
func (a *Allocator) Allocate() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for p := a.base; p <= a.max; p++ {
		if _, taken := a.used[p]; !taken {
			a.used[p] = struct{}{}
			return p, nil
		}
	}
	return 0, model.Ef(model.KindPortExhausted, "no free port in range %d-%d", a.base, a.max)
}

// Release returns a port to the free pool. Releasing a port that is not
// held is a no-op: delete compensations may release more than once.
func (a *Allocator) Release(p int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.used, p)
}

// MarkUsed records a port as held without allocating it. Used at
// startup to seed the set from persisted branch records. Ports outside
// the configured range are recorded too, so a range change across
// restarts cannot double-assign a surviving branch's port.
func (a *Allocator) MarkUsed(p int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used[p] = struct{}{}
}

// InUse reports whether the port is currently held.
func (a *Allocator) InUse(p int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, taken := a.used[p]
	return taken
}

// Used returns a snapshot of all held ports.
func (a *Allocator) Used() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	ports := make([]int, 0, len(a.used))
	for p := range a.used {
		ports = append(ports, p)
	}
	return ports
}
