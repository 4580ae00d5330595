package gcix

import (
	"sync"

	"github.com/dolthub/swiss"
)

// Roots tracks the set of mutator-registered GC root slots. The original
// keeps these in a linear List<void**>; this port replaces it with a
// swiss.Map for O(1) add/remove/contains, the same structure
// vkngwrapper-arsenal's tlsf.go uses for its own handle set
// (memutils/metadata/tlsf.go: swiss.NewMap[BlockAllocationHandle, *tlsfBlock]).
type Roots struct {
	mu   sync.RWMutex
	set  *swiss.Map[uintptr, struct{}]
}

func newRoots() *Roots {
	return &Roots{set: swiss.NewMap[uintptr, struct{}](64)}
}

// Add registers slotAddr (the address of a root pointer variable, not the
// pointer's value) as a GC root.
func (r *Roots) Add(slotAddr uintptr) {
	r.mu.Lock()
	r.set.Put(slotAddr, struct{}{})
	r.mu.Unlock()
}

// Remove unregisters a previously added root slot. Removing an address that
// was never added is a no-op.
func (r *Roots) Remove(slotAddr uintptr) {
	r.mu.Lock()
	r.set.Delete(slotAddr)
	r.mu.Unlock()
}

// Len reports the number of registered roots.
func (r *Roots) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set.Count()
}

// Each calls f once per registered root slot address. f must not call back
// into Add/Remove.
func (r *Roots) Each(f func(slotAddr uintptr)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.set.Iter(func(k uintptr, _ struct{}) (stop bool) {
		f(k)
		return false
	})
}
