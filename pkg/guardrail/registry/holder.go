package registry

import "sync/atomic"

// Holder publishes the active registry. Readers take a snapshot with Current and keep
// using it for the whole check; Swap replaces the table for subsequent readers only.
type Holder struct {
	current atomic.Pointer[Registry]
}

// NewHolder returns a holder publishing initial, which may be nil.
func NewHolder(initial *Registry) *Holder {
	h := &Holder{}
	if initial != nil {
		h.current.Store(initial)
	}
	return h
}

// Current returns the active registry, or nil before the first successful load.
func (h *Holder) Current() *Registry {
	return h.current.Load()
}

// Swap publishes next and returns the registry it replaced.
func (h *Holder) Swap(next *Registry) *Registry {
	return h.current.Swap(next)
}

// Ready reports whether a registry has been published.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}
