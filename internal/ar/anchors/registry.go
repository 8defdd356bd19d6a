package anchors

import (
	"slices"

	"github.com/banshee-data/marker.place/internal/ar"
)

// Registry is the set of anchors currently tracked, in insertion order.
// It answers hit tests against the plane anchors it holds.
type Registry struct {
	order   []ar.AnchorID
	anchors map[ar.AnchorID]ar.Anchor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{anchors: make(map[ar.AnchorID]ar.Anchor)}
}

// Put inserts or replaces an anchor. It reports whether the anchor was
// new.
func (r *Registry) Put(a ar.Anchor) bool {
	_, exists := r.anchors[a.ID]
	r.anchors[a.ID] = a
	if !exists {
		r.order = append(r.order, a.ID)
	}
	return !exists
}

// Get returns the anchor with the given ID.
func (r *Registry) Get(id ar.AnchorID) (ar.Anchor, bool) {
	a, ok := r.anchors[id]
	return a, ok
}

// Delete removes an anchor. It reports whether it was present.
func (r *Registry) Delete(id ar.AnchorID) bool {
	if _, ok := r.anchors[id]; !ok {
		return false
	}
	delete(r.anchors, id)
	r.order = slices.DeleteFunc(r.order, func(x ar.AnchorID) bool { return x == id })
	return true
}

// Len returns the number of anchors.
func (r *Registry) Len() int { return len(r.order) }

// All returns the anchors in insertion order.
func (r *Registry) All() []ar.Anchor {
	out := make([]ar.Anchor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.anchors[id])
	}
	return out
}

// Clear removes every anchor.
func (r *Registry) Clear() {
	r.order = nil
	clear(r.anchors)
}

// HitTest casts ray against the plane anchors, nearest hit first.
func (r *Registry) HitTest(ray ar.Ray) []ar.Hit {
	return ar.HitTestPlanes(ray, r.All())
}
