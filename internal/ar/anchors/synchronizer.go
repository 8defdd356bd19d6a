// Package anchors mirrors the tracking runtime's anchor events into scene
// graph node commands and keeps the registry of tracked anchors.
package anchors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/monitoring"
)

var (
	// ErrNoPlaneNode is returned when a plane update arrives for an
	// anchor whose visualisation node does not exist.
	ErrNoPlaneNode = errors.New("no plane node for anchor")
	// ErrUnknownAnchor is returned for update or remove events with no
	// prior add.
	ErrUnknownAnchor = errors.New("unknown anchor")
)

// Placer receives non-plane anchor additions.
type Placer interface {
	OnAnchorAdded(a ar.Anchor) error
}

// Synchronizer keeps scene nodes in step with anchors. Not safe for
// concurrent use.
type Synchronizer struct {
	sink     ar.SceneSink
	placer   Placer
	debugViz bool

	registry *Registry

	// children holds the nodes this synchronizer attached under each
	// anchor. For plane anchors the visualisation node is children[id][0].
	children map[ar.AnchorID][]*ar.Node
}

// NewSynchronizer creates a Synchronizer. Plane visualisation nodes are
// only created when debugViz is set.
func NewSynchronizer(sink ar.SceneSink, placer Placer, debugViz bool) *Synchronizer {
	return &Synchronizer{
		sink:     sink,
		placer:   placer,
		debugViz: debugViz,
		registry: NewRegistry(),
		children: make(map[ar.AnchorID][]*ar.Node),
	}
}

// Registry returns the anchor registry.
func (s *Synchronizer) Registry() *Registry { return s.registry }

// PlaneNode returns the handle of a plane anchor's visualisation node.
// The sink owns its current geometry.
func (s *Synchronizer) PlaneNode(id ar.AnchorID) (*ar.Node, bool) {
	for _, n := range s.children[id] {
		if n.Kind == ar.NodePlane {
			return n, true
		}
	}
	return nil, false
}

// NodeCount returns the number of nodes the synchronizer has attached.
func (s *Synchronizer) NodeCount() int {
	n := 0
	for _, nodes := range s.children {
		n += len(nodes)
	}
	return n
}

// OnAnchorAdded records the anchor. Plane anchors get a visualisation
// node; every other kind is handed to the Placer.
func (s *Synchronizer) OnAnchorAdded(a ar.Anchor) error {
	if !s.registry.Put(a) {
		monitoring.Opsf("anchor %s added twice, treating as update", a)
	}

	switch kind := a.Kind.(type) {
	case ar.PlaneKind:
		if !s.debugViz {
			return nil
		}
		if _, exists := s.PlaneNode(a.ID); exists {
			return nil
		}
		node := &ar.Node{
			ID:     uuid.NewString(),
			Kind:   ar.NodePlane,
			Center: kind.Center,
			Extent: kind.Extent,
		}
		if err := s.sink.AttachNode(a.ID, node); err != nil {
			return fmt.Errorf("attach plane node for %s: %w", a, err)
		}
		s.children[a.ID] = append(s.children[a.ID], node)
		monitoring.Tracef("plane %s visualised %.2fx%.2f", a.ID, kind.Extent.X, kind.Extent.Z)
		return nil
	case ar.MarkerKind, ar.GenericKind:
		if s.placer == nil {
			return nil
		}
		return s.placer.OnAnchorAdded(a)
	default:
		return fmt.Errorf("anchor %s: unsupported kind %T", a.ID, a.Kind)
	}
}

// OnAnchorUpdated refreshes the anchor and resizes a plane's
// visualisation node in place. It never creates a node.
func (s *Synchronizer) OnAnchorUpdated(a ar.Anchor) error {
	if _, known := s.registry.Get(a.ID); !known {
		return fmt.Errorf("update %s: %w", a, ErrUnknownAnchor)
	}
	s.registry.Put(a)

	plane, ok := a.Plane()
	if !ok || !s.debugViz {
		return nil
	}
	node, ok := s.PlaneNode(a.ID)
	if !ok {
		return fmt.Errorf("update %s: %w", a, ErrNoPlaneNode)
	}
	if err := s.sink.ResizePlaneNode(node, plane.Center, plane.Extent); err != nil {
		return fmt.Errorf("resize plane node for %s: %w", a, err)
	}
	return nil
}

// OnAnchorRemoved detaches every node under a removed plane anchor.
// Non-plane anchors are never removed by the runtime and are ignored.
func (s *Synchronizer) OnAnchorRemoved(a ar.Anchor) error {
	if !a.IsPlane() {
		return nil
	}
	if !s.registry.Delete(a.ID) {
		return fmt.Errorf("remove %s: %w", a, ErrUnknownAnchor)
	}
	return s.detachChildren(a.ID)
}

// AttachMarker records a pipeline-created marker anchor and attaches its
// holder node, which it returns so a model can be parented to it.
func (s *Synchronizer) AttachMarker(a ar.Anchor) (*ar.Node, error) {
	if _, ok := a.Kind.(ar.MarkerKind); !ok {
		return nil, fmt.Errorf("attach marker: anchor %s is %s", a.ID, a.Kind)
	}
	s.registry.Put(a)
	node := &ar.Node{
		ID:   uuid.NewString(),
		Kind: ar.NodeMarker,
		Size: ar.MarkerNodeSize,
	}
	if err := s.sink.AttachNode(a.ID, node); err != nil {
		return nil, fmt.Errorf("attach marker node for %s: %w", a, err)
	}
	s.children[a.ID] = append(s.children[a.ID], node)
	return node, nil
}

// Reset detaches every node the synchronizer owns and forgets every
// anchor. Used when tracking restarts.
func (s *Synchronizer) Reset() error {
	var errs []error
	for id := range s.children {
		if err := s.detachChildren(id); err != nil {
			errs = append(errs, err)
		}
	}
	s.registry.Clear()
	return errors.Join(errs...)
}

func (s *Synchronizer) detachChildren(id ar.AnchorID) error {
	var errs []error
	for _, n := range s.children[id] {
		if err := s.sink.DetachNode(n); err != nil {
			errs = append(errs, fmt.Errorf("detach node %s: %w", n.ID, err))
		}
	}
	delete(s.children, id)
	return errors.Join(errs...)
}
