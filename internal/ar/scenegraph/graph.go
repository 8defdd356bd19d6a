// Package scenegraph is an in-memory scene graph implementing
// ar.SceneSink. It stands in for the renderer in dev mode and tests and
// exposes a snapshot for the HTTP API.
package scenegraph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/marker.place/internal/ar"
)

var (
	ErrNilNode       = errors.New("nil node")
	ErrNodeAttached  = errors.New("node already attached")
	ErrNodeNotFound  = errors.New("node not attached")
	ErrNotPlaneNode  = errors.New("node is not a plane node")
	ErrMissingParent = errors.New("missing parent anchor")
)

// Graph is safe for concurrent use. It stores its own copy of every
// attached node; callers keep their *ar.Node only as a handle.
type Graph struct {
	mu       sync.RWMutex
	children map[ar.AnchorID][]*ar.Node
	parent   map[string]ar.AnchorID
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		children: make(map[ar.AnchorID][]*ar.Node),
		parent:   make(map[string]ar.AnchorID),
	}
}

// AttachNode adds node under the anchor's node, or under node.Parent when
// set. A parent node must already be attached to the same anchor.
func (g *Graph) AttachNode(parent ar.AnchorID, node *ar.Node) error {
	if node == nil {
		return ErrNilNode
	}
	if parent == "" {
		return fmt.Errorf("attach %s: %w", node.ID, ErrMissingParent)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.parent[node.ID]; ok {
		return fmt.Errorf("attach %s: %w", node.ID, ErrNodeAttached)
	}
	if node.Parent != "" {
		if owner, ok := g.parent[node.Parent]; !ok || owner != parent {
			return fmt.Errorf("attach %s under node %s: %w", node.ID, node.Parent, ErrMissingParent)
		}
	}
	cp := *node
	g.parent[node.ID] = parent
	g.children[parent] = append(g.children[parent], &cp)
	return nil
}

// DetachNode removes node from its parent. Nodes parented to it stay
// attached; callers detach them first.
func (g *Graph) DetachNode(node *ar.Node) error {
	if node == nil {
		return ErrNilNode
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	parent, ok := g.parent[node.ID]
	if !ok {
		return fmt.Errorf("detach %s: %w", node.ID, ErrNodeNotFound)
	}
	delete(g.parent, node.ID)
	kids := g.children[parent]
	for i, n := range kids {
		if n.ID == node.ID {
			kids = append(kids[:i], kids[i+1:]...)
			break
		}
	}
	if len(kids) == 0 {
		delete(g.children, parent)
	} else {
		g.children[parent] = kids
	}
	return nil
}

// ResizePlaneNode updates a plane node's geometry.
func (g *Graph) ResizePlaneNode(node *ar.Node, center, extent r3.Vec) error {
	if node == nil {
		return ErrNilNode
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	parent, ok := g.parent[node.ID]
	if !ok {
		return fmt.Errorf("resize %s: %w", node.ID, ErrNodeNotFound)
	}
	for _, n := range g.children[parent] {
		if n.ID != node.ID {
			continue
		}
		if n.Kind != ar.NodePlane {
			return fmt.Errorf("resize %s: %w", node.ID, ErrNotPlaneNode)
		}
		n.Center = center
		n.Extent = extent
		return nil
	}
	return fmt.Errorf("resize %s: %w", node.ID, ErrNodeNotFound)
}

// Len returns the number of attached nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.parent)
}

// Children returns copies of the nodes under an anchor, including nodes
// parented to another node of that anchor.
func (g *Graph) Children(parent ar.AnchorID) []ar.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ar.Node, 0, len(g.children[parent]))
	for _, n := range g.children[parent] {
		out = append(out, *n)
	}
	return out
}

// AnchorNodes is one anchor and the nodes attached under it.
type AnchorNodes struct {
	Anchor ar.AnchorID `json:"anchor"`
	Nodes  []ar.Node   `json:"nodes"`
}

// Snapshot returns every anchor with attached nodes, sorted by anchor ID.
func (g *Graph) Snapshot() []AnchorNodes {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]AnchorNodes, 0, len(g.children))
	for id, kids := range g.children {
		entry := AnchorNodes{Anchor: id, Nodes: make([]ar.Node, 0, len(kids))}
		for _, n := range kids {
			entry.Nodes = append(entry.Nodes, *n)
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Anchor < out[j].Anchor })
	return out
}
