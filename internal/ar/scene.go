package ar

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// NodeKind distinguishes the scene nodes this core creates.
type NodeKind string

const (
	NodePlane  NodeKind = "plane"  // plane visualisation
	NodeModel  NodeKind = "model"  // placed 3D model
	NodeMarker NodeKind = "marker" // holder square at a resolved marker
)

// MarkerNodeSize is the side length in metres of the marker holder node.
const MarkerNodeSize = 0.1

// Node is a renderable scene node handed to the SceneSink.
type Node struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Model string   `json:"model,omitempty"`
	Asset string   `json:"asset,omitempty"`

	// Parent is the ID of the node this one hangs under. Empty means
	// directly under the anchor's node.
	Parent string `json:"parent,omitempty"`

	// Plane geometry, set for NodePlane.
	Center r3.Vec `json:"center"`
	Extent r3.Vec `json:"extent"`

	// Size is the side length of square nodes (NodeMarker).
	Size float64 `json:"size,omitempty"`
}

// SceneSink accepts node commands from the core. Node parents are
// addressed by anchor; the renderer owns the anchor's own node.
type SceneSink interface {
	AttachNode(parent AnchorID, node *Node) error
	DetachNode(node *Node) error
	ResizePlaneNode(node *Node, center, extent r3.Vec) error
}

// ModelLoader resolves a model reference to a fresh node. Each call must
// return a new node so that placed copies are independent.
type ModelLoader interface {
	LoadModel(name string) (*Node, error)
}

// RunOptions configures a tracking runtime run.
type RunOptions struct {
	DetectPlanes  bool `json:"detect_planes"`
	EstimateLight bool `json:"estimate_light"`

	// ResetTracking restarts the world origin; RemoveExistingAnchors
	// drops every anchor from the previous run.
	ResetTracking         bool `json:"reset_tracking,omitempty"`
	RemoveExistingAnchors bool `json:"remove_existing_anchors,omitempty"`
}

// Runtime is the tracking runtime that produces frames and anchor events.
type Runtime interface {
	// Run starts or restarts tracking. An error means the device or
	// runtime refused, e.g. camera permission was denied.
	Run(opts RunOptions) error

	// Pause stops frame delivery without discarding state.
	Pause()

	// AddAnchor asks the runtime to track a new anchor. The runtime
	// reports it back through an anchor-added event.
	AddAnchor(a Anchor) error
}
