package scenegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/marker.place/internal/ar"
)

func TestGraph_AttachDetach(t *testing.T) {
	t.Parallel()
	g := New()
	a := &ar.Node{ID: "a", Kind: ar.NodeModel, Model: "candle"}
	b := &ar.Node{ID: "b", Kind: ar.NodeMarker}

	require.NoError(t, g.AttachNode("anchor-1", a))
	require.NoError(t, g.AttachNode("anchor-1", b))
	assert.Equal(t, 2, g.Len())
	assert.ErrorIs(t, g.AttachNode("anchor-2", a), ErrNodeAttached)

	require.NoError(t, g.DetachNode(a))
	kids := g.Children("anchor-1")
	require.Len(t, kids, 1)
	assert.Equal(t, "b", kids[0].ID)

	assert.ErrorIs(t, g.DetachNode(a), ErrNodeNotFound)
	require.NoError(t, g.DetachNode(b))
	assert.Empty(t, g.Snapshot())
}

func TestGraph_ResizePlane(t *testing.T) {
	t.Parallel()
	g := New()
	plane := &ar.Node{ID: "p", Kind: ar.NodePlane, Extent: r3.Vec{X: 1, Z: 1}}
	model := &ar.Node{ID: "m", Kind: ar.NodeModel}
	require.NoError(t, g.AttachNode("floor", plane))
	require.NoError(t, g.AttachNode("floor", model))

	require.NoError(t, g.ResizePlaneNode(plane, r3.Vec{X: 0.5}, r3.Vec{X: 2, Z: 3}))
	snap := g.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, r3.Vec{X: 2, Z: 3}, snap[0].Nodes[0].Extent)

	assert.ErrorIs(t, g.ResizePlaneNode(model, r3.Vec{}, r3.Vec{}), ErrNotPlaneNode)
	assert.ErrorIs(t, g.ResizePlaneNode(&ar.Node{ID: "ghost"}, r3.Vec{}, r3.Vec{}), ErrNodeNotFound)
}

func TestGraph_RejectsBadInput(t *testing.T) {
	t.Parallel()
	g := New()
	assert.ErrorIs(t, g.AttachNode("x", nil), ErrNilNode)
	assert.ErrorIs(t, g.AttachNode("", &ar.Node{ID: "n"}), ErrMissingParent)
	assert.ErrorIs(t, g.DetachNode(nil), ErrNilNode)
}

func TestGraph_SnapshotSorted(t *testing.T) {
	t.Parallel()
	g := New()
	require.NoError(t, g.AttachNode("b", &ar.Node{ID: "1"}))
	require.NoError(t, g.AttachNode("a", &ar.Node{ID: "2"}))

	snap := g.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, ar.AnchorID("a"), snap[0].Anchor)
	assert.Equal(t, ar.AnchorID("b"), snap[1].Anchor)
}

func TestGraph_KeepsOwnCopy(t *testing.T) {
	t.Parallel()
	g := New()
	plane := &ar.Node{ID: "p", Kind: ar.NodePlane, Extent: r3.Vec{X: 1, Z: 1}}
	require.NoError(t, g.AttachNode("floor", plane))

	plane.Extent = r3.Vec{X: 9, Z: 9}
	assert.Equal(t, r3.Vec{X: 1, Z: 1}, g.Children("floor")[0].Extent)

	require.NoError(t, g.ResizePlaneNode(plane, r3.Vec{}, r3.Vec{X: 2, Z: 2}))
	assert.Equal(t, r3.Vec{X: 2, Z: 2}, g.Children("floor")[0].Extent)
	assert.Equal(t, r3.Vec{X: 9, Z: 9}, plane.Extent, "caller's node is only a handle")
}

func TestGraph_NodeParent(t *testing.T) {
	t.Parallel()
	g := New()
	holder := &ar.Node{ID: "holder", Kind: ar.NodeMarker, Size: ar.MarkerNodeSize}
	require.NoError(t, g.AttachNode("m-1", holder))

	model := &ar.Node{ID: "model", Kind: ar.NodeModel, Parent: "holder"}
	require.NoError(t, g.AttachNode("m-1", model))

	orphan := &ar.Node{ID: "orphan", Kind: ar.NodeModel, Parent: "nope"}
	assert.ErrorIs(t, g.AttachNode("m-1", orphan), ErrMissingParent)

	wrongAnchor := &ar.Node{ID: "x", Kind: ar.NodeModel, Parent: "holder"}
	assert.ErrorIs(t, g.AttachNode("m-2", wrongAnchor), ErrMissingParent)

	snap := g.Snapshot()
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Nodes, 2)
	assert.Equal(t, "holder", snap[0].Nodes[1].Parent)
}
