package ar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func planeAnchor(id string, pos r3.Vec, extent float64) Anchor {
	return Anchor{
		ID:        AnchorID(id),
		Transform: TransformAt(pos),
		Kind:      PlaneKind{Extent: r3.Vec{X: extent, Z: extent}},
	}
}

func TestHitTestPlanes_NearestFirst(t *testing.T) {
	t.Parallel()

	ray := Ray{Origin: r3.Vec{Y: 1}, Direction: r3.Vec{Y: -1}}
	anchors := []Anchor{
		planeAnchor("floor", r3.Vec{}, 2),
		planeAnchor("table", r3.Vec{Y: 0.5}, 1),
		{ID: "tap", Transform: TransformAt(r3.Vec{Y: 0.8}), Kind: GenericKind{}},
	}

	hits := HitTestPlanes(ray, anchors)
	require.Len(t, hits, 2)
	assert.Equal(t, AnchorID("table"), hits[0].AnchorID)
	assert.InDelta(t, 0.5, hits[0].Distance, 1e-9)
	assert.InDelta(t, 0.5, hits[0].WorldTransform.Position.Y, 1e-9)
	assert.Equal(t, AnchorID("floor"), hits[1].AnchorID)
}

func TestHitTestPlanes_OutsideExtent(t *testing.T) {
	t.Parallel()

	ray := Ray{Origin: r3.Vec{X: 3, Y: 1}, Direction: r3.Vec{Y: -1}}
	hits := HitTestPlanes(ray, []Anchor{planeAnchor("floor", r3.Vec{}, 2)})
	assert.Empty(t, hits)
}

func TestHitTestPlanes_PlaneBehindRay(t *testing.T) {
	t.Parallel()

	ray := Ray{Origin: r3.Vec{Y: 1}, Direction: r3.Vec{Y: 1}}
	hits := HitTestPlanes(ray, []Anchor{planeAnchor("floor", r3.Vec{}, 2)})
	assert.Empty(t, hits)
}

func TestHitTestPlanes_ParallelRay(t *testing.T) {
	t.Parallel()

	ray := Ray{Origin: r3.Vec{Y: 1}, Direction: r3.Vec{Z: -1}}
	hits := HitTestPlanes(ray, []Anchor{planeAnchor("floor", r3.Vec{}, 2)})
	assert.Empty(t, hits)
}

func TestHitTestPlanes_RotatedPlane(t *testing.T) {
	t.Parallel()

	// Quarter turn about X stands the plane up facing +Z.
	half := math.Pi / 4
	wall := Anchor{
		ID: "wall",
		Transform: Transform{
			Position:    r3.Vec{Z: -2},
			Orientation: quat.Number{Real: math.Cos(half), Imag: math.Sin(half)},
		},
		Kind: PlaneKind{Extent: r3.Vec{X: 1, Z: 1}},
	}
	cam := Camera{
		Transform: IdentityTransform(),
		Viewport:  Viewport{Width: 200, Height: 100},
	}

	hits := HitTestPlanes(cam.OpticalRay(), []Anchor{wall})
	require.Len(t, hits, 1)
	assert.InDelta(t, 2, hits[0].Distance, 1e-9)
	assert.InDelta(t, -2, hits[0].WorldTransform.Position.Z, 1e-9)
}

func TestHitTestPlanes_CenterOffset(t *testing.T) {
	t.Parallel()

	a := Anchor{
		ID:        "offset",
		Transform: TransformAt(r3.Vec{}),
		Kind:      PlaneKind{Center: r3.Vec{X: 5}, Extent: r3.Vec{X: 1, Z: 1}},
	}
	miss := Ray{Origin: r3.Vec{Y: 1}, Direction: r3.Vec{Y: -1}}
	hit := Ray{Origin: r3.Vec{X: 5, Y: 1}, Direction: r3.Vec{Y: -1}}

	assert.Empty(t, HitTestPlanes(miss, []Anchor{a}))
	assert.Len(t, HitTestPlanes(hit, []Anchor{a}), 1)
}

func TestCamera_ScreenRay(t *testing.T) {
	t.Parallel()

	cam := Camera{
		Transform:   TransformAt(r3.Vec{Y: 1.5}),
		FocalLength: 100,
		Viewport:    Viewport{Width: 200, Height: 100},
	}

	center := cam.OpticalRay()
	assert.InDelta(t, 0, center.Direction.X, 1e-9)
	assert.InDelta(t, -1, center.Direction.Z, 1e-9)
	assert.Equal(t, r3.Vec{Y: 1.5}, center.Origin)

	right := cam.ScreenRay(ScreenPoint{X: 200, Y: 50})
	assert.InDelta(t, math.Sqrt2/2, right.Direction.X, 1e-9)
	assert.InDelta(t, -math.Sqrt2/2, right.Direction.Z, 1e-9)

	below := cam.ScreenRay(ScreenPoint{X: 100, Y: 100})
	assert.Less(t, below.Direction.Y, 0.0, "screen Y grows downwards")
}

func TestTransform_ZeroValueIsIdentity(t *testing.T) {
	t.Parallel()

	var tr Transform
	v := r3.Vec{X: 1, Y: 2, Z: 3}
	assert.Equal(t, v, tr.Rotate(v))
	assert.Equal(t, v, tr.Apply(v))
}
