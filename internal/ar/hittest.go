package ar

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// hitEpsilon rejects rays parallel to a plane and hits behind the origin.
const hitEpsilon = 1e-9

// Hit is the intersection of a ray with a plane anchor's extent.
type Hit struct {
	AnchorID AnchorID
	Distance float64

	// WorldTransform is positioned at the hit point and oriented like
	// the plane.
	WorldTransform Transform
}

// HitTestPlanes intersects ray with the extent of every plane anchor and
// returns the hits nearest first. Non-plane anchors are skipped.
func HitTestPlanes(ray Ray, anchors []Anchor) []Hit {
	var hits []Hit
	for _, a := range anchors {
		plane, ok := a.Plane()
		if !ok {
			continue
		}
		if h, ok := hitPlane(ray, a, plane); ok {
			hits = append(hits, h)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}

func hitPlane(ray Ray, a Anchor, plane PlaneKind) (Hit, bool) {
	origin := a.Transform.Apply(plane.Center)
	normal := a.Transform.Rotate(r3.Vec{Y: 1})

	denom := r3.Dot(ray.Direction, normal)
	if math.Abs(denom) < hitEpsilon {
		return Hit{}, false
	}
	t := r3.Dot(r3.Sub(origin, ray.Origin), normal) / denom
	if t < hitEpsilon {
		return Hit{}, false
	}

	point := ray.At(t)
	local := a.Transform.InverseRotate(r3.Sub(point, origin))
	if math.Abs(local.X) > plane.Extent.X/2 || math.Abs(local.Z) > plane.Extent.Z/2 {
		return Hit{}, false
	}

	return Hit{
		AnchorID: a.ID,
		Distance: t,
		WorldTransform: Transform{
			Position:    point,
			Orientation: a.Transform.orientation(),
		},
	}, true
}

// HitTester casts rays against the anchors currently tracked.
type HitTester interface {
	HitTest(ray Ray) []Hit
}
