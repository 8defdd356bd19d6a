package ar

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AnchorID identifies an anchor for the lifetime of a tracking session.
type AnchorID string

// Transform is a rigid world transform: a position and a unit
// orientation quaternion.
type Transform struct {
	Position    r3.Vec
	Orientation quat.Number
}

// IdentityTransform returns a transform at the origin with no rotation.
func IdentityTransform() Transform {
	return Transform{Orientation: quat.Number{Real: 1}}
}

// TransformAt returns an unrotated transform at p.
func TransformAt(p r3.Vec) Transform {
	return Transform{Position: p, Orientation: quat.Number{Real: 1}}
}

// Rotate applies the transform's orientation to v.
func (t Transform) Rotate(v r3.Vec) r3.Vec {
	return rotate(t.orientation(), v)
}

// InverseRotate rotates v by the inverse of the transform's orientation.
func (t Transform) InverseRotate(v r3.Vec) r3.Vec {
	return rotate(quat.Conj(t.orientation()), v)
}

// Apply maps a point from the transform's local frame into world space.
func (t Transform) Apply(local r3.Vec) r3.Vec {
	return r3.Add(t.Position, t.Rotate(local))
}

// orientation treats the zero quaternion as identity so that zero-value
// transforms behave.
func (t Transform) orientation() quat.Number {
	if t.Orientation == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return t.Orientation
}

func rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// AnchorKind is the closed set of anchor kinds: PlaneKind, MarkerKind and
// GenericKind.
type AnchorKind interface {
	anchorKind()
	String() string
}

// PlaneKind is a detected planar surface. Center is the plane's centre
// offset in the anchor's local frame; Extent holds the width (X) and
// length (Z) of the plane, Y is unused.
type PlaneKind struct {
	Center r3.Vec
	Extent r3.Vec
}

// MarkerKind is an anchor created from a resolved optical marker.
type MarkerKind struct {
	Payload string
}

// GenericKind is a plain positional anchor, e.g. from a user tap.
type GenericKind struct{}

func (PlaneKind) anchorKind()   {}
func (MarkerKind) anchorKind()  {}
func (GenericKind) anchorKind() {}

func (PlaneKind) String() string   { return "plane" }
func (MarkerKind) String() string  { return "marker" }
func (GenericKind) String() string { return "generic" }

// Anchor is a fixed point or surface in tracked space.
type Anchor struct {
	ID        AnchorID
	Transform Transform
	Kind      AnchorKind
}

// IsPlane reports whether the anchor is a plane anchor.
func (a Anchor) IsPlane() bool {
	_, ok := a.Kind.(PlaneKind)
	return ok
}

// Plane returns the plane geometry of a plane anchor.
func (a Anchor) Plane() (PlaneKind, bool) {
	p, ok := a.Kind.(PlaneKind)
	return p, ok
}

func (a Anchor) String() string {
	kind := "generic"
	if a.Kind != nil {
		kind = a.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", kind, a.ID)
}
