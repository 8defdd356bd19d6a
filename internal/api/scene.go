package api

import (
	"net/http"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/httputil"
)

// anchorView is the JSON form of an ar.Anchor.
type anchorView struct {
	ID          ar.AnchorID `json:"id"`
	Kind        string      `json:"kind"`
	Position    [3]float64  `json:"position"`
	Orientation [4]float64  `json:"orientation"`
	Payload     string      `json:"payload,omitempty"`
	Center      *[3]float64 `json:"center,omitempty"`
	Extent      *[3]float64 `json:"extent,omitempty"`
}

func vec(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func viewAnchor(a ar.Anchor) anchorView {
	q := a.Transform.Orientation
	v := anchorView{
		ID:          a.ID,
		Kind:        "generic",
		Position:    vec(a.Transform.Position),
		Orientation: [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
	}
	switch k := a.Kind.(type) {
	case ar.PlaneKind:
		c, e := vec(k.Center), vec(k.Extent)
		v.Kind, v.Center, v.Extent = k.String(), &c, &e
	case ar.MarkerKind:
		v.Kind, v.Payload = k.String(), k.Payload
	case ar.GenericKind:
	}
	return v
}

func (s *Server) listPlaced(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.ctrl.Placed())
}

func (s *Server) listAnchors(w http.ResponseWriter, r *http.Request) {
	anchors := s.ctrl.Anchors()
	out := make([]anchorView, 0, len(anchors))
	for _, a := range anchors {
		out = append(out, viewAnchor(a))
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) showScene(w http.ResponseWriter, r *http.Request) {
	if s.scene == nil {
		httputil.ServiceUnavailable(w, "scene graph not attached")
		return
	}
	httputil.WriteJSONOK(w, s.scene.Snapshot())
}
