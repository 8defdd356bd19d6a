package marker

import (
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/monitoring"
)

// Pipeline processes frames until the first marker resolves.
type Pipeline struct {
	recognizer Recognizer
	table      map[string]string
	latched    bool

	// NewAnchorID generates marker anchor IDs. Tests may replace it.
	NewAnchorID func() ar.AnchorID
}

// NewPipeline creates a Pipeline. A nil table uses DefaultTable.
func NewPipeline(r Recognizer, table map[string]string) *Pipeline {
	if table == nil {
		table = DefaultTable()
	}
	return &Pipeline{
		recognizer:  r,
		table:       maps.Clone(table),
		NewAnchorID: func() ar.AnchorID { return ar.AnchorID("marker-" + uuid.NewString()) },
	}
}

// Latched reports whether a marker has been resolved this session.
func (p *Pipeline) Latched() bool { return p.latched }

// Reset clears the detection latch.
func (p *Pipeline) Reset() { p.latched = false }

// ModelFor returns the model mapped to payload.
func (p *Pipeline) ModelFor(payload string) (string, bool) {
	m, ok := p.table[payload]
	return m, ok
}

// ProcessFrame runs recognition on frame and resolves the first marker
// whose optical-centre ray hits a plane. It returns nil when latched,
// when nothing was recognised or when nothing hit. A recognizer failure
// or an unexpected result kind skips the frame and is returned as an
// error; the latch is untouched.
func (p *Pipeline) ProcessFrame(frame ar.Frame, hits ar.HitTester) (*Found, error) {
	if p.latched {
		return nil, nil
	}
	if frame.Image == nil {
		monitoring.Tracef("frame %d has no image, skipping recognition", frame.Seq)
		return nil, nil
	}

	results, err := p.recognizer.Recognize(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("recognize frame %d: %w", frame.Seq, err)
	}

	barcodes := make([]Barcode, 0, len(results))
	for _, r := range results {
		switch r := r.(type) {
		case Barcode:
			barcodes = append(barcodes, r)
		case Unsupported:
			return nil, fmt.Errorf("frame %d: %w: %s", frame.Seq, ErrUnexpectedResult, r.Kind)
		default:
			return nil, fmt.Errorf("frame %d: %w: %T", frame.Seq, ErrUnexpectedResult, r)
		}
	}
	if len(barcodes) == 0 {
		return nil, nil
	}

	ray := frame.Camera.OpticalRay()
	for _, b := range barcodes {
		if b.Payload == "" {
			continue
		}
		monitoring.Tracef("frame %d: barcode %q (confidence %.2f)", frame.Seq, b.Payload, b.Confidence)

		planeHits := hits.HitTest(ray)
		if len(planeHits) == 0 {
			continue
		}
		hit := planeHits[0]

		found := &Found{
			Anchor: ar.Anchor{
				ID:        p.NewAnchorID(),
				Transform: hit.WorldTransform,
				Kind:      ar.MarkerKind{Payload: b.Payload},
			},
			Payload:  b.Payload,
			FrameSeq: frame.Seq,
		}
		found.Model, found.HasModel = p.table[b.Payload]
		p.latched = true

		monitoring.Diagf("resolved %s on plane %s at %.2fm", found, hit.AnchorID, hit.Distance)
		return found, nil
	}
	return nil, nil
}
