// Package replay plays back a recorded tracking session from a JSON-lines
// fixture. It implements ar.Runtime so that the session controller can be
// driven end to end without a device.
package replay

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"io/fs"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/ar/session"
)

//go:embed demo.jsonl
var demoJSONL []byte

// Record types.
const (
	TypeFrame             = "frame"
	TypeAnchorAdded       = "anchor_added"
	TypeAnchorUpdated     = "anchor_updated"
	TypeAnchorRemoved     = "anchor_removed"
	TypeInterrupt         = "interrupt"
	TypeInterruptionEnded = "interruption_ended"
	TypeFail              = "fail"
)

// qrSize is the side in pixels of images synthesised from a qr field.
const qrSize = 240

// Record is one line of a fixture.
type Record struct {
	Type    string `json:"type"`
	DelayMS int    `json:"delay_ms,omitempty"`

	// Frame fields
	Seq      uint64        `json:"seq,omitempty"`
	Tracking string        `json:"tracking,omitempty"`
	Lumens   *float64      `json:"lumens,omitempty"`
	Camera   *CameraRecord `json:"camera,omitempty"`
	QR       string        `json:"qr,omitempty"`    // payload rendered to a QR image
	Image    string        `json:"image,omitempty"` // PNG path relative to the fixture

	// Anchor fields
	Anchor *AnchorRecord `json:"anchor,omitempty"`

	// Fail fields
	Error string `json:"error,omitempty"`
}

// CameraRecord is a camera pose. Orientation is w, x, y, z.
type CameraRecord struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
	Viewport    [2]float64 `json:"viewport"`
	Focal       float64    `json:"focal,omitempty"`
}

// AnchorRecord is an anchor. Kind is plane, marker or generic.
type AnchorRecord struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Payload     string     `json:"payload,omitempty"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
	Center      [3]float64 `json:"center"`
	Extent      [3]float64 `json:"extent"`
}

// Parse reads a fixture. Blank lines and lines starting with # are
// skipped.
func Parse(r io.Reader) ([]Record, error) {
	var out []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := rec.validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return out, nil
}

// Demo returns the bundled demo fixture: a floor plane, a few frames of
// limited tracking, then a target_1 marker in view.
func Demo() []Record {
	recs, err := Parse(bytes.NewReader(demoJSONL))
	if err != nil {
		panic("embedded demo fixture is invalid: " + err.Error())
	}
	return recs
}

func (r Record) validate() error {
	switch r.Type {
	case TypeFrame:
		if r.Camera == nil {
			return fmt.Errorf("frame without camera")
		}
		if _, err := parseTracking(r.Tracking); err != nil {
			return err
		}
	case TypeAnchorAdded, TypeAnchorUpdated, TypeAnchorRemoved:
		if r.Anchor == nil || r.Anchor.ID == "" {
			return fmt.Errorf("%s without anchor id", r.Type)
		}
		if _, err := r.Anchor.kind(); err != nil {
			return err
		}
	case TypeInterrupt, TypeInterruptionEnded, TypeFail:
	default:
		return fmt.Errorf("unknown record type %q", r.Type)
	}
	return nil
}

// isLifecycle reports whether the record is delivered while paused.
func (r Record) isLifecycle() bool {
	switch r.Type {
	case TypeInterrupt, TypeInterruptionEnded, TypeFail:
		return true
	default:
		return false
	}
}

// Event converts the record to a session event. Image paths resolve
// against assets, which may be nil when the fixture has none.
func (r Record) Event(assets fs.FS) (session.Event, error) {
	switch r.Type {
	case TypeFrame:
		f, err := r.frame(assets)
		if err != nil {
			return nil, err
		}
		return session.FrameEvent{Frame: f}, nil
	case TypeAnchorAdded:
		a, err := r.Anchor.anchor()
		return session.AnchorAdded{Anchor: a}, err
	case TypeAnchorUpdated:
		a, err := r.Anchor.anchor()
		return session.AnchorUpdated{Anchor: a}, err
	case TypeAnchorRemoved:
		a, err := r.Anchor.anchor()
		return session.AnchorRemoved{Anchor: a}, err
	case TypeInterrupt:
		return session.Interrupt{}, nil
	case TypeInterruptionEnded:
		return session.Resume{}, nil
	case TypeFail:
		return session.Fail{Err: fmt.Errorf("%s", r.Error)}, nil
	default:
		return nil, fmt.Errorf("unknown record type %q", r.Type)
	}
}

func (r Record) frame(assets fs.FS) (ar.Frame, error) {
	tracking, err := parseTracking(r.Tracking)
	if err != nil {
		return ar.Frame{}, err
	}
	f := ar.Frame{
		Seq: r.Seq,
		Camera: ar.Camera{
			Transform:   transform(r.Camera.Position, r.Camera.Orientation),
			FocalLength: r.Camera.Focal,
			Viewport:    ar.Viewport{Width: r.Camera.Viewport[0], Height: r.Camera.Viewport[1]},
			Tracking:    tracking,
		},
		AmbientIntensity: r.Lumens,
	}

	switch {
	case r.QR != "":
		img, err := qrcode.NewQRCodeWriter().Encode(r.QR, gozxing.BarcodeFormat_QR_CODE, qrSize, qrSize, nil)
		if err != nil {
			return ar.Frame{}, fmt.Errorf("frame %d: encode qr: %w", r.Seq, err)
		}
		f.Image = img
	case r.Image != "":
		if assets == nil {
			return ar.Frame{}, fmt.Errorf("frame %d: image %q with no asset directory", r.Seq, r.Image)
		}
		img, err := loadImage(assets, r.Image)
		if err != nil {
			return ar.Frame{}, fmt.Errorf("frame %d: %w", r.Seq, err)
		}
		f.Image = img
	}
	return f, nil
}

func loadImage(assets fs.FS, name string) (image.Image, error) {
	file, err := assets.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", name, err)
	}
	return img, nil
}

func (a *AnchorRecord) kind() (ar.AnchorKind, error) {
	switch a.Kind {
	case "plane":
		return ar.PlaneKind{Center: vec(a.Center), Extent: vec(a.Extent)}, nil
	case "marker":
		return ar.MarkerKind{Payload: a.Payload}, nil
	case "generic", "":
		return ar.GenericKind{}, nil
	default:
		return nil, fmt.Errorf("unknown anchor kind %q", a.Kind)
	}
}

func (a *AnchorRecord) anchor() (ar.Anchor, error) {
	kind, err := a.kind()
	if err != nil {
		return ar.Anchor{}, err
	}
	return ar.Anchor{
		ID:        ar.AnchorID(a.ID),
		Transform: transform(a.Position, a.Orientation),
		Kind:      kind,
	}, nil
}

func parseTracking(s string) (ar.TrackingState, error) {
	switch s {
	case "normal", "":
		return ar.Normal(), nil
	case "not_available":
		return ar.NotAvailable(), nil
	case "limited":
		return ar.Limited(ar.ReasonNone), nil
	case "limited:initializing":
		return ar.Limited(ar.ReasonInitializing), nil
	case "limited:excessive_motion":
		return ar.Limited(ar.ReasonExcessiveMotion), nil
	case "limited:insufficient_features":
		return ar.Limited(ar.ReasonInsufficientFeatures), nil
	case "limited:relocalizing":
		return ar.Limited(ar.ReasonRelocalizing), nil
	default:
		return ar.TrackingState{}, fmt.Errorf("unknown tracking state %q", s)
	}
}

func vec(v [3]float64) r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

func transform(p [3]float64, q [4]float64) ar.Transform {
	return ar.Transform{
		Position:    vec(p),
		Orientation: quat.Number{Real: q[0], Imag: q[1], Jmag: q[2], Kmag: q[3]},
	}
}
