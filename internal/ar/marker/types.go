package marker

import (
	"errors"
	"fmt"
	"image"

	"github.com/banshee-data/marker.place/internal/ar"
)

// ErrUnexpectedResult is returned when the recognizer yields a result
// kind the pipeline does not handle. The frame is skipped.
var ErrUnexpectedResult = errors.New("unexpected recognition result")

// Region is an axis-aligned box in frame pixels.
type Region struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Observation is one recognised marker in a frame.
type Observation struct {
	Payload    string
	Confidence float64
	Region     *Region
}

// Result is the closed set of recognition results: Barcode and
// Unsupported.
type Result interface {
	result()
}

// Barcode is a decoded optical marker.
type Barcode struct {
	Observation
}

// Unsupported is a result the recognizer produced but cannot express as
// a Barcode, e.g. a symbology this pipeline does not handle.
type Unsupported struct {
	Kind string
}

func (Barcode) result()     {}
func (Unsupported) result() {}

// Recognizer finds markers in a frame image.
type Recognizer interface {
	Recognize(img image.Image) ([]Result, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(img image.Image) ([]Result, error)

// Recognize calls f(img).
func (f RecognizerFunc) Recognize(img image.Image) ([]Result, error) { return f(img) }

// Found is emitted when a marker is resolved to a world anchor.
type Found struct {
	Anchor   ar.Anchor
	Payload  string
	Model    string
	HasModel bool
	FrameSeq uint64
}

func (f Found) String() string {
	if !f.HasModel {
		return fmt.Sprintf("marker %q at %s (no model)", f.Payload, f.Anchor.ID)
	}
	return fmt.Sprintf("marker %q at %s -> %s", f.Payload, f.Anchor.ID, f.Model)
}

// DefaultTable returns the fixed payload to model mapping.
func DefaultTable() map[string]string {
	return map[string]string{
		"target_1": "candle",
		"target_2": "lamp",
	}
}
