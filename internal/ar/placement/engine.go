// Package placement owns the interaction mode and the objects placed in
// the scene.
package placement

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/marker.place/internal/ar"
	"github.com/banshee-data/marker.place/internal/monitoring"
	"github.com/banshee-data/marker.place/internal/timeutil"
)

// Source records what triggered a placement.
type Source string

const (
	SourceMode   Source = "mode"   // PlaceObject mode and an anchor addition
	SourceMarker Source = "marker" // a resolved optical marker
)

// PlacedObject is a model spawned on an anchor.
type PlacedObject struct {
	ID       string      `json:"id"`
	AnchorID ar.AnchorID `json:"anchor_id"`
	Model    string      `json:"model"`
	Node     *ar.Node    `json:"node"`
	Source   Source      `json:"source"`
	PlacedAt time.Time   `json:"placed_at"`
}

// Engine is not safe for concurrent use; the session event loop owns it.
type Engine struct {
	sink   ar.SceneSink
	loader ar.ModelLoader
	clock  timeutil.Clock

	mode   ar.InteractionMode
	placed []PlacedObject

	// OnPlaced, when set, is called after every successful placement.
	OnPlaced func(PlacedObject)
}

// NewEngine creates an Engine in Idle mode.
func NewEngine(sink ar.SceneSink, loader ar.ModelLoader, clock timeutil.Clock) *Engine {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Engine{
		sink:   sink,
		loader: loader,
		clock:  clock,
		mode:   ar.Idle{},
	}
}

// Mode returns the current interaction mode.
func (e *Engine) Mode() ar.InteractionMode { return e.mode }

// SetMode changes the interaction mode. Objects already placed are not
// affected.
func (e *Engine) SetMode(m ar.InteractionMode) {
	if m == nil {
		m = ar.Idle{}
	}
	monitoring.Diagf("interaction mode %s -> %s", e.mode, m)
	e.mode = m
}

// OnAnchorAdded places the current mode's model on a non-plane anchor.
// Idle and Measure place nothing.
func (e *Engine) OnAnchorAdded(a ar.Anchor) error {
	if a.IsPlane() {
		return nil
	}
	switch m := e.mode.(type) {
	case ar.Idle, ar.Measure:
		return nil
	case ar.PlaceObject:
		_, err := e.place(a, m.Model, SourceMode, "")
		return err
	default:
		return fmt.Errorf("unhandled interaction mode %T", m)
	}
}

// PlaceMarkerModel spawns model as a child of the marker's holder node
// regardless of the interaction mode. A nil holder attaches the model
// directly under the anchor.
func (e *Engine) PlaceMarkerModel(a ar.Anchor, holder *ar.Node, model string) (PlacedObject, error) {
	parent := ""
	if holder != nil {
		parent = holder.ID
	}
	return e.place(a, model, SourceMarker, parent)
}

func (e *Engine) place(a ar.Anchor, model string, src Source, parent string) (PlacedObject, error) {
	node, err := e.loader.LoadModel(model)
	if err != nil {
		return PlacedObject{}, fmt.Errorf("place %q on %s: %w", model, a, err)
	}
	node.Parent = parent
	if err := e.sink.AttachNode(a.ID, node); err != nil {
		return PlacedObject{}, fmt.Errorf("attach %q to %s: %w", model, a, err)
	}

	obj := PlacedObject{
		ID:       uuid.NewString(),
		AnchorID: a.ID,
		Model:    model,
		Node:     node,
		Source:   src,
		PlacedAt: e.clock.Now(),
	}
	e.placed = append(e.placed, obj)
	monitoring.Diagf("placed %s on %s (%s)", model, a, src)

	if e.OnPlaced != nil {
		e.OnPlaced(obj)
	}
	return obj, nil
}

// Reset detaches every placed object and empties the list. It does not
// change the mode. Calling it again is a no-op.
func (e *Engine) Reset() error {
	var errs []error
	for _, obj := range e.placed {
		if err := e.sink.DetachNode(obj.Node); err != nil {
			errs = append(errs, fmt.Errorf("detach %s: %w", obj.ID, err))
		}
	}
	if n := len(e.placed); n > 0 {
		monitoring.Diagf("removed %d placed objects", n)
	}
	e.placed = nil
	return errors.Join(errs...)
}

// Len returns the number of placed objects.
func (e *Engine) Len() int { return len(e.placed) }

// Placed returns a copy of the placed objects in placement order.
func (e *Engine) Placed() []PlacedObject {
	out := make([]PlacedObject, len(e.placed))
	copy(out, e.placed)
	return out
}
