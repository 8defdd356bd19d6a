package ar

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMode is returned by ParseMode for unrecognised mode text.
var ErrInvalidMode = errors.New("invalid interaction mode")

// InteractionMode is the closed set of UI interaction modes: Idle,
// PlaceObject and Measure.
type InteractionMode interface {
	interactionMode()
	String() string
}

// Idle places nothing on anchor additions.
type Idle struct{}

// PlaceObject spawns a copy of Model on every non-plane anchor added.
type PlaceObject struct {
	Model string
}

// Measure is reserved for distance measurement and places nothing.
type Measure struct{}

func (Idle) interactionMode()        {}
func (PlaceObject) interactionMode() {}
func (Measure) interactionMode()     {}

func (Idle) String() string          { return "idle" }
func (m PlaceObject) String() string { return "place:" + m.Model }
func (Measure) String() string       { return "measure" }

// ParseMode parses "idle", "measure" or "place:<model>".
func ParseMode(s string) (InteractionMode, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "idle" || s == "none" || s == "":
		return Idle{}, nil
	case s == "measure":
		return Measure{}, nil
	case strings.HasPrefix(s, "place:"):
		model := strings.TrimSpace(strings.TrimPrefix(s, "place:"))
		if model == "" {
			return nil, fmt.Errorf("%w: place mode needs a model name", ErrInvalidMode)
		}
		return PlaceObject{Model: model}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}
