package session

import (
	"fmt"

	"github.com/banshee-data/marker.place/internal/ar"
)

// Event is an input to the session event loop. Runtime callbacks and UI
// commands are both events so that they share one timeline.
type Event interface {
	event()
}

// Runtime lifecycle events.
type (
	// Start runs the tracking runtime with the configured options.
	Start struct{}
	// Interrupt records that the runtime stopped delivering frames.
	Interrupt struct{}
	// Resume restarts tracking after an interruption.
	Resume struct{}
	// Fail records a runtime failure.
	Fail struct{ Err error }
)

// Runtime data events.
type (
	FrameEvent    struct{ Frame ar.Frame }
	AnchorAdded   struct{ Anchor ar.Anchor }
	AnchorUpdated struct{ Anchor ar.Anchor }
	AnchorRemoved struct{ Anchor ar.Anchor }
)

// UI commands.
type (
	// SetMode changes the interaction mode.
	SetMode struct{ Mode ar.InteractionMode }
	// ResetScene removes every placed object.
	ResetScene struct{}
	// PlaceAt asks the runtime for a generic anchor where the screen
	// point hits a plane.
	PlaceAt struct{ Point ar.ScreenPoint }
)

func (Start) event()         {}
func (Interrupt) event()     {}
func (Resume) event()        {}
func (Fail) event()          {}
func (FrameEvent) event()    {}
func (AnchorAdded) event()   {}
func (AnchorUpdated) event() {}
func (AnchorRemoved) event() {}
func (SetMode) event()       {}
func (ResetScene) event()    {}
func (PlaceAt) event()       {}

func (Start) String() string           { return "start" }
func (Interrupt) String() string       { return "interrupt" }
func (Resume) String() string          { return "resume" }
func (e Fail) String() string          { return fmt.Sprintf("fail(%v)", e.Err) }
func (e FrameEvent) String() string    { return fmt.Sprintf("frame %d", e.Frame.Seq) }
func (e AnchorAdded) String() string   { return "anchor added " + e.Anchor.String() }
func (e AnchorUpdated) String() string { return "anchor updated " + e.Anchor.String() }
func (e AnchorRemoved) String() string { return "anchor removed " + e.Anchor.String() }
func (e SetMode) String() string       { return fmt.Sprintf("set mode %v", e.Mode) }
func (ResetScene) String() string      { return "reset scene" }
func (e PlaceAt) String() string       { return fmt.Sprintf("place at (%.0f,%.0f)", e.Point.X, e.Point.Y) }
