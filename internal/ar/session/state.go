package session

import (
	"time"

	"github.com/banshee-data/marker.place/internal/ar"
)

// Phase is the lifecycle phase of a tracking session.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInitializing
	PhaseTracking
	PhaseLimited
	PhaseInterrupted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseInitializing:
		return "initializing"
	case PhaseTracking:
		return "tracking"
	case PhaseLimited:
		return "limited"
	case PhaseInterrupted:
		return "interrupted"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// acceptsFrames reports whether frames are processed in this phase.
func (p Phase) acceptsFrames() bool {
	switch p {
	case PhaseInitializing, PhaseTracking, PhaseLimited:
		return true
	default:
		return false
	}
}

// State is a snapshot of the tracking session.
type State struct {
	ID        string           `json:"id,omitempty"`
	Phase     Phase            `json:"-"`
	PhaseName string           `json:"phase"`
	Reason    ar.LimitedReason `json:"-"`
	Error     string           `json:"error,omitempty"`
	Options   ar.RunOptions    `json:"options"`
	StartedAt time.Time        `json:"started_at,omitzero"`
	Latched   bool             `json:"marker_latched"`
	Mode      string           `json:"mode"`
}

// Label renders the phase with its limited reason, e.g. "limited:excessive motion".
func (s State) Label() string {
	if s.Phase == PhaseLimited && s.Reason != ar.ReasonNone {
		return s.Phase.String() + ":" + s.Reason.String()
	}
	return s.Phase.String()
}

// phaseFor maps the camera tracking state carried on a frame to a phase.
// Only called while the session accepts frames.
func phaseFor(t ar.TrackingState) (Phase, ar.LimitedReason) {
	switch t.Status {
	case ar.TrackingNormal:
		return PhaseTracking, ar.ReasonNone
	case ar.TrackingLimited:
		if t.Reason == ar.ReasonInitializing {
			return PhaseInitializing, ar.ReasonNone
		}
		return PhaseLimited, t.Reason
	default:
		return PhaseInitializing, ar.ReasonNone
	}
}
