package ar

// TrackingStatus is the coarse camera tracking status reported on every
// frame.
type TrackingStatus int

const (
	TrackingNotAvailable TrackingStatus = iota
	TrackingNormal
	TrackingLimited
)

// LimitedReason qualifies a TrackingLimited status.
type LimitedReason int

const (
	ReasonNone LimitedReason = iota
	ReasonInitializing
	ReasonExcessiveMotion
	ReasonInsufficientFeatures
	ReasonRelocalizing
)

func (r LimitedReason) String() string {
	switch r {
	case ReasonInitializing:
		return "initializing"
	case ReasonExcessiveMotion:
		return "excessive motion"
	case ReasonInsufficientFeatures:
		return "insufficient features"
	case ReasonRelocalizing:
		return "relocalizing"
	default:
		return "none"
	}
}

// TrackingState is the camera tracking state of one frame.
type TrackingState struct {
	Status TrackingStatus
	Reason LimitedReason
}

// Normal is the TrackingState of a frame with full tracking.
func Normal() TrackingState { return TrackingState{Status: TrackingNormal} }

// Limited is the TrackingState of a frame with degraded tracking.
func Limited(reason LimitedReason) TrackingState {
	return TrackingState{Status: TrackingLimited, Reason: reason}
}

// NotAvailable is the TrackingState of a frame with no usable pose.
func NotAvailable() TrackingState { return TrackingState{Status: TrackingNotAvailable} }

func (s TrackingState) String() string {
	switch s.Status {
	case TrackingNormal:
		return "normal"
	case TrackingLimited:
		return "limited(" + s.Reason.String() + ")"
	default:
		return "not available"
	}
}
