// Package quality maps raw tracking signals to user-facing feedback: the
// tracking status text and the crosshair colour.
package quality

import (
	"github.com/banshee-data/marker.place/internal/ar"
)

// Status texts shown to the user.
const (
	TextGood                 = "Good tracking conditions"
	TextLimited              = "Limited Tracking"
	TextExcessiveMotion      = "Limited Tracking: Excessive Motion"
	TextInsufficientFeatures = "Limited Tracking: Insufficient Details"
	TextTooDark              = "Limited Tracking: Too Dark"
)

// DefaultTooDarkLumens is the ambient intensity below which the scene is
// reported as too dark.
const DefaultTooDarkLumens = 100.0

// Classifier holds the light threshold; the zero value uses
// DefaultTooDarkLumens.
type Classifier struct {
	TooDarkLumens float64
}

// Classify returns the status text for a tracking state and an optional
// ambient light estimate, using the default light threshold.
func Classify(state ar.TrackingState, ambientLumens *float64) string {
	return Classifier{}.Classify(state, ambientLumens)
}

// Classify returns the status text for a tracking state. The light check
// runs after the tracking-state check and overrides it; it is skipped
// when no light estimate is present.
func (c Classifier) Classify(state ar.TrackingState, ambientLumens *float64) string {
	text := TextGood
	if state.Status == ar.TrackingLimited {
		switch state.Reason {
		case ar.ReasonExcessiveMotion:
			text = TextExcessiveMotion
		case ar.ReasonInsufficientFeatures:
			text = TextInsufficientFeatures
		default:
			text = TextLimited
		}
	}

	if ambientLumens != nil && *ambientLumens < c.threshold() {
		text = TextTooDark
	}
	return text
}

func (c Classifier) threshold() float64 {
	if c.TooDarkLumens <= 0 {
		return DefaultTooDarkLumens
	}
	return c.TooDarkLumens
}

// CrosshairColor is the colour of the centre crosshair.
type CrosshairColor string

const (
	// CrosshairGreen means the view centre currently hits a plane.
	CrosshairGreen CrosshairColor = "green"
	// CrosshairNeutral is the idle gray (white 0.34).
	CrosshairNeutral CrosshairColor = "neutral"
)

// Crosshair returns the crosshair colour for a centre hit-test result.
func Crosshair(hitsPlane bool) CrosshairColor {
	if hitsPlane {
		return CrosshairGreen
	}
	return CrosshairNeutral
}
