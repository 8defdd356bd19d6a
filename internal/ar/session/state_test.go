package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/marker.place/internal/ar"
)

func TestPhaseFor(t *testing.T) {
	tests := []struct {
		name       string
		tracking   ar.TrackingState
		wantPhase  Phase
		wantReason ar.LimitedReason
	}{
		{"normal", ar.Normal(), PhaseTracking, ar.ReasonNone},
		{"initializing", ar.Limited(ar.ReasonInitializing), PhaseInitializing, ar.ReasonNone},
		{"excessive motion", ar.Limited(ar.ReasonExcessiveMotion), PhaseLimited, ar.ReasonExcessiveMotion},
		{"relocalizing", ar.Limited(ar.ReasonRelocalizing), PhaseLimited, ar.ReasonRelocalizing},
		{"not available", ar.NotAvailable(), PhaseInitializing, ar.ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase, reason := phaseFor(tt.tracking)
			assert.Equal(t, tt.wantPhase, phase)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestState_Label(t *testing.T) {
	assert.Equal(t, "tracking", State{Phase: PhaseTracking}.Label())
	assert.Equal(t, "limited:"+ar.ReasonExcessiveMotion.String(),
		State{Phase: PhaseLimited, Reason: ar.ReasonExcessiveMotion}.Label())
	assert.Equal(t, "failed", State{Phase: PhaseFailed, Error: "denied"}.Label())
	assert.Equal(t, "unknown", Phase(99).String())
}

func TestPhase_AcceptsFrames(t *testing.T) {
	accepting := map[Phase]bool{
		PhaseNotStarted:   false,
		PhaseInitializing: true,
		PhaseTracking:     true,
		PhaseLimited:      true,
		PhaseInterrupted:  false,
		PhaseFailed:       false,
	}
	for phase, want := range accepting {
		assert.Equal(t, want, phase.acceptsFrames(), phase.String())
	}
}
