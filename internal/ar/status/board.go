// Package status holds the user-visible status surface: a short-lived
// message with compare-and-clear expiry, the tracking-quality text, the
// crosshair colour and the session phase.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/marker.place/internal/monitoring"
	"github.com/banshee-data/marker.place/internal/timeutil"
)

// DefaultMessageDuration is how long a posted message stays visible.
const DefaultMessageDuration = 2 * time.Second

// subscriberBuffer is the per-subscriber queue depth; slow subscribers
// miss intermediate snapshots rather than blocking the event loop.
const subscriberBuffer = 16

// Snapshot is the observable status at one instant.
type Snapshot struct {
	Message      string    `json:"message"`
	MessageToken uint64    `json:"message_token"`
	TrackingText string    `json:"tracking_text"`
	Crosshair    string    `json:"crosshair"`
	Session      string    `json:"session"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Board is safe for concurrent use. Expiry callbacks arrive from the
// clock's timer goroutine.
type Board struct {
	clock    timeutil.Clock
	duration time.Duration

	mu          sync.Mutex
	snap        Snapshot
	timer       timeutil.Timer
	nextToken   uint64
	subscribers map[string]chan Snapshot
}

// NewBoard creates a Board. A non-positive duration uses
// DefaultMessageDuration.
func NewBoard(clock timeutil.Clock, duration time.Duration) *Board {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if duration <= 0 {
		duration = DefaultMessageDuration
	}
	return &Board{
		clock:       clock,
		duration:    duration,
		subscribers: make(map[string]chan Snapshot),
	}
}

// Post shows msg and schedules it to be cleared after the board's
// duration. It returns the message token. A later Post supersedes the
// pending clear: an expiry only blanks the message if its token is still
// current.
func (b *Board) Post(msg string) uint64 {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.nextToken++
	token := b.nextToken
	b.snap.Message = msg
	b.snap.MessageToken = token
	b.timer = b.clock.AfterFunc(b.duration, func() { b.expire(token) })
	b.publishLocked()
	b.mu.Unlock()

	monitoring.Diagf("status message %d: %q", token, msg)
	return token
}

// expire clears the message if token is still the current one.
func (b *Board) expire(token uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.MessageToken != token || b.snap.Message == "" {
		return false
	}
	b.snap.Message = ""
	b.timer = nil
	b.publishLocked()
	return true
}

// SetTrackingText updates the tracking-quality text.
func (b *Board) SetTrackingText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.TrackingText == text {
		return
	}
	b.snap.TrackingText = text
	b.publishLocked()
}

// SetCrosshair updates the crosshair colour.
func (b *Board) SetCrosshair(color string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.Crosshair == color {
		return
	}
	b.snap.Crosshair = color
	b.publishLocked()
}

// SetSession updates the session phase text.
func (b *Board) SetSession(phase string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.Session == phase {
		return
	}
	b.snap.Session = phase
	b.publishLocked()
}

// Snapshot returns the current status.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

// Subscribe returns a channel receiving every status change. The ID is
// used to Unsubscribe. The current snapshot is delivered first.
func (b *Board) Subscribe() (string, <-chan Snapshot) {
	id := uuid.NewString()
	ch := make(chan Snapshot, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = ch
	ch <- b.snap
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (b *Board) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Close stops the pending expiry and closes every subscription.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}

func (b *Board) publishLocked() {
	b.snap.UpdatedAt = b.clock.Now()
	for id, ch := range b.subscribers {
		select {
		case ch <- b.snap:
		default:
			monitoring.Tracef("status subscriber %s is full, dropping update", id)
		}
	}
}
