package session

import (
	"context"
	"time"
)

// EntryKind classifies journal entries.
type EntryKind string

const (
	EntryLifecycle EntryKind = "lifecycle"
	EntryMarker    EntryKind = "marker"
	EntryPlacement EntryKind = "placement"
	EntryReset     EntryKind = "reset"
)

// Entry is one record in the session journal.
type Entry struct {
	ID        int64     `json:"id,omitempty"`
	SessionID string    `json:"session_id"`
	Kind      EntryKind `json:"kind"`
	Phase     string    `json:"phase,omitempty"`
	Message   string    `json:"message,omitempty"`
	AnchorID  string    `json:"anchor_id,omitempty"`
	Model     string    `json:"model,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Journal persists session entries. Append is called from the event loop
// and should return promptly.
type Journal interface {
	Append(ctx context.Context, e Entry) error
}
