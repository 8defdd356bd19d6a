package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/banshee-data/marker.place/internal/ar/session"
)

func TestJournalStore_AppendAndList(t *testing.T) {
	store := NewJournalStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []session.Entry{
		{SessionID: "s1", Kind: session.EntryLifecycle, Phase: "initializing", Message: "session started", At: base},
		{SessionID: "s1", Kind: session.EntryMarker, AnchorID: "marker-1", Payload: "target_1", Model: "candle", At: base.Add(time.Second)},
		{SessionID: "s1", Kind: session.EntryPlacement, AnchorID: "marker-1", Model: "candle", Message: "marker", At: base.Add(time.Second)},
		{SessionID: "s2", Kind: session.EntryLifecycle, Phase: "failed", Message: "camera access denied", At: base.Add(time.Minute)},
	}
	for _, e := range entries {
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got, err := store.List(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	want := []session.Entry{entries[2], entries[1], entries[0]}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(session.Entry{}, "ID")); diff != "" {
		t.Errorf("List(s1) mismatch (-want +got):\n%s", diff)
	}
	if got[0].ID <= got[1].ID {
		t.Errorf("expected newest first, got ids %d, %d", got[0].ID, got[1].ID)
	}

	all, err := store.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("List(all) failed: %v", err)
	}
	if len(all) != 2 || all[0].SessionID != "s2" {
		t.Errorf("expected 2 entries starting with s2, got %+v", all)
	}
}

func TestJournalStore_Sessions(t *testing.T) {
	store := NewJournalStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	appendAt := func(id string, at time.Time) {
		t.Helper()
		if err := store.Append(ctx, session.Entry{SessionID: id, Kind: session.EntryLifecycle, At: at}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	appendAt("old", base)
	appendAt("new", base.Add(time.Hour))
	appendAt("old", base.Add(time.Minute))

	got, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	want := []SessionSummary{
		{SessionID: "new", FirstSeen: base.Add(time.Hour), LastSeen: base.Add(time.Hour), Entries: 1},
		{SessionID: "old", FirstSeen: base, LastSeen: base.Add(time.Minute), Entries: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Sessions mismatch (-want +got):\n%s", diff)
	}
}

func TestJournalStore_DefaultsSessionAndTime(t *testing.T) {
	store := NewJournalStore(setupTestDB(t))
	ctx := context.Background()

	if err := store.Append(ctx, session.Entry{Kind: session.EntryReset}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	got, err := store.List(ctx, "unstarted", 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].At.IsZero() {
		t.Error("expected At to be filled in")
	}
}

func TestJournalStore_CancelledContext(t *testing.T) {
	store := NewJournalStore(setupTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Append(ctx, session.Entry{SessionID: "s", Kind: session.EntryReset}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
