package store

import (
	"testing"

	"reservd/internal/reservations/changefeed"
	"reservd/internal/reservations/index"
	"reservd/pkg/model"
)

func TestReplay_RebuildsStateAndIndex(t *testing.T) {
	// Drive a lifecycle through one store, then rebuild a fresh one from the
	// recorded history.
	st, log, _ := newTestStore()

	kept, err := st.Reserve("user-1", "room-1", window(9, 10), "kept")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := st.Confirm(kept.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gone, err := st.Reserve("user-2", "room-1", window(11, 12), "gone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := st.Cancel(gone.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := log.ReadFrom(1)
	rebuiltLog := changefeed.NewLogFrom(history)
	rebuilt := New(index.New(), rebuiltLog, changefeed.NewBus(256))
	if err := rebuilt.Replay(rebuiltLog.ReadFrom(1)); err != nil {
		t.Fatalf("replay failed: %v", err)
	}

	// The confirmed reservation is back with its final status.
	got, err := rebuilt.Get(kept.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusConfirmed {
		t.Errorf("expected status confirmed, got %s", got.Status)
	}

	// The cancelled one is readable but not occupying.
	gotGone, err := rebuilt.Get(gone.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotGone.Status != model.StatusCancelled {
		t.Errorf("expected status cancelled, got %s", gotGone.Status)
	}

	// Occupying windows are enforced again.
	if _, err := rebuilt.Reserve("user-3", "room-1", window(9, 10), ""); err == nil {
		t.Error("expected conflict with replayed confirmed reservation")
	}
	if _, err := rebuilt.Reserve("user-3", "room-1", window(11, 12), ""); err != nil {
		t.Errorf("cancelled window should be free after replay: %v", err)
	}

	// New mutations continue the sequence without gaps.
	if want, got := uint64(len(history)+1), rebuiltLog.LastSequence(); got != want {
		t.Errorf("expected last sequence %d, got %d", want, got)
	}
}

func TestReplay_EmptyHistory(t *testing.T) {
	st, _, _ := newTestStore()
	if err := st.Replay(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := st.Query(model.QueryFilter{}); len(got) != 0 {
		t.Errorf("expected empty store, got %d reservations", len(got))
	}
}
