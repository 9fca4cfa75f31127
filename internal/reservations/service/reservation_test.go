package service

import (
	"context"
	"testing"
	"time"

	"reservd/internal/reservations/changefeed"
	"reservd/internal/reservations/index"
	"reservd/internal/reservations/store"
	"reservd/internal/reservations/validator"
	"reservd/pkg/config"
	apperrors "reservd/pkg/errors"
	"reservd/pkg/logger"
	"reservd/pkg/model"
)

func newTestService() ReservationService {
	log := logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
	cfg := &config.Config{Log: log}

	feed := changefeed.NewLog()
	bus := changefeed.NewBus(256)
	st := store.New(index.New(), feed, bus)

	return NewReservationService(st, feed, bus, validator.NewReservationValidator(log), cfg)
}

func reserveRequest(resource string, startHour, endHour int) *model.Reservation {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return &model.Reservation{
		UserID:     "user-1",
		ResourceID: resource,
		StartTime:  base.Add(time.Duration(startHour) * time.Hour),
		EndTime:    base.Add(time.Duration(endHour) * time.Hour),
	}
}

func appErrorCode(t *testing.T, err error) string {
	t.Helper()
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

func TestReserve_Succeeds(t *testing.T) {
	svc := newTestService()

	req := reserveRequest("room-1", 9, 10)
	req.Note = "  team   sync  "

	res, err := svc.Reserve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusPending {
		t.Errorf("expected status pending, got %s", res.Status)
	}
	if res.Note != "team sync" {
		t.Errorf("expected sanitized note, got %q", res.Note)
	}
}

func TestReserve_ClientStatusIsIgnored(t *testing.T) {
	svc := newTestService()

	req := reserveRequest("room-1", 9, 10)
	req.Status = model.StatusConfirmed

	res, err := svc.Reserve(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != model.StatusPending {
		t.Errorf("new reservations always start pending, got %s", res.Status)
	}
}

func TestReserve_ValidationFailure(t *testing.T) {
	svc := newTestService()

	req := reserveRequest("room-1", 10, 9) // inverted window
	_, err := svc.Reserve(context.Background(), req)
	if code := appErrorCode(t, err); code != apperrors.CodeValidation {
		t.Errorf("expected %s, got %s", apperrors.CodeValidation, code)
	}
}

func TestReserve_ConflictCarriesDetails(t *testing.T) {
	svc := newTestService()

	first, err := svc.Reserve(context.Background(), reserveRequest("room-1", 9, 11))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Reserve(context.Background(), reserveRequest("room-1", 10, 12))
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected %s, got %s", apperrors.CodeConflict, appErr.Code)
	}
	if appErr.Details["resource_id"] != "room-1" {
		t.Errorf("expected resource_id detail, got %v", appErr.Details)
	}
	ids, ok := appErr.Details["conflicting_ids"].([]string)
	if !ok || len(ids) != 1 || ids[0] != first.ID {
		t.Errorf("expected conflicting_ids [%s], got %v", first.ID, appErr.Details["conflicting_ids"])
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.Get(context.Background(), "missing")
	if code := appErrorCode(t, err); code != apperrors.CodeNotFound {
		t.Errorf("expected %s, got %s", apperrors.CodeNotFound, code)
	}
}

func TestGet_EmptyID(t *testing.T) {
	svc := newTestService()

	_, err := svc.Get(context.Background(), "")
	if code := appErrorCode(t, err); code != apperrors.CodeInvalidInput {
		t.Errorf("expected %s, got %s", apperrors.CodeInvalidInput, code)
	}
}

func TestTransitions_MapInvalidState(t *testing.T) {
	svc := newTestService()

	res, err := svc.Reserve(context.Background(), reserveRequest("room-1", 9, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), res.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Block(context.Background(), res.ID)
	if code := appErrorCode(t, err); code != apperrors.CodeInvalidState {
		t.Errorf("expected %s, got %s", apperrors.CodeInvalidState, code)
	}
}

func TestUpdate_InvalidWindow(t *testing.T) {
	svc := newTestService()

	res, err := svc.Reserve(context.Background(), reserveRequest("room-1", 9, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = svc.Update(context.Background(), res.ID, &model.ReservationUpdate{
		StartTime: &start,
		EndTime:   &end,
	})
	if code := appErrorCode(t, err); code != apperrors.CodeValidation {
		t.Errorf("expected %s, got %s", apperrors.CodeValidation, code)
	}
}

func TestUpdate_SingleEndpointInvertsStoredWindow(t *testing.T) {
	svc := newTestService()

	res, err := svc.Reserve(context.Background(), reserveRequest("room-1", 9, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Passes struct validation on its own but inverts the stored window.
	start := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	_, err = svc.Update(context.Background(), res.ID, &model.ReservationUpdate{
		StartTime: &start,
	})
	if code := appErrorCode(t, err); code != apperrors.CodeValidation {
		t.Errorf("expected %s, got %s", apperrors.CodeValidation, code)
	}

	got, err := svc.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.EndTime.After(got.StartTime) {
		t.Errorf("stored window was inverted: [%s, %s)", got.StartTime, got.EndTime)
	}
}

func TestQuery_InvalidStatusFilter(t *testing.T) {
	svc := newTestService()

	_, err := svc.Query(context.Background(), model.QueryFilter{Status: "tentative"})
	if code := appErrorCode(t, err); code != apperrors.CodeInvalidInput {
		t.Errorf("expected %s, got %s", apperrors.CodeInvalidInput, code)
	}
}

func TestChangesAndListen(t *testing.T) {
	svc := newTestService()

	sub := svc.Listen()
	defer sub.Close()

	res, err := svc.Reserve(context.Background(), reserveRequest("room-1", 9, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Cancel(context.Background(), res.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records := svc.Changes(1)
	if len(records) != 2 {
		t.Fatalf("expected 2 change records, got %d", len(records))
	}
	if records[0].Operation != model.OpCreate || records[1].Operation != model.OpCancel {
		t.Errorf("unexpected operations: %s, %s", records[0].Operation, records[1].Operation)
	}

	// Tail reads start mid-stream.
	tail := svc.Changes(2)
	if len(tail) != 1 || tail[0].Sequence != 2 {
		t.Errorf("expected tail from sequence 2, got %v", tail)
	}

	for i, want := range []model.Operation{model.OpCreate, model.OpCancel} {
		select {
		case rec := <-sub.Records():
			if rec.Operation != want {
				t.Errorf("notification %d: expected %s, got %s", i, want, rec.Operation)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for notification %d", i)
		}
	}
}
