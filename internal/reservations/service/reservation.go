package service

import (
	"context"
	"errors"

	"reservd/internal/reservations/changefeed"
	reserrors "reservd/internal/reservations/errors"
	"reservd/internal/reservations/store"
	"reservd/internal/reservations/validator"
	"reservd/pkg/config"
	apperrors "reservd/pkg/errors"
	"reservd/pkg/model"
	"reservd/pkg/sanitizer"
)

type ReservationService interface {
	Reserve(ctx context.Context, req *model.Reservation) (*model.Reservation, error)
	Update(ctx context.Context, id string, upd *model.ReservationUpdate) (*model.Reservation, error)
	Confirm(ctx context.Context, id string) (*model.Reservation, error)
	Block(ctx context.Context, id string) (*model.Reservation, error)
	Cancel(ctx context.Context, id string) (*model.Reservation, error)
	Get(ctx context.Context, id string) (*model.Reservation, error)
	Query(ctx context.Context, filter model.QueryFilter) ([]*model.Reservation, error)
	Listen() *changefeed.Subscription
	Changes(from uint64) []model.ChangeRecord
}

type reservationService struct {
	store     *store.Store
	log       *changefeed.Log
	bus       *changefeed.Bus
	validator *validator.ReservationValidator
	cfg       *config.Config
}

func NewReservationService(
	st *store.Store,
	log *changefeed.Log,
	bus *changefeed.Bus,
	v *validator.ReservationValidator,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		store:     st,
		log:       log,
		bus:       bus,
		validator: v,
		cfg:       cfg,
	}
}

func (s *reservationService) Reserve(ctx context.Context, req *model.Reservation) (*model.Reservation, error) {
	req.Note = sanitizer.SanitizeNote(req.Note)
	req.StartTime = req.StartTime.UTC()
	req.EndTime = req.EndTime.UTC()
	req.Status = model.StatusPending

	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return nil, apperrors.Validation("Invalid reservation input", map[string]any{"error": err.Error()})
	}

	res, err := s.store.Reserve(req.UserID, req.ResourceID, req.Timespan(), req.Note)
	if err != nil {
		s.cfg.Log.Warn("Failed to create reservation",
			"user_id", req.UserID,
			"resource_id", req.ResourceID,
			"error", err,
		)
		return nil, s.mapError(err, "")
	}

	s.cfg.Log.Info("Reservation created",
		"id", res.ID,
		"user_id", res.UserID,
		"resource_id", res.ResourceID,
		"start_time", res.StartTime,
		"end_time", res.EndTime,
	)
	return res, nil
}

func (s *reservationService) Update(ctx context.Context, id string, upd *model.ReservationUpdate) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	if err := s.validator.ValidateUpdate(upd); err != nil {
		s.cfg.Log.Warn("Reservation update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}
	if upd.Note != nil {
		cleaned := sanitizer.SanitizeNote(*upd.Note)
		upd.Note = &cleaned
	}

	res, err := s.store.Update(id, upd)
	if err != nil {
		s.cfg.Log.Warn("Failed to update reservation", "id", id, "error", err)
		return nil, s.mapError(err, id)
	}

	s.cfg.Log.Info("Reservation updated", "id", id)
	return res, nil
}

func (s *reservationService) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(id, "confirm", s.store.Confirm)
}

func (s *reservationService) Block(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(id, "block", s.store.Block)
}

func (s *reservationService) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return s.transition(id, "cancel", s.store.Cancel)
}

func (s *reservationService) transition(id, op string, fn func(string) (*model.Reservation, error)) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	res, err := fn(id)
	if err != nil {
		s.cfg.Log.Warn("Failed to "+op+" reservation", "id", id, "error", err)
		return nil, s.mapError(err, id)
	}

	s.cfg.Log.Info("Reservation status changed", "id", id, "operation", op, "status", res.Status)
	return res, nil
}

func (s *reservationService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	res, err := s.store.Get(id)
	if err != nil {
		return nil, s.mapError(err, id)
	}
	return res, nil
}

func (s *reservationService) Query(ctx context.Context, filter model.QueryFilter) ([]*model.Reservation, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.InvalidInput("invalid status filter: " + string(filter.Status))
	}
	if !filter.Window.IsZero() && !filter.Window.Valid() {
		return nil, apperrors.InvalidInput("invalid window filter: start_time must be before end_time")
	}

	results := s.store.Query(filter)
	s.cfg.Log.Debug("Reservation query completed",
		"user_id", filter.UserID,
		"resource_id", filter.ResourceID,
		"status", filter.Status,
		"count", len(results),
	)
	return results, nil
}

func (s *reservationService) Listen() *changefeed.Subscription {
	return s.bus.Subscribe()
}

func (s *reservationService) Changes(from uint64) []model.ChangeRecord {
	return s.log.ReadFrom(from)
}

func (s *reservationService) mapError(err error, id string) error {
	if conflict, ok := reserrors.AsConflict(err); ok {
		return apperrors.Conflict("Requested window overlaps an existing reservation").WithDetails(map[string]any{
			"resource_id":     conflict.ResourceID,
			"conflicting_ids": conflict.IDs,
		})
	}
	if errors.Is(err, reserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Reservation", id)
	}
	if errors.Is(err, reserrors.ErrInvalidWindow) {
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}
	if errors.Is(err, reserrors.ErrInvalidState) {
		return apperrors.InvalidState("Requested transition is not allowed for the reservation's current status").
			WithDetails(map[string]any{"id": id})
	}
	return apperrors.Internal("Reservation operation failed", err)
}
