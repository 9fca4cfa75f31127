package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"reservd/internal/reservations/service"
	apperrors "reservd/pkg/errors"
	httputil "reservd/pkg/http"
	"reservd/pkg/logger"
	"reservd/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.Reservation
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	res, err := h.service.Reserve(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, res)
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, res)
}

func (h *ReservationHandler) Query(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	filter := model.QueryFilter{
		UserID:     query.Get("user_id"),
		ResourceID: query.Get("resource_id"),
		Status:     model.Status(query.Get("status")),
	}

	startTime, err := httputil.ParseTimeParam(r, "start_time")
	if err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("invalid start_time format, must be RFC3339"))
		return
	}
	endTime, err := httputil.ParseTimeParam(r, "end_time")
	if err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("invalid end_time format, must be RFC3339"))
		return
	}

	if (startTime == nil) != (endTime == nil) {
		httputil.WriteError(w, apperrors.InvalidInput("start_time and end_time must be provided together"))
		return
	}
	if startTime != nil {
		filter.Window = model.NewInterval(*startTime, *endTime)
	}

	results, err := h.service.Query(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, results)
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var updates model.ReservationUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		})
		return
	}

	res, err := h.service.Update(r.Context(), id, &updates)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, res)
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps.ByName("id"), h.service.Confirm)
}

func (h *ReservationHandler) Block(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps.ByName("id"), h.service.Block)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.transition(w, r, ps.ByName("id"), h.service.Cancel)
}

func (h *ReservationHandler) transition(w http.ResponseWriter, r *http.Request, id string, fn func(ctx context.Context, id string) (*model.Reservation, error)) {
	res, err := fn(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, res)
}

func (h *ReservationHandler) Changes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from := uint64(1)
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		parsed, err := strconv.ParseUint(fromStr, 10, 64)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, apperrors.InvalidInput(fmt.Sprintf("invalid from parameter: %s", fromStr)))
			return
		}
		from = parsed
	}

	httputil.WriteSuccess(w, h.service.Changes(from))
}

// Listen streams change records as newline-delimited JSON until the client
// disconnects. Subscribers that fall behind the feed are cut off rather than
// allowed to block writers; the final line carries the error so the client
// knows to re-sync via the changes endpoint.
func (h *ReservationHandler) Listen(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, apperrors.Internal("Streaming is not supported", nil))
		return
	}

	sub := h.service.Listen()
	defer sub.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case rec, open := <-sub.Records():
			if !open {
				if err := sub.Err(); err != nil {
					enc.Encode(httputil.ErrorResponse{Error: err.Error()})
					flusher.Flush()
				}
				return
			}
			if err := enc.Encode(rec); err != nil {
				h.log.Debug("Change stream client write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.Query)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.PATCH("/api/v1/reservations/id/:id", h.Update)
	router.DELETE("/api/v1/reservations/id/:id", h.Cancel)
	router.POST("/api/v1/reservations/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/id/:id/block", h.Block)
	router.GET("/api/v1/reservations/changes", h.Changes)
}

// RegisterStreamRoutes registers the long-lived streaming endpoint. It is
// kept off the main router so the request timeout and idempotency middleware
// never touch it.
func (h *ReservationHandler) RegisterStreamRoutes(router *httprouter.Router) {
	router.GET("/api/v1/reservations/listen", h.Listen)
}
