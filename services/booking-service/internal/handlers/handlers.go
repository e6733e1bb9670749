package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/repbook/libs/auth"
	"github.com/md-rashed-zaman/repbook/libs/httpx"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/booking"
)

type Handler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func New(svc *booking.Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the API on mux. Every route runs behind authn; booking
// creation additionally runs behind limit when it is non-nil.
func (h *Handler) Register(mux *http.ServeMux, authn, limit httpx.Middleware) {
	route := func(pattern string, fn http.HandlerFunc, extra ...httpx.Middleware) {
		mws := []httpx.Middleware{authn}
		for _, m := range extra {
			if m != nil {
				mws = append(mws, m)
			}
		}
		mux.Handle(pattern, httpx.Chain(fn, mws...))
	}

	route("GET /api/v1/providers", h.ListProviders)
	route("GET /api/v1/providers/{providerId}", h.GetProvider)
	route("PATCH /api/v1/providers/{providerId}", h.UpdateProvider)
	route("GET /api/v1/providers/{providerId}/availability", h.GetAvailability)
	route("PUT /api/v1/providers/{providerId}/availability/{day}", h.SetAvailability)
	route("DELETE /api/v1/providers/{providerId}/availability/{day}", h.DeleteAvailability)
	route("GET /api/v1/providers/{providerId}/slots", h.ListSlots)

	route("POST /api/v1/appointments", h.CreateAppointment, limit)
	route("GET /api/v1/appointments", h.ListAppointments)
	route("GET /api/v1/appointments/{id}", h.GetAppointment)
	route("POST /api/v1/appointments/{id}/status", h.TransitionStatus)
	route("POST /api/v1/appointments/{id}/cancel", h.CancelAppointment)
}

// RateLimitKey buckets authenticated callers by subject and everyone else by IP.
func RateLimitKey(r *http.Request) string {
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		return "sub:" + id.Subject
	}
	return "ip:" + httpx.ClientIP(r)
}

func actor(r *http.Request) (booking.Actor, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return booking.Actor{}, false
	}
	return booking.ActorFromIdentity(id), true
}

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	ID      string `json:"id,omitempty"`
}

func statusForKind(k booking.Kind) int {
	switch k {
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindConflict:
		return http.StatusConflict
	case booking.KindInvalidTransition:
		return http.StatusUnprocessableEntity
	case booking.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// writeResult renders a write outcome. Hard errors become 500 and are logged
// with the operation name.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, op string, res booking.Result, err error, okStatus int) {
	if err != nil {
		h.logger.Error(op+" failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	body := resultResponse{Success: res.Success, Message: res.Message, ID: res.ID}
	if !res.Success {
		body.Kind = string(res.Kind)
		httpx.WriteJSON(w, statusForKind(res.Kind), body)
		return
	}
	httpx.WriteJSON(w, okStatus, body)
}

// writeReadError maps read failures to status codes.
func (h *Handler) writeReadError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrInvalidArgument):
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
	default:
		h.logger.Error(op+" failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
