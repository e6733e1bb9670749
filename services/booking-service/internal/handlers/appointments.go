package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/repbook/libs/httpx"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
)

type createAppointmentRequest struct {
	ProviderID    string `json:"provider_id"`
	RequestedDate string `json:"requested_date"`
	RequestedTime string `json:"requested_time"`
	Purpose       string `json:"purpose"`
	Description   string `json:"description"`
}

type statusRequest struct {
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason"`
	Notes           string `json:"notes"`
}

type providerSummaryItem struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Title      string `json:"title"`
}

type contactItem struct {
	ID          string `json:"id"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Nationality string `json:"nationality"`
}

type appointmentItem struct {
	ID              string               `json:"id"`
	RequesterID     string               `json:"requester_id"`
	ProviderID      string               `json:"provider_id"`
	RequestedDate   string               `json:"requested_date"`
	RequestedTime   string               `json:"requested_time"`
	Purpose         string               `json:"purpose"`
	Description     string               `json:"description"`
	Status          string               `json:"status"`
	RejectionReason string               `json:"rejection_reason,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	CreatedAt       string               `json:"created_at"`
	UpdatedAt       string               `json:"updated_at"`
	Provider        *providerSummaryItem `json:"provider,omitempty"`
	Requester       *contactItem         `json:"requester,omitempty"`
}

func toAppointmentItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:              a.ID,
		RequesterID:     a.RequesterID,
		ProviderID:      a.ProviderID,
		RequestedDate:   a.RequestedDate,
		RequestedTime:   a.RequestedTime,
		Purpose:         a.Purpose,
		Description:     a.Description,
		Status:          string(a.Status),
		RejectionReason: a.RejectionReason,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id is required")
		return
	}

	res, err := h.svc.CreateAppointment(r.Context(), who, booking.BookingRequest{
		ProviderID:  req.ProviderID,
		Date:        strings.TrimSpace(req.RequestedDate),
		Time:        strings.TrimSpace(req.RequestedTime),
		Purpose:     req.Purpose,
		Description: req.Description,
	})
	h.writeResult(w, r, "create appointment", res, err, http.StatusCreated)
}

// ListAppointments lists the caller's own appointments. Requesters may filter
// by status; providers by status and date.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	q := r.URL.Query()

	var status model.Status
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		parsed, known := model.ParseStatus(raw)
		if !known {
			httpx.WriteError(w, http.StatusBadRequest, "unknown status")
			return
		}
		status = parsed
	}

	items := []appointmentItem{}
	if who.IsProvider() {
		list, err := h.svc.ListForProvider(r.Context(), who.ID, model.AppointmentFilter{
			Date:   strings.TrimSpace(q.Get("date")),
			Status: status,
		})
		if err != nil {
			h.writeReadError(w, r, "list appointments", err)
			return
		}
		for _, a := range list {
			item := toAppointmentItem(a.Appointment)
			c := a.Requester
			item.Requester = &contactItem{ID: c.ID, FullName: c.FullName, Email: c.Email, Phone: c.Phone, Nationality: c.Nationality}
			items = append(items, item)
		}
	} else {
		list, err := h.svc.ListForRequester(r.Context(), who.ID, status)
		if err != nil {
			h.writeReadError(w, r, "list appointments", err)
			return
		}
		for _, a := range list {
			item := toAppointmentItem(a.Appointment)
			p := a.Provider
			item.Provider = &providerSummaryItem{ID: p.ID, FullName: p.FullName, Email: p.Email, Department: p.Department, Title: p.Title}
			items = append(items, item)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	a, err := h.svc.GetAppointment(r.Context(), who, r.PathValue("id"))
	if err != nil {
		h.writeReadError(w, r, "get appointment", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointmentItem(a))
}

func (h *Handler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	res, err := h.svc.TransitionTo(r.Context(), who, r.PathValue("id"),
		strings.TrimSpace(req.Status), req.RejectionReason, req.Notes)
	h.writeResult(w, r, "transition status", res, err, http.StatusOK)
}

func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	res, err := h.svc.CancelAppointment(r.Context(), who, r.PathValue("id"))
	h.writeResult(w, r, "cancel appointment", res, err, http.StatusOK)
}
