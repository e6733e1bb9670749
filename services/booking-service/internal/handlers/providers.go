package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/repbook/libs/httpx"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
)

type breakItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type availabilityRequest struct {
	StartTime    string      `json:"start_time"`
	EndTime      string      `json:"end_time"`
	SlotDuration int         `json:"slot_duration"`
	BreakTimes   []breakItem `json:"break_times"`
}

type availabilityItem struct {
	ID           string      `json:"id"`
	DayOfWeek    int         `json:"day_of_week"`
	StartTime    string      `json:"start_time"`
	EndTime      string      `json:"end_time"`
	SlotDuration int         `json:"slot_duration"`
	BreakTimes   []breakItem `json:"break_times"`
}

type providerItem struct {
	ID                    string             `json:"id"`
	FullName              string             `json:"full_name"`
	Email                 string             `json:"email"`
	Department            string             `json:"department"`
	Title                 string             `json:"title"`
	Specializations       []string           `json:"specializations"`
	MaxAppointmentsPerDay int                `json:"max_appointments_per_day"`
	CreatedAt             string             `json:"created_at"`
	Availability          []availabilityItem `json:"availability,omitempty"`
}

type providerPatchRequest struct {
	Department            *string   `json:"department"`
	Title                 *string   `json:"title"`
	Specializations       *[]string `json:"specializations"`
	MaxAppointmentsPerDay *int      `json:"max_appointments_per_day"`
}

type slotsResponse struct {
	ProviderID string   `json:"provider_id"`
	Date       string   `json:"date"`
	DayOfWeek  int      `json:"day_of_week"`
	State      string   `json:"state"`
	Slots      []string `json:"slots"`
}

func toAvailabilityItem(a model.WeeklyAvailability) availabilityItem {
	breaks := make([]breakItem, 0, len(a.BreakTimes))
	for _, b := range a.BreakTimes {
		breaks = append(breaks, breakItem{Start: b.Start, End: b.End})
	}
	return availabilityItem{
		ID:           a.ID,
		DayOfWeek:    a.DayOfWeek,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		SlotDuration: a.SlotDuration,
		BreakTimes:   breaks,
	}
}

func toProviderItem(p model.Provider) providerItem {
	specs := p.Specializations
	if specs == nil {
		specs = []string{}
	}
	return providerItem{
		ID:                    p.ID,
		FullName:              p.FullName,
		Email:                 p.Email,
		Department:            p.Department,
		Title:                 p.Title,
		Specializations:       specs,
		MaxAppointmentsPerDay: p.MaxAppointmentsPerDay,
		CreatedAt:             p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListProvidersWithAvailability(r.Context())
	if err != nil {
		h.writeReadError(w, r, "list providers", err)
		return
	}
	items := make([]providerItem, 0, len(entries))
	for _, e := range entries {
		item := toProviderItem(e.Provider)
		for _, a := range e.Availability {
			item.Availability = append(item.Availability, toAvailabilityItem(a))
		}
		items = append(items, item)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"providers": items})
}

func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProvider(r.Context(), r.PathValue("providerId"))
	if err != nil {
		h.writeReadError(w, r, "get provider", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toProviderItem(p))
}

func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	var req providerPatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	var updates []model.ProviderUpdate
	if req.Department != nil {
		updates = append(updates, model.SetDepartment(strings.TrimSpace(*req.Department)))
	}
	if req.Title != nil {
		updates = append(updates, model.SetTitle(strings.TrimSpace(*req.Title)))
	}
	if req.Specializations != nil {
		updates = append(updates, model.SetSpecializations(*req.Specializations))
	}
	if req.MaxAppointmentsPerDay != nil {
		updates = append(updates, model.SetMaxAppointmentsPerDay(*req.MaxAppointmentsPerDay))
	}

	res, err := h.svc.UpdateProviderProfile(r.Context(), who, r.PathValue("providerId"), updates)
	h.writeResult(w, r, "update provider", res, err, http.StatusOK)
}

func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("providerId")
	rows, err := h.svc.GetAvailability(r.Context(), providerID)
	if err != nil {
		h.writeReadError(w, r, "get availability", err)
		return
	}
	items := make([]availabilityItem, 0, len(rows))
	for _, a := range rows {
		items = append(items, toAvailabilityItem(a))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"provider_id": providerID, "availability": items})
}

func parseDay(raw string) (int, bool) {
	day, err := strconv.Atoi(raw)
	if err != nil || day < 0 || day > 6 {
		return 0, false
	}
	return day, true
}

func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	day, valid := parseDay(r.PathValue("day"))
	if !valid {
		httpx.WriteError(w, http.StatusBadRequest, "day must be 0 (Sunday) to 6 (Saturday)")
		return
	}
	var req availabilityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	in := booking.AvailabilityInput{
		ProviderID:   r.PathValue("providerId"),
		DayOfWeek:    day,
		StartTime:    strings.TrimSpace(req.StartTime),
		EndTime:      strings.TrimSpace(req.EndTime),
		SlotDuration: req.SlotDuration,
	}
	for _, b := range req.BreakTimes {
		in.BreakTimes = append(in.BreakTimes, model.BreakTime{Start: strings.TrimSpace(b.Start), End: strings.TrimSpace(b.End)})
	}

	res, err := h.svc.SetAvailability(r.Context(), who, in)
	okStatus := http.StatusOK
	if res.Created {
		okStatus = http.StatusCreated
	}
	h.writeResult(w, r, "set availability", res, err, okStatus)
}

func (h *Handler) DeleteAvailability(w http.ResponseWriter, r *http.Request) {
	who, _ := actor(r)
	day, valid := parseDay(r.PathValue("day"))
	if !valid {
		httpx.WriteError(w, http.StatusBadRequest, "day must be 0 (Sunday) to 6 (Saturday)")
		return
	}
	res, err := h.svc.DeleteAvailability(r.Context(), who, r.PathValue("providerId"), day)
	h.writeResult(w, r, "delete availability", res, err, http.StatusOK)
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		httpx.WriteError(w, http.StatusBadRequest, "date is required (YYYY-MM-DD)")
		return
	}
	slots, err := h.svc.ListSlots(r.Context(), r.PathValue("providerId"), date)
	if err != nil {
		h.writeReadError(w, r, "list slots", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		ProviderID: slots.ProviderID,
		Date:       slots.Date,
		DayOfWeek:  slots.DayOfWeek,
		State:      string(slots.State),
		Slots:      slots.Times,
	})
}
