package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

const (
	msgPendingSameDay = "You already have a pending appointment on this date"
	msgSlotTaken      = "This time slot is already taken"
	msgDailyCap       = "The provider has no more appointments available on this date"
)

// BookingRequest asks for one slot. The requester is always the calling actor.
type BookingRequest struct {
	ProviderID  string
	Date        string
	Time        string
	Purpose     string
	Description string
}

// CreateAppointment is the booking arbiter. Inside one transaction it
// re-checks that the requester has no other pending appointment that date,
// that the time is a slot on the provider's schedule, that no active
// appointment already holds the exact time and that the provider's daily cap
// is not reached, then inserts the appointment as pending and records a
// requested event.
//
// Conflicts are decided by exact time equality; an appointment at 09:00 does
// not block 09:15 even when the provider's slots are 30 minutes long.
func (s *Service) CreateAppointment(ctx context.Context, actor Actor, req BookingRequest) (res Result, err error) {
	ctx, span := s.start(ctx, "booking.create_appointment",
		attribute.String("provider_id", req.ProviderID),
		attribute.String("requested_date", req.Date),
		attribute.String("requested_time", req.Time))
	defer func() { finish(span, res, err) }()

	if !actor.IsRequester() {
		return refuse(KindForbidden, "Only requesters can book appointments"), nil
	}
	day, err := availability.Weekday(req.Date)
	if err != nil {
		return refuse(KindValidation, "requested_date: %v", err), nil
	}
	if _, err := availability.ParseClock(req.Time); err != nil {
		return refuse(KindValidation, "requested_time: %v", err), nil
	}
	purpose := strings.TrimSpace(req.Purpose)
	if purpose == "" {
		return refuse(KindValidation, "purpose is required"), nil
	}

	var created model.Appointment
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		provider, err := tx.GetProvider(ctx, req.ProviderID)
		if err != nil {
			if storage.IsNotFound(err) {
				return abort(KindNotFound, "Provider not found")
			}
			return err
		}

		pending, err := tx.CountPendingByRequesterDate(ctx, actor.ID, req.Date)
		if err != nil {
			return err
		}
		if pending > 0 {
			return abort(KindConflict, msgPendingSameDay)
		}

		schedule, err := tx.GetAvailability(ctx, req.ProviderID, day)
		if err != nil {
			if storage.IsNotFound(err) {
				return abort(KindValidation, "The provider is not available on this day")
			}
			return err
		}
		onGrid, err := availability.OnGrid(schedule, req.Time)
		if err != nil {
			return fmt.Errorf("availability for %s day %d: %w", req.ProviderID, day, err)
		}
		if !onGrid {
			return abort(KindValidation, "%s is not a bookable slot for this provider", req.Time)
		}

		active, err := tx.ListActiveByProviderDate(ctx, req.ProviderID, req.Date)
		if err != nil {
			return err
		}
		for _, a := range active {
			if a.RequestedTime == req.Time {
				return abort(KindConflict, msgSlotTaken)
			}
		}
		if atDailyCap(provider, len(active)) {
			return abort(KindConflict, msgDailyCap)
		}

		created, err = tx.InsertAppointment(ctx, model.Appointment{
			RequesterID:   actor.ID,
			ProviderID:    req.ProviderID,
			RequestedDate: req.Date,
			RequestedTime: req.Time,
			Purpose:       purpose,
			Description:   strings.TrimSpace(req.Description),
		}, s.now())
		switch {
		case errors.Is(err, storage.ErrSlotTaken):
			return abort(KindConflict, msgSlotTaken)
		case errors.Is(err, storage.ErrPendingExists):
			return abort(KindConflict, msgPendingSameDay)
		case err != nil:
			return err
		}

		evt, err := outbox.AppointmentEvent(created)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	})
	if err != nil {
		res, err = settle(err, Result{})
		if err != nil {
			s.logger.Error("create appointment failed", "provider_id", req.ProviderID, "err", err)
		} else {
			s.logger.Info("appointment refused", "provider_id", req.ProviderID, "requester_id", actor.ID,
				"requested_date", req.Date, "requested_time", req.Time, "reason", res.Message)
		}
		return res, err
	}

	span.SetAttributes(attribute.String("appointment_id", created.ID))
	s.logger.Info("appointment requested", "appointment_id", created.ID, "provider_id", req.ProviderID,
		"requested_date", req.Date, "requested_time", req.Time)
	return ok(created.ID, "Appointment request created successfully"), nil
}

// GetAppointment returns an appointment to its requester or provider. Anyone
// else gets ErrNotFound.
func (s *Service) GetAppointment(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, readErr(err, "appointment %s", id)
	}
	if !owns(actor, a) {
		return model.Appointment{}, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func owns(actor Actor, a model.Appointment) bool {
	switch {
	case actor.IsRequester():
		return a.RequesterID == actor.ID
	case actor.IsProvider():
		return a.ProviderID == actor.ID
	}
	return false
}

// ListForRequester returns the requester's appointments newest first, each
// with the provider's public profile.
func (s *Service) ListForRequester(ctx context.Context, requesterID string, status model.Status) ([]model.RequesterAppointment, error) {
	appts, err := s.store.ListByRequester(ctx, requesterID, status)
	if err != nil {
		return nil, err
	}

	providers := map[string]model.ProviderSummary{}
	out := make([]model.RequesterAppointment, 0, len(appts))
	for _, a := range appts {
		summary, seen := providers[a.ProviderID]
		if !seen {
			p, err := s.store.GetProvider(ctx, a.ProviderID)
			if err != nil {
				return nil, fmt.Errorf("provider %s for appointment %s: %w", a.ProviderID, a.ID, err)
			}
			summary = p.Summary()
			providers[a.ProviderID] = summary
		}
		out = append(out, model.RequesterAppointment{Appointment: a, Provider: summary})
	}
	return out, nil
}

// ListForProvider returns the provider's appointments ordered by date then
// time, each with the requester's contact details.
func (s *Service) ListForProvider(ctx context.Context, providerID string, filter model.AppointmentFilter) ([]model.ProviderAppointment, error) {
	if filter.Date != "" {
		if _, err := availability.ParseDate(filter.Date); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
	}
	appts, err := s.store.ListByProvider(ctx, providerID, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(appts))
	seen := map[string]bool{}
	for _, a := range appts {
		if !seen[a.RequesterID] {
			seen[a.RequesterID] = true
			ids = append(ids, a.RequesterID)
		}
	}
	contacts, err := s.store.GetContacts(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]model.ProviderAppointment, 0, len(appts))
	for _, a := range appts {
		c, found := contacts[a.RequesterID]
		if !found {
			c = model.Contact{ID: a.RequesterID}
		}
		out = append(out, model.ProviderAppointment{Appointment: a, Requester: c})
	}
	return out, nil
}
