package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

// AvailabilityInput is a full weekday schedule; it replaces any existing row.
type AvailabilityInput struct {
	ProviderID   string
	DayOfWeek    int
	StartTime    string
	EndTime      string
	SlotDuration int
	BreakTimes   []model.BreakTime
}

func validateAvailability(in AvailabilityInput) (Result, bool) {
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return refuse(KindValidation, "day_of_week must be between 0 (Sunday) and 6 (Saturday)"), false
	}
	if _, err := availability.ParseClock(in.StartTime); err != nil {
		return refuse(KindValidation, "start_time: %v", err), false
	}
	if _, err := availability.ParseClock(in.EndTime); err != nil {
		return refuse(KindValidation, "end_time: %v", err), false
	}
	if !model.ValidSlotDuration(in.SlotDuration) {
		return refuse(KindValidation, "slot_duration must be one of %v minutes", model.AllowedSlotDurations), false
	}
	for i, b := range in.BreakTimes {
		if _, err := availability.ParseClock(b.Start); err != nil {
			return refuse(KindValidation, "break %d start: %v", i, err), false
		}
		if _, err := availability.ParseClock(b.End); err != nil {
			return refuse(KindValidation, "break %d end: %v", i, err), false
		}
	}
	return Result{}, true
}

// SetAvailability creates or fully replaces the provider's schedule for one
// weekday. Breaks are stored in the given order and are not checked against
// the working hours or each other.
func (s *Service) SetAvailability(ctx context.Context, actor Actor, in AvailabilityInput) (res Result, err error) {
	ctx, span := s.start(ctx, "booking.set_availability",
		attribute.String("provider_id", in.ProviderID), attribute.Int("day_of_week", in.DayOfWeek))
	defer func() { finish(span, res, err) }()

	if !actor.IsProvider() || actor.ID != in.ProviderID {
		return refuse(KindForbidden, "You can only manage your own availability"), nil
	}
	if res, valid := validateAvailability(in); !valid {
		return res, nil
	}

	row := model.WeeklyAvailability{
		ProviderID:   in.ProviderID,
		DayOfWeek:    in.DayOfWeek,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		SlotDuration: in.SlotDuration,
		BreakTimes:   append([]model.BreakTime(nil), in.BreakTimes...),
	}
	var saved model.WeeklyAvailability
	var created bool
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetProvider(ctx, in.ProviderID); err != nil {
			if storage.IsNotFound(err) {
				return abort(KindNotFound, "Provider not found")
			}
			return err
		}
		var err error
		saved, created, err = tx.UpsertAvailability(ctx, row)
		return err
	})
	if err != nil {
		return settle(err, Result{})
	}

	msg := "Availability updated"
	if created {
		msg = "Availability created"
	}
	s.logger.Info("availability saved", "provider_id", in.ProviderID, "day_of_week", in.DayOfWeek, "created", created)
	res = ok(saved.ID, msg)
	res.Created = created
	return res, nil
}

// GetAvailability returns the provider's weekly schedule ordered by weekday.
func (s *Service) GetAvailability(ctx context.Context, providerID string) ([]model.WeeklyAvailability, error) {
	if _, err := s.store.GetProvider(ctx, providerID); err != nil {
		return nil, readErr(err, "provider %s", providerID)
	}
	rows, err := s.store.ListAvailability(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) DeleteAvailability(ctx context.Context, actor Actor, providerID string, dayOfWeek int) (res Result, err error) {
	ctx, span := s.start(ctx, "booking.delete_availability",
		attribute.String("provider_id", providerID), attribute.Int("day_of_week", dayOfWeek))
	defer func() { finish(span, res, err) }()

	if !actor.IsProvider() || actor.ID != providerID {
		return refuse(KindForbidden, "You can only manage your own availability"), nil
	}
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		err := tx.DeleteAvailability(ctx, providerID, dayOfWeek)
		if storage.IsNotFound(err) {
			return abort(KindNotFound, "No availability set for day %d", dayOfWeek)
		}
		return err
	})
	if err == nil {
		s.logger.Info("availability deleted", "provider_id", providerID, "day_of_week", dayOfWeek)
	}
	return settle(err, ok("", "Availability deleted"))
}

// Slots is the bookable view of one provider on one date.
type Slots struct {
	ProviderID string
	Date       string
	DayOfWeek  int
	State      availability.State
	Times      []string
}

// ListSlots derives the free slot start times for date from the weekday
// schedule, minus breaks and minus times held by pending or accepted
// appointments. A provider at their daily cap is reported fully booked.
func (s *Service) ListSlots(ctx context.Context, providerID, date string) (Slots, error) {
	day, err := availability.Weekday(date)
	if err != nil {
		return Slots{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	provider, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return Slots{}, readErr(err, "provider %s", providerID)
	}

	var schedule *model.WeeklyAvailability
	row, err := s.store.GetAvailability(ctx, providerID, day)
	switch {
	case err == nil:
		schedule = &row
	case !storage.IsNotFound(err):
		return Slots{}, err
	}

	active, err := s.store.ListActiveByProviderDate(ctx, providerID, date)
	if err != nil {
		return Slots{}, err
	}
	resolved, err := availability.ResolveDay(schedule, availability.BookedSet(active))
	if err != nil {
		return Slots{}, fmt.Errorf("availability for %s day %d: %w", providerID, day, err)
	}
	if schedule != nil && atDailyCap(provider, len(active)) {
		resolved = availability.Day{State: availability.StateFullyBooked, Slots: []string{}}
	}
	return Slots{
		ProviderID: providerID,
		Date:       date,
		DayOfWeek:  day,
		State:      resolved.State,
		Times:      resolved.Slots,
	}, nil
}

func atDailyCap(p model.Provider, active int) bool {
	return p.MaxAppointmentsPerDay > 0 && active >= p.MaxAppointmentsPerDay
}

func readErr(err error, format string, args ...any) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return err
}
