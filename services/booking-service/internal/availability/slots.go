package availability

import (
	"fmt"

	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
)

// State distinguishes why a day has no bookable slots.
type State string

const (
	StateUnavailable State = "unavailable"  // no schedule for that weekday
	StateOpen        State = "open"         // at least one slot is free
	StateFullyBooked State = "fully_booked" // scheduled, but every slot is taken or on a break
)

type Day struct {
	State State
	Slots []string
}

type window struct {
	start, end int
}

// GenerateSlots walks the schedule in SlotDuration steps from StartTime while the
// candidate is strictly before EndTime. A candidate inside any break [start, end)
// or present in booked is skipped. The result is in ascending time order.
func GenerateSlots(schedule model.WeeklyAvailability, booked map[string]struct{}) ([]string, error) {
	start, err := ParseClock(schedule.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	end, err := ParseClock(schedule.EndTime)
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	if schedule.SlotDuration <= 0 {
		return nil, fmt.Errorf("slot duration must be positive (got %d)", schedule.SlotDuration)
	}

	breaks := make([]window, 0, len(schedule.BreakTimes))
	for _, b := range schedule.BreakTimes {
		bs, err := ParseClock(b.Start)
		if err != nil {
			return nil, fmt.Errorf("break start: %w", err)
		}
		be, err := ParseClock(b.End)
		if err != nil {
			return nil, fmt.Errorf("break end: %w", err)
		}
		breaks = append(breaks, window{start: bs, end: be})
	}

	slots := []string{}
	for t := start; t < end; t += schedule.SlotDuration {
		if inBreak(t, breaks) {
			continue
		}
		label := FormatClock(t)
		if _, taken := booked[label]; taken {
			continue
		}
		slots = append(slots, label)
	}
	return slots, nil
}

func inBreak(t int, breaks []window) bool {
	for _, b := range breaks {
		if t >= b.start && t < b.end {
			return true
		}
	}
	return false
}

// ResolveDay answers "what is free" for one date. A nil schedule means the
// provider does not work that weekday.
func ResolveDay(schedule *model.WeeklyAvailability, booked map[string]struct{}) (Day, error) {
	if schedule == nil {
		return Day{State: StateUnavailable, Slots: []string{}}, nil
	}
	slots, err := GenerateSlots(*schedule, booked)
	if err != nil {
		return Day{}, err
	}
	if len(slots) == 0 {
		return Day{State: StateFullyBooked, Slots: slots}, nil
	}
	return Day{State: StateOpen, Slots: slots}, nil
}

// OnGrid reports whether clock is one of the schedule's slot start times,
// ignoring bookings.
func OnGrid(schedule model.WeeklyAvailability, clock string) (bool, error) {
	slots, err := GenerateSlots(schedule, nil)
	if err != nil {
		return false, err
	}
	for _, s := range slots {
		if s == clock {
			return true, nil
		}
	}
	return false, nil
}

// BookedSet collects the requested times of appointments that still hold a slot.
func BookedSet(appts []model.Appointment) map[string]struct{} {
	out := make(map[string]struct{}, len(appts))
	for _, a := range appts {
		if a.Status.Active() {
			out[a.RequestedTime] = struct{}{}
		}
	}
	return out
}
