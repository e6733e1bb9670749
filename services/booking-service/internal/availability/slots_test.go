package availability

import (
	"testing"

	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
)

func workday() model.WeeklyAvailability {
	return model.WeeklyAvailability{
		ProviderID:   "rep-1",
		DayOfWeek:    1,
		StartTime:    "09:00",
		EndTime:      "17:00",
		SlotDuration: 30,
		BreakTimes:   []model.BreakTime{{Start: "12:00", End: "13:00"}},
	}
}

func TestGenerateSlots_LunchBreak(t *testing.T) {
	slots, err := GenerateSlots(workday(), nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 14 {
		t.Fatalf("expected 14 slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != "09:00" || slots[len(slots)-1] != "16:30" {
		t.Fatalf("unexpected bounds %s..%s", slots[0], slots[len(slots)-1])
	}
	for _, s := range slots {
		if s == "12:00" || s == "12:30" {
			t.Fatalf("slot %s falls inside the break", s)
		}
	}
}

func TestGenerateSlots_BreakIsHalfOpen(t *testing.T) {
	sched := workday()
	sched.BreakTimes = []model.BreakTime{{Start: "12:00", End: "12:30"}}
	slots, err := GenerateSlots(sched, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	has := map[string]bool{}
	for _, s := range slots {
		has[s] = true
	}
	if has["12:00"] {
		t.Fatal("break start must be excluded")
	}
	if !has["12:30"] {
		t.Fatal("break end must be bookable")
	}
}

func TestGenerateSlots_RemainderStopsBeforeEnd(t *testing.T) {
	sched := model.WeeklyAvailability{StartTime: "09:00", EndTime: "10:40", SlotDuration: 45}
	slots, err := GenerateSlots(sched, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []string{"09:00", "09:45", "10:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}
}

func TestGenerateSlots_MinuteComparisonNotString(t *testing.T) {
	// "9:00"-style strings would sort after "10:00"; the walk must compare minutes.
	sched := model.WeeklyAvailability{StartTime: "08:00", EndTime: "10:00", SlotDuration: 60}
	slots, err := GenerateSlots(sched, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 2 || slots[0] != "08:00" || slots[1] != "09:00" {
		t.Fatalf("unexpected slots %v", slots)
	}
}

func TestGenerateSlots_SkipsBooked(t *testing.T) {
	booked := BookedSet([]model.Appointment{
		{RequestedTime: "10:00", Status: model.StatusPending},
		{RequestedTime: "11:00", Status: model.StatusAccepted},
		{RequestedTime: "14:00", Status: model.StatusRejected},
		{RequestedTime: "15:00", Status: model.StatusCancelled},
		{RequestedTime: "16:00", Status: model.StatusCompleted},
	})
	slots, err := GenerateSlots(workday(), booked)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	has := map[string]bool{}
	for _, s := range slots {
		has[s] = true
	}
	if has["10:00"] || has["11:00"] {
		t.Fatal("active appointments must block their slot")
	}
	if !has["14:00"] || !has["15:00"] || !has["16:00"] {
		t.Fatal("terminal appointments must not block their slot")
	}
}

func TestGenerateSlots_EmptyWhenStartNotBeforeEnd(t *testing.T) {
	sched := model.WeeklyAvailability{StartTime: "17:00", EndTime: "09:00", SlotDuration: 30}
	slots, err := GenerateSlots(sched, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestResolveDay_States(t *testing.T) {
	day, err := ResolveDay(nil, nil)
	if err != nil || day.State != StateUnavailable || len(day.Slots) != 0 {
		t.Fatalf("expected unavailable, got %+v (%v)", day, err)
	}

	sched := model.WeeklyAvailability{StartTime: "09:00", EndTime: "10:00", SlotDuration: 30}
	day, err = ResolveDay(&sched, map[string]struct{}{"09:00": {}, "09:30": {}})
	if err != nil || day.State != StateFullyBooked {
		t.Fatalf("expected fully booked, got %+v (%v)", day, err)
	}

	day, err = ResolveDay(&sched, map[string]struct{}{"09:00": {}})
	if err != nil || day.State != StateOpen || len(day.Slots) != 1 || day.Slots[0] != "09:30" {
		t.Fatalf("expected one open slot, got %+v (%v)", day, err)
	}
}

func TestParseClockAndWeekday(t *testing.T) {
	for _, bad := range []string{"9:00", "24:00", "12:60", "12-30", "ab:cd", ""} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if m, err := ParseClock("23:59"); err != nil || m != 23*60+59 {
		t.Fatalf("unexpected parse result %d (%v)", m, err)
	}

	// 2026-03-01 is a Sunday.
	if wd, err := Weekday("2026-03-01"); err != nil || wd != 0 {
		t.Fatalf("expected Sunday (0), got %d (%v)", wd, err)
	}
	if wd, err := Weekday("2026-03-07"); err != nil || wd != 6 {
		t.Fatalf("expected Saturday (6), got %d (%v)", wd, err)
	}
	if _, err := Weekday("2026-02-30"); err == nil {
		t.Fatal("expected invalid calendar date to fail")
	}
}

func TestGenerateSlots_EveningUntilMidnight(t *testing.T) {
	sched := workday()
	sched.StartTime, sched.EndTime, sched.BreakTimes = "22:00", "23:59", nil
	slots, err := GenerateSlots(sched, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []string{"22:00", "22:30", "23:00", "23:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %v, got %v", want, slots)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, slots)
		}
	}

	sched.EndTime = "24:00"
	if _, err := GenerateSlots(sched, nil); err == nil {
		t.Fatal("24:00 is not a valid end time")
	}
}

func TestOnGrid(t *testing.T) {
	ok, err := OnGrid(workday(), "09:30")
	if err != nil || !ok {
		t.Fatalf("09:30 should be on the grid (%v)", err)
	}
	ok, _ = OnGrid(workday(), "09:15")
	if ok {
		t.Fatal("09:15 is between slots")
	}
	ok, _ = OnGrid(workday(), "12:30")
	if ok {
		t.Fatal("12:30 is inside the break")
	}
}
