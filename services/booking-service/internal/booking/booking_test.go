package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/repbook/libs/auth"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
)

// 2026-03-02 is a Monday.
const monday = "2026-03-02"

var (
	rep1 = Actor{ID: "rep-1", Role: auth.RoleProvider}
	rep2 = Actor{ID: "rep-2", Role: auth.RoleProvider}
)

func requester(id string) Actor { return Actor{ID: id, Role: auth.RoleRequester} }

func newFixture(t *testing.T) (*Service, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	mem.AddUser(model.Contact{ID: "user-rep-1", FullName: "Dana Officer", Email: "dana@example.test"})
	mem.AddUser(model.Contact{ID: "user-rep-2", FullName: "Ilse Clerk", Email: "ilse@example.test"})
	mem.AddUser(model.Contact{ID: "req-1", FullName: "Ali Requester", Email: "ali@example.test", Phone: "+100", Nationality: "NZ"})
	for _, p := range []model.Provider{
		{ID: "rep-1", UserID: "user-rep-1", Department: "Visas", Title: "Officer"},
		{ID: "rep-2", UserID: "user-rep-2", Department: "Permits", Title: "Clerk"},
	} {
		if err := mem.AddProvider(p); err != nil {
			t.Fatalf("AddProvider: %v", err)
		}
	}

	tick := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	svc := New(mem, slog.New(slog.NewTextHandler(io.Discard, nil)), WithClock(clock))
	return svc, mem
}

func mondaySchedule(t *testing.T, svc *Service, actor Actor, breaks ...model.BreakTime) {
	t.Helper()
	res, err := svc.SetAvailability(context.Background(), actor, AvailabilityInput{
		ProviderID: actor.ID, DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", SlotDuration: 30, BreakTimes: breaks,
	})
	if err != nil || !res.Success {
		t.Fatalf("SetAvailability: res=%+v err=%v", res, err)
	}
}

func book(t *testing.T, svc *Service, who Actor, providerID, date, clock string) Result {
	t.Helper()
	res, err := svc.CreateAppointment(context.Background(), who, BookingRequest{
		ProviderID: providerID, Date: date, Time: clock, Purpose: "visa interview",
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	return res
}

func TestSetAvailabilityCreatedThenReplaced(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	in := AvailabilityInput{ProviderID: "rep-1", DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", SlotDuration: 30,
		BreakTimes: []model.BreakTime{{Start: "10:00", End: "10:30"}}}

	first, err := svc.SetAvailability(ctx, rep1, in)
	if err != nil || !first.Success || !first.Created {
		t.Fatalf("expected created, got %+v err=%v", first, err)
	}
	in.BreakTimes = nil
	in.SlotDuration = 60
	second, err := svc.SetAvailability(ctx, rep1, in)
	if err != nil || !second.Success || second.Created || second.ID != first.ID {
		t.Fatalf("expected replaced row %s, got %+v err=%v", first.ID, second, err)
	}

	rows, err := svc.GetAvailability(ctx, "rep-1")
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}
	if len(rows) != 1 || rows[0].SlotDuration != 60 || len(rows[0].BreakTimes) != 0 {
		t.Fatalf("break list must be overwritten, got %+v", rows)
	}
}

func TestSetAvailabilityRefusals(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	base := AvailabilityInput{ProviderID: "rep-1", DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", SlotDuration: 30}

	cases := []struct {
		name  string
		actor Actor
		edit  func(*AvailabilityInput)
		want  Kind
	}{
		{"other provider", rep2, func(*AvailabilityInput) {}, KindForbidden},
		{"requester", requester("req-1"), func(*AvailabilityInput) {}, KindForbidden},
		{"bad weekday", rep1, func(in *AvailabilityInput) { in.DayOfWeek = 7 }, KindValidation},
		{"bad duration", rep1, func(in *AvailabilityInput) { in.SlotDuration = 20 }, KindValidation},
		{"bad clock", rep1, func(in *AvailabilityInput) { in.StartTime = "9:00" }, KindValidation},
		{"bad break", rep1, func(in *AvailabilityInput) { in.BreakTimes = []model.BreakTime{{Start: "12:00", End: "25:00"}} }, KindValidation},
	}
	for _, tc := range cases {
		in := base
		tc.edit(&in)
		res, err := svc.SetAvailability(ctx, tc.actor, in)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if res.Success || res.Kind != tc.want {
			t.Fatalf("%s: expected %s, got %+v", tc.name, tc.want, res)
		}
	}

	// Inverted hours are stored as given; they simply produce no slots.
	in := base
	in.StartTime, in.EndTime = "17:00", "09:00"
	if res, _ := svc.SetAvailability(ctx, rep1, in); !res.Success {
		t.Fatalf("inverted hours should be accepted, got %+v", res)
	}
	slots, err := svc.ListSlots(ctx, "rep-1", monday)
	if err != nil || slots.State != availability.StateFullyBooked || len(slots.Times) != 0 {
		t.Fatalf("unexpected slots %+v err=%v", slots, err)
	}
}

func TestDeleteAvailability(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)

	res, err := svc.DeleteAvailability(ctx, rep1, "rep-1", 1)
	if err != nil || !res.Success {
		t.Fatalf("delete: %+v %v", res, err)
	}
	res, _ = svc.DeleteAvailability(ctx, rep1, "rep-1", 1)
	if res.Kind != KindNotFound {
		t.Fatalf("second delete should be not found, got %+v", res)
	}
	slots, err := svc.ListSlots(ctx, "rep-1", monday)
	if err != nil || slots.State != availability.StateUnavailable || len(slots.Times) != 0 {
		t.Fatalf("expected unavailable day, got %+v err=%v", slots, err)
	}
}

func TestListSlotsWithLunchBreak(t *testing.T) {
	svc, _ := newFixture(t)
	mondaySchedule(t, svc, rep1, model.BreakTime{Start: "12:00", End: "13:00"})

	slots, err := svc.ListSlots(context.Background(), "rep-1", monday)
	if err != nil {
		t.Fatalf("ListSlots: %v", err)
	}
	if slots.State != availability.StateOpen || slots.DayOfWeek != 1 {
		t.Fatalf("unexpected day %+v", slots)
	}
	if len(slots.Times) != 14 || slots.Times[0] != "09:00" || slots.Times[13] != "16:30" {
		t.Fatalf("unexpected slots %v", slots.Times)
	}
	for _, s := range slots.Times {
		if s == "12:00" || s == "12:30" {
			t.Fatalf("break slot %s offered", s)
		}
	}
}

func TestListSlotsInputErrors(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	if _, err := svc.ListSlots(ctx, "rep-1", "2026-02-30"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := svc.ListSlots(ctx, "nobody", monday); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPendingHidesSlotUntilRejected(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)

	res := book(t, svc, requester("req-1"), "rep-1", monday, "10:00")
	if !res.Success {
		t.Fatalf("booking refused: %+v", res)
	}
	slots, _ := svc.ListSlots(ctx, "rep-1", monday)
	if contains(slots.Times, "10:00") {
		t.Fatal("pending appointment should hide 10:00")
	}

	rej, err := svc.TransitionTo(ctx, rep1, res.ID, "rejected", "double booked elsewhere", "")
	if err != nil || !rej.Success {
		t.Fatalf("reject: %+v %v", rej, err)
	}
	slots, _ = svc.ListSlots(ctx, "rep-1", monday)
	if !contains(slots.Times, "10:00") {
		t.Fatal("10:00 should reappear after rejection")
	}
}

func TestConcurrentBookingsHaveOneWinner(t *testing.T) {
	svc, mem := newFixture(t)
	mondaySchedule(t, svc, rep1)

	const n = 32
	results := make([]Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.CreateAppointment(context.Background(), requester(fmt.Sprintf("req-%d", i)), BookingRequest{
				ProviderID: "rep-1", Date: monday, Time: "11:00", Purpose: "renewal",
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("booking %d failed hard: %v", i, errs[i])
		}
		switch {
		case results[i].Success:
			wins++
		case results[i].Kind != KindConflict:
			t.Fatalf("loser should see a conflict, got %+v", results[i])
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	active, _ := mem.ListActiveByProviderDate(context.Background(), "rep-1", monday)
	if len(active) != 1 {
		t.Fatalf("expected one active appointment, got %d", len(active))
	}
}

func TestOnePendingPerRequesterPerDay(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)
	mondaySchedule(t, svc, rep2)
	ali := requester("req-1")

	first := book(t, svc, ali, "rep-1", monday, "09:00")
	if !first.Success {
		t.Fatalf("first booking refused: %+v", first)
	}
	second := book(t, svc, ali, "rep-2", monday, "10:00")
	if second.Success || second.Kind != KindConflict || second.Message != msgPendingSameDay {
		t.Fatalf("second pending booking on the same day should conflict, got %+v", second)
	}
	if other := book(t, svc, ali, "rep-2", "2026-03-09", "10:00"); !other.Success {
		t.Fatalf("another date should be fine, got %+v", other)
	}

	if res, _ := svc.CancelAppointment(ctx, ali, first.ID); !res.Success {
		t.Fatalf("cancel: %+v", res)
	}
	third := book(t, svc, ali, "rep-2", monday, "10:00")
	if !third.Success {
		t.Fatalf("booking after cancel should succeed, got %+v", third)
	}

	// An accepted appointment does not count against the requester.
	if res, _ := svc.TransitionTo(ctx, rep2, third.ID, "accepted", "", ""); !res.Success {
		t.Fatalf("accept: %+v", res)
	}
	if fourth := book(t, svc, ali, "rep-1", monday, "14:00"); !fourth.Success {
		t.Fatalf("accepted appointment should not block a new request, got %+v", fourth)
	}
}

func TestCreateAppointmentRefusals(t *testing.T) {
	svc, _ := newFixture(t)
	mondaySchedule(t, svc, rep1, model.BreakTime{Start: "12:00", End: "13:00"})
	ali := requester("req-1")

	cases := []struct {
		name     string
		actor    Actor
		provider string
		date     string
		clock    string
		want     Kind
	}{
		{"provider cannot book", rep2, "rep-1", monday, "09:00", KindForbidden},
		{"unknown provider", ali, "rep-9", monday, "09:00", KindNotFound},
		{"bad date", ali, "rep-1", "02-03-2026", "09:00", KindValidation},
		{"bad time", ali, "rep-1", monday, "9am", KindValidation},
		{"off grid", ali, "rep-1", monday, "09:10", KindValidation},
		{"inside break", ali, "rep-1", monday, "12:30", KindValidation},
		{"day off", ali, "rep-1", "2026-03-03", "09:00", KindValidation},
	}
	for _, tc := range cases {
		res := book(t, svc, tc.actor, tc.provider, tc.date, tc.clock)
		if res.Success || res.Kind != tc.want {
			t.Fatalf("%s: expected %s, got %+v", tc.name, tc.want, res)
		}
	}

	res, err := svc.CreateAppointment(context.Background(), ali, BookingRequest{ProviderID: "rep-1", Date: monday, Time: "09:00", Purpose: "  "})
	if err != nil || res.Kind != KindValidation {
		t.Fatalf("blank purpose: %+v %v", res, err)
	}
}

func TestDailyCap(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)
	if res, _ := svc.UpdateProviderProfile(ctx, rep1, "rep-1", []model.ProviderUpdate{model.SetMaxAppointmentsPerDay(2)}); !res.Success {
		t.Fatalf("set cap: %+v", res)
	}

	book(t, svc, requester("a"), "rep-1", monday, "09:00")
	book(t, svc, requester("b"), "rep-1", monday, "09:30")
	third := book(t, svc, requester("c"), "rep-1", monday, "10:00")
	if third.Success || third.Kind != KindConflict {
		t.Fatalf("cap should refuse third booking, got %+v", third)
	}
	slots, _ := svc.ListSlots(ctx, "rep-1", monday)
	if slots.State != availability.StateFullyBooked || len(slots.Times) != 0 {
		t.Fatalf("capped day should be fully booked, got %+v", slots)
	}
}

func TestExactTimeMatchIgnoresOverlap(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)
	if res := book(t, svc, requester("a"), "rep-1", monday, "09:00"); !res.Success {
		t.Fatalf("book 09:00: %+v", res)
	}

	// Switching to 15 minute slots puts 09:15 on the grid while the 30 minute
	// 09:00 appointment still runs. Only identical start times conflict.
	res, _ := svc.SetAvailability(ctx, rep1, AvailabilityInput{ProviderID: "rep-1", DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", SlotDuration: 15})
	if !res.Success {
		t.Fatalf("reschedule: %+v", res)
	}
	if overlap := book(t, svc, requester("b"), "rep-1", monday, "09:15"); !overlap.Success {
		t.Fatalf("overlapping start time is not detected, expected success, got %+v", overlap)
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	svc, mem := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)

	const rounds = 16
	for round := 0; round < rounds; round++ {
		who := requester(fmt.Sprintf("racer-%d", round))
		appt := book(t, svc, who, "rep-1", monday, availability.FormatClock(9*60+30*round))
		if !appt.Success {
			t.Fatalf("round %d: booking failed: %+v", round, appt)
		}

		var accept, reject, cancel Result
		var errs [3]error
		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			accept, errs[0] = svc.TransitionTo(ctx, rep1, appt.ID, "accepted", "", "")
		}()
		go func() {
			defer wg.Done()
			reject, errs[1] = svc.TransitionTo(ctx, rep1, appt.ID, "rejected", "full", "")
		}()
		go func() {
			defer wg.Done()
			cancel, errs[2] = svc.CancelAppointment(ctx, who, appt.ID)
		}()
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("round %d: call %d failed hard: %v", round, i, err)
			}
		}
		for _, res := range []Result{accept, reject, cancel} {
			if !res.Success && res.Kind != KindInvalidTransition && res.Kind != KindConflict {
				t.Fatalf("round %d: unexpected refusal %+v", round, res)
			}
		}
		if accept.Success && reject.Success {
			t.Fatalf("round %d: accept and reject both succeeded", round)
		}
		if reject.Success && cancel.Success {
			t.Fatalf("round %d: reject and cancel both succeeded", round)
		}

		var want model.Status
		switch {
		case cancel.Success:
			want = model.StatusCancelled
		case accept.Success:
			want = model.StatusAccepted
		case reject.Success:
			want = model.StatusRejected
		default:
			t.Fatalf("round %d: nobody won: %+v %+v %+v", round, accept, reject, cancel)
		}
		got, err := mem.GetAppointment(ctx, appt.ID)
		if err != nil || got.Status != want {
			t.Fatalf("round %d: stored status %s, want %s (%v)", round, got.Status, want, err)
		}
	}

	wins := 0
	for _, evt := range mem.Events() {
		if evt.EventType != outbox.AppointmentRequested {
			wins++
		}
	}
	if wins < rounds || wins > 2*rounds {
		t.Fatalf("expected one or two transition events per round, got %d", wins)
	}
}

func TestTransitionGuard(t *testing.T) {
	ali := requester("req-1")
	pending := model.Appointment{ID: "a", RequesterID: "req-1", ProviderID: "rep-1", Status: model.StatusPending}
	accepted := pending
	accepted.Status = model.StatusAccepted
	completed := pending
	completed.Status = model.StatusCompleted

	cases := []struct {
		name  string
		appt  model.Appointment
		actor Actor
		u     model.AppointmentUpdate
		want  Kind
	}{
		{"accept", pending, rep1, model.Accept{}, ""},
		{"reject with reason", pending, rep1, model.Reject{Reason: "no capacity"}, ""},
		{"reject without reason", pending, rep1, model.Reject{}, KindValidation},
		{"requester cancels pending", pending, ali, model.Cancel{}, ""},
		{"complete accepted", accepted, rep1, model.Complete{}, ""},
		{"requester cancels accepted", accepted, ali, model.Cancel{}, ""},
		{"reject accepted", accepted, rep1, model.Reject{Reason: "late"}, KindInvalidTransition},
		{"complete pending", pending, rep1, model.Complete{}, KindInvalidTransition},
		{"leave completed", completed, rep1, model.Accept{}, KindInvalidTransition},
		{"cancel completed", completed, ali, model.Cancel{}, KindInvalidTransition},
		{"requester accepts", pending, ali, model.Accept{}, KindForbidden},
		{"provider cancels", pending, rep1, model.Cancel{}, KindForbidden},
		{"someone else's appointment", pending, rep2, model.Accept{}, KindForbidden},
		{"another requester", pending, requester("req-2"), model.Cancel{}, KindForbidden},
	}
	for _, tc := range cases {
		res, allowed := CheckTransition(tc.appt, tc.actor, tc.u)
		if tc.want == "" {
			if !allowed {
				t.Fatalf("%s: expected allowed, got %+v", tc.name, res)
			}
			continue
		}
		if allowed || res.Kind != tc.want {
			t.Fatalf("%s: expected %s, got allowed=%v %+v", tc.name, tc.want, allowed, res)
		}
	}
}

func TestTransitionLifecycle(t *testing.T) {
	svc, mem := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)
	ali := requester("req-1")
	appt := book(t, svc, ali, "rep-1", monday, "09:00")

	res, err := svc.TransitionTo(ctx, rep1, appt.ID, "rejected", "", "")
	if err != nil || res.Kind != KindValidation {
		t.Fatalf("reject without reason: %+v %v", res, err)
	}
	if res, _ := svc.TransitionTo(ctx, rep1, appt.ID, "accepted", "ignored reason", "ignored notes"); !res.Success {
		t.Fatalf("accept: %+v", res)
	}
	got, err := svc.GetAppointment(ctx, ali, appt.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Status != model.StatusAccepted || got.RejectionReason != "" || got.Notes != "" {
		t.Fatalf("side data should be ignored on accept, got %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatal("updatedAt not refreshed")
	}

	if res, _ := svc.TransitionTo(ctx, rep1, appt.ID, "rejected", "late", ""); res.Kind != KindInvalidTransition {
		t.Fatalf("accepted->rejected should be invalid, got %+v", res)
	}
	if res, _ := svc.TransitionTo(ctx, rep1, appt.ID, "completed", "", "passport collected"); !res.Success {
		t.Fatalf("complete: %+v", res)
	}
	for _, status := range []string{"accepted", "rejected", "cancelled", "completed", "pending"} {
		if res, _ := svc.TransitionTo(ctx, rep1, appt.ID, status, "x", ""); res.Kind != KindInvalidTransition {
			t.Fatalf("completed->%s should be invalid, got %+v", status, res)
		}
	}
	if res, _ := svc.CancelAppointment(ctx, ali, appt.ID); res.Kind != KindInvalidTransition {
		t.Fatalf("cancel completed should be invalid, got %+v", res)
	}
	if res, _ := svc.TransitionTo(ctx, rep1, "missing", "accepted", "", ""); res.Kind != KindNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}
	if res, _ := svc.TransitionTo(ctx, rep1, appt.ID, "archived", "", ""); res.Kind != KindValidation {
		t.Fatalf("unknown status should fail validation, got %+v", res)
	}

	final, _ := svc.GetAppointment(ctx, rep1, appt.ID)
	if final.Notes != "passport collected" {
		t.Fatalf("completion notes not stored: %+v", final)
	}
	if _, err := svc.GetAppointment(ctx, rep2, appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other provider must not see the appointment, got %v", err)
	}

	var types []string
	for _, evt := range mem.Events() {
		types = append(types, evt.EventType)
	}
	want := []string{outbox.AppointmentRequested, outbox.AppointmentAccepted, outbox.AppointmentCompleted}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("events %v, want %v", types, want)
	}
}

func TestProviderListSortedAndEnriched(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)
	if res, _ := svc.SetAvailability(ctx, rep1, AvailabilityInput{ProviderID: "rep-1", DayOfWeek: 2, StartTime: "09:00", EndTime: "12:00", SlotDuration: 60}); !res.Success {
		t.Fatalf("tuesday: %+v", res)
	}

	book(t, svc, requester("req-1"), "rep-1", "2026-03-03", "11:00")
	book(t, svc, requester("b"), "rep-1", monday, "15:00")
	book(t, svc, requester("c"), "rep-1", monday, "09:30")

	list, err := svc.ListForProvider(ctx, "rep-1", model.AppointmentFilter{})
	if err != nil {
		t.Fatalf("ListForProvider: %v", err)
	}
	var order []string
	for _, a := range list {
		order = append(order, a.RequestedDate+" "+a.RequestedTime)
	}
	want := []string{monday + " 09:30", monday + " 15:00", "2026-03-03 11:00"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("order %v, want %v", order, want)
	}
	last := list[2].Requester
	if last.FullName != "Ali Requester" || last.Phone != "+100" || last.Nationality != "NZ" {
		t.Fatalf("requester contact not attached: %+v", last)
	}

	mine, err := svc.ListForRequester(ctx, "req-1", "")
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListForRequester: %+v %v", mine, err)
	}
	if mine[0].Provider.FullName != "Dana Officer" || mine[0].Provider.Department != "Visas" {
		t.Fatalf("provider summary not attached: %+v", mine[0].Provider)
	}
}

func TestRequesterListNewestFirst(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)
	ali := requester("req-1")
	older := book(t, svc, ali, "rep-1", monday, "09:00")
	newer := book(t, svc, ali, "rep-1", "2026-03-09", "09:00")

	all, _ := svc.ListForRequester(ctx, "req-1", "")
	if len(all) != 2 || all[0].ID != newer.ID || all[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}
	svc.CancelAppointment(ctx, ali, older.ID)
	cancelled, _ := svc.ListForRequester(ctx, "req-1", model.StatusCancelled)
	if len(cancelled) != 1 || cancelled[0].ID != older.ID {
		t.Fatalf("status filter: %+v", cancelled)
	}
}

func TestProviderProfileAndDirectory(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()
	mondaySchedule(t, svc, rep1)

	res, err := svc.UpdateProviderProfile(ctx, rep1, "rep-1", []model.ProviderUpdate{
		model.SetTitle("Senior Officer"),
		model.SetSpecializations([]string{"work", "family"}),
	})
	if err != nil || !res.Success {
		t.Fatalf("update: %+v %v", res, err)
	}
	if res, _ := svc.UpdateProviderProfile(ctx, rep2, "rep-1", []model.ProviderUpdate{model.SetTitle("x")}); res.Kind != KindForbidden {
		t.Fatalf("other provider should be forbidden, got %+v", res)
	}
	if res, _ := svc.UpdateProviderProfile(ctx, rep1, "rep-1", []model.ProviderUpdate{model.SetMaxAppointmentsPerDay(-1)}); res.Kind != KindValidation {
		t.Fatalf("negative cap should fail validation, got %+v", res)
	}

	p, err := svc.GetProvider(ctx, "rep-1")
	if err != nil || p.Title != "Senior Officer" || len(p.Specializations) != 2 || p.Department != "Visas" {
		t.Fatalf("unexpected provider %+v err=%v", p, err)
	}

	dir, err := svc.ListProvidersWithAvailability(ctx)
	if err != nil || len(dir) != 2 {
		t.Fatalf("directory: %+v %v", dir, err)
	}
	if dir[0].Provider.ID != "rep-1" || len(dir[0].Availability) != 1 || len(dir[1].Availability) != 0 {
		t.Fatalf("unexpected directory %+v", dir)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
