package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/outbox"
)

type availKey struct {
	providerID string
	day        int
}

type dayKey struct {
	ownerID string
	date    string
}

type slotKey struct {
	providerID string
	date       string
	time       string
}

// Memory is an in-process store for local runs and tests. Transactions are
// serialized on one mutex and undone from a log when fn fails, so it gives the
// same booking guarantees as Postgres within a single process.
type Memory struct {
	mu sync.RWMutex
	st *memState
}

func NewMemory() *Memory {
	return &Memory{st: &memState{
		users:          map[string]model.Contact{},
		providers:      map[string]model.Provider{},
		availability:   map[availKey]model.WeeklyAvailability{},
		appts:          map[string]model.Appointment{},
		seq:            map[string]int64{},
		activeSlots:    map[slotKey]string{},
		pendingDays:    map[dayKey]string{},
		byProviderDate: map[dayKey]map[string]struct{}{},
	}}
}

// AddUser registers an identity record, as the identity service would.
func (m *Memory) AddUser(c model.Contact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.users[c.ID] = c
}

// AddProvider registers a provider profile. The backing user must exist.
func (m *Memory) AddProvider(p model.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.users[p.UserID]; !ok {
		return fmt.Errorf("provider %s: user %s: %w", p.ID, p.UserID, ErrNotFound)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.Specializations = append([]string(nil), p.Specializations...)
	m.st.providers[p.ID] = p
	return nil
}

// Events returns the recorded events that have not been drained yet, oldest first.
func (m *Memory) Events() []outbox.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]outbox.Record(nil), m.st.events...)
}

// DiscardEvents stops recording events. Use it when no publisher will drain
// them, or they pile up for the life of the process.
func (m *Memory) DiscardEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.discardEvents = true
	m.st.events = nil
}

// Drain implements outbox.Source. Published records are dropped from memory.
// It assumes a single publisher.
func (m *Memory) Drain(ctx context.Context, limit int, fn func([]outbox.Record) error) (int, error) {
	m.mu.RLock()
	end := limit
	if end > len(m.st.events) {
		end = len(m.st.events)
	}
	batch := append([]outbox.Record(nil), m.st.events[:end]...)
	m.mu.RUnlock()

	if len(batch) == 0 {
		return 0, nil
	}
	if err := fn(batch); err != nil {
		return 0, err
	}
	m.mu.Lock()
	if end > len(m.st.events) {
		end = len(m.st.events)
	}
	m.st.events = append([]outbox.Record(nil), m.st.events[end:]...)
	m.mu.Unlock()
	return len(batch), nil
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{memState: m.st}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()
	return fn(tx)
}

func (m *Memory) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetProvider(ctx, id)
}

func (m *Memory) ListProviders(ctx context.Context) ([]model.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListProviders(ctx)
}

func (m *Memory) GetAvailability(ctx context.Context, providerID string, dayOfWeek int) (model.WeeklyAvailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetAvailability(ctx, providerID, dayOfWeek)
}

func (m *Memory) ListAvailability(ctx context.Context, providerID string) ([]model.WeeklyAvailability, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListAvailability(ctx, providerID)
}

func (m *Memory) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetAppointment(ctx, id)
}

func (m *Memory) ListActiveByProviderDate(ctx context.Context, providerID, date string) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListActiveByProviderDate(ctx, providerID, date)
}

func (m *Memory) CountPendingByRequesterDate(ctx context.Context, requesterID, date string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.CountPendingByRequesterDate(ctx, requesterID, date)
}

func (m *Memory) ListByRequester(ctx context.Context, requesterID string, status model.Status) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListByRequester(ctx, requesterID, status)
}

func (m *Memory) ListByProvider(ctx context.Context, providerID string, filter model.AppointmentFilter) ([]model.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.ListByProvider(ctx, providerID, filter)
}

func (m *Memory) GetContacts(ctx context.Context, userIDs []string) (map[string]model.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st.GetContacts(ctx, userIDs)
}

// memState holds the data and unique indexes. Callers hold Memory.mu.
type memState struct {
	users        map[string]model.Contact
	providers    map[string]model.Provider
	availability map[availKey]model.WeeklyAvailability
	appts        map[string]model.Appointment
	seq          map[string]int64
	nextSeq      int64

	activeSlots    map[slotKey]string
	pendingDays    map[dayKey]string
	byProviderDate map[dayKey]map[string]struct{}

	events        []outbox.Record
	nextEventID   int64
	discardEvents bool
}

func (s *memState) GetProvider(_ context.Context, id string) (model.Provider, error) {
	p, ok := s.providers[id]
	if !ok {
		return model.Provider{}, ErrNotFound
	}
	return s.withIdentity(p), nil
}

func (s *memState) ListProviders(_ context.Context) ([]model.Provider, error) {
	out := make([]model.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, s.withIdentity(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) withIdentity(p model.Provider) model.Provider {
	u := s.users[p.UserID]
	p.FullName, p.Email = u.FullName, u.Email
	p.Specializations = append([]string(nil), p.Specializations...)
	return p
}

func (s *memState) GetAvailability(_ context.Context, providerID string, dayOfWeek int) (model.WeeklyAvailability, error) {
	a, ok := s.availability[availKey{providerID, dayOfWeek}]
	if !ok {
		return model.WeeklyAvailability{}, ErrNotFound
	}
	return copyAvailability(a), nil
}

func (s *memState) ListAvailability(_ context.Context, providerID string) ([]model.WeeklyAvailability, error) {
	var out []model.WeeklyAvailability
	for day := 0; day < 7; day++ {
		if a, ok := s.availability[availKey{providerID, day}]; ok {
			out = append(out, copyAvailability(a))
		}
	}
	return out, nil
}

func (s *memState) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (s *memState) ListActiveByProviderDate(_ context.Context, providerID, date string) ([]model.Appointment, error) {
	var out []model.Appointment
	for id := range s.byProviderDate[dayKey{providerID, date}] {
		if a := s.appts[id]; a.Status.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedTime < out[j].RequestedTime })
	return out, nil
}

func (s *memState) CountPendingByRequesterDate(_ context.Context, requesterID, date string) (int, error) {
	if _, ok := s.pendingDays[dayKey{requesterID, date}]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *memState) ListByRequester(_ context.Context, requesterID string, status model.Status) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.RequesterID == requesterID && (status == "" || a.Status == status) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

func (s *memState) ListByProvider(_ context.Context, providerID string, filter model.AppointmentFilter) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.ProviderID != providerID {
			continue
		}
		if filter.Date != "" && a.RequestedDate != filter.Date {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedDate != out[j].RequestedDate {
			return out[i].RequestedDate < out[j].RequestedDate
		}
		if out[i].RequestedTime != out[j].RequestedTime {
			return out[i].RequestedTime < out[j].RequestedTime
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out, nil
}

func (s *memState) GetContacts(_ context.Context, userIDs []string) (map[string]model.Contact, error) {
	out := make(map[string]model.Contact, len(userIDs))
	for _, id := range userIDs {
		if c, ok := s.users[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

func (s *memState) index(a model.Appointment) {
	pd := dayKey{a.ProviderID, a.RequestedDate}
	if s.byProviderDate[pd] == nil {
		s.byProviderDate[pd] = map[string]struct{}{}
	}
	s.byProviderDate[pd][a.ID] = struct{}{}
	if a.Status.Active() {
		s.activeSlots[slotKey{a.ProviderID, a.RequestedDate, a.RequestedTime}] = a.ID
	}
	if a.Status == model.StatusPending {
		s.pendingDays[dayKey{a.RequesterID, a.RequestedDate}] = a.ID
	}
}

func (s *memState) unindex(a model.Appointment) {
	pd := dayKey{a.ProviderID, a.RequestedDate}
	delete(s.byProviderDate[pd], a.ID)
	if len(s.byProviderDate[pd]) == 0 {
		delete(s.byProviderDate, pd)
	}
	slot := slotKey{a.ProviderID, a.RequestedDate, a.RequestedTime}
	if s.activeSlots[slot] == a.ID {
		delete(s.activeSlots, slot)
	}
	day := dayKey{a.RequesterID, a.RequestedDate}
	if s.pendingDays[day] == a.ID {
		delete(s.pendingDays, day)
	}
}

// memTx mutates memState directly and records how to undo each change.
type memTx struct {
	*memState
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) LockAppointment(ctx context.Context, id string) (model.Appointment, error) {
	return t.GetAppointment(ctx, id)
}

func (t *memTx) InsertAppointment(_ context.Context, a model.Appointment, at time.Time) (model.Appointment, error) {
	if _, ok := t.providers[a.ProviderID]; !ok {
		return model.Appointment{}, fmt.Errorf("provider %s: %w", a.ProviderID, ErrNotFound)
	}
	if _, taken := t.activeSlots[slotKey{a.ProviderID, a.RequestedDate, a.RequestedTime}]; taken {
		return model.Appointment{}, ErrSlotTaken
	}
	if _, pending := t.pendingDays[dayKey{a.RequesterID, a.RequestedDate}]; pending {
		return model.Appointment{}, ErrPendingExists
	}

	a.ID = uuid.NewString()
	a.Status = model.StatusPending
	a.CreatedAt, a.UpdatedAt = at, at
	t.nextSeq++
	t.appts[a.ID] = a
	t.seq[a.ID] = t.nextSeq
	t.index(a)

	t.undo = append(t.undo, func() {
		t.unindex(a)
		delete(t.appts, a.ID)
		delete(t.seq, a.ID)
	})
	return a, nil
}

func (t *memTx) PatchAppointment(_ context.Context, id string, from model.Status, u model.AppointmentUpdate, at time.Time) (model.Appointment, error) {
	cur, ok := t.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	if cur.Status != from {
		return model.Appointment{}, ErrStaleStatus
	}
	next := model.Apply(cur, u, at)
	t.unindex(cur)
	t.appts[id] = next
	t.index(next)

	t.undo = append(t.undo, func() {
		t.unindex(next)
		t.appts[id] = cur
		t.index(cur)
	})
	return next, nil
}

func (t *memTx) UpsertAvailability(_ context.Context, a model.WeeklyAvailability) (model.WeeklyAvailability, bool, error) {
	if _, ok := t.providers[a.ProviderID]; !ok {
		return model.WeeklyAvailability{}, false, fmt.Errorf("provider %s: %w", a.ProviderID, ErrNotFound)
	}
	key := availKey{a.ProviderID, a.DayOfWeek}
	prev, existed := t.availability[key]
	if existed {
		a.ID = prev.ID
	} else {
		a.ID = uuid.NewString()
	}
	a = copyAvailability(a)
	t.availability[key] = a

	t.undo = append(t.undo, func() {
		if existed {
			t.availability[key] = prev
		} else {
			delete(t.availability, key)
		}
	})
	return copyAvailability(a), !existed, nil
}

func (t *memTx) DeleteAvailability(_ context.Context, providerID string, dayOfWeek int) error {
	key := availKey{providerID, dayOfWeek}
	prev, ok := t.availability[key]
	if !ok {
		return ErrNotFound
	}
	delete(t.availability, key)
	t.undo = append(t.undo, func() { t.availability[key] = prev })
	return nil
}

func (t *memTx) SaveProvider(_ context.Context, p model.Provider) error {
	prev, ok := t.providers[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.UserID, p.CreatedAt = prev.UserID, prev.CreatedAt
	p.FullName, p.Email = "", ""
	p.Specializations = append([]string(nil), p.Specializations...)
	t.providers[p.ID] = p
	t.undo = append(t.undo, func() { t.providers[p.ID] = prev })
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	if t.discardEvents {
		return nil
	}
	t.nextEventID++
	rec := outbox.NewRecord(ctx, evt, time.Now().UTC())
	rec.ID = t.nextEventID
	t.events = append(t.events, rec)
	n := len(t.events) - 1
	t.undo = append(t.undo, func() {
		t.events = t.events[:n]
		t.nextEventID--
	})
	return nil
}

func copyAvailability(a model.WeeklyAvailability) model.WeeklyAvailability {
	a.BreakTimes = append([]model.BreakTime(nil), a.BreakTimes...)
	return a
}

var (
	_ Store         = (*Memory)(nil)
	_ outbox.Source = (*Memory)(nil)
)
