package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/repbook/libs/db"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/outbox"
)

const (
	constraintActiveSlot    = "appointments_active_slot_uidx"
	constraintPendingPerDay = "appointments_pending_per_day_uidx"

	appointmentColumns  = `id, requester_id, provider_id, requested_date, requested_time, purpose, description, status, rejection_reason, notes, created_at, updated_at`
	availabilityColumns = `id, provider_id, day_of_week, start_time, end_time, slot_duration, break_times`
	providerSelect      = `SELECT p.id, p.user_id, COALESCE(u.full_name, ''), COALESCE(u.email, ''), p.department, p.title, p.specializations, p.max_appointments_per_day, p.created_at FROM providers p LEFT JOIN users u ON u.id = p.user_id`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Postgres is the production store. Writes run SERIALIZABLE and are replayed
// on serialization failures; partial unique indexes back the booking rules.
type Postgres struct {
	pgReader
	pool   *db.Pool
	outbox *outbox.Repository
	txOpts db.TxOptions
}

func NewPostgres(pool *db.Pool, maxAttempts int) *Postgres {
	return &Postgres{
		pgReader: pgReader{q: pool},
		pool:     pool,
		outbox:   outbox.NewRepository(pool),
		txOpts:   db.TxOptions{IsoLevel: pgx.Serializable, MaxAttempts: maxAttempts},
	}
}

// Outbox exposes the event table for the publisher.
func (s *Postgres) Outbox() *outbox.Repository { return s.outbox }

func (s *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.pool.WithTx(ctx, s.txOpts, func(tx pgx.Tx) error {
		return fn(&pgTx{pgReader: pgReader{q: tx}, tx: tx, outbox: s.outbox})
	})
}

type pgReader struct {
	q querier
}

func (r pgReader) GetProvider(ctx context.Context, id string) (model.Provider, error) {
	p, err := scanProvider(r.q.QueryRow(ctx, providerSelect+` WHERE p.id = $1`, id))
	return p, notFound(err)
}

func (r pgReader) ListProviders(ctx context.Context) ([]model.Provider, error) {
	rows, err := r.q.Query(ctx, providerSelect+` ORDER BY u.full_name, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r pgReader) GetAvailability(ctx context.Context, providerID string, dayOfWeek int) (model.WeeklyAvailability, error) {
	a, err := scanAvailability(r.q.QueryRow(ctx, `
		SELECT `+availabilityColumns+`
		FROM weekly_availability
		WHERE provider_id = $1 AND day_of_week = $2
	`, providerID, dayOfWeek))
	return a, notFound(err)
}

func (r pgReader) ListAvailability(ctx context.Context, providerID string) ([]model.WeeklyAvailability, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+availabilityColumns+`
		FROM weekly_availability
		WHERE provider_id = $1
		ORDER BY day_of_week
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyAvailability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r pgReader) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	return a, notFound(err)
}

func (r pgReader) ListActiveByProviderDate(ctx context.Context, providerID, date string) ([]model.Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1 AND requested_date = $2 AND status IN ('pending', 'accepted')
		ORDER BY requested_time
	`, providerID, date)
}

func (r pgReader) CountPendingByRequesterDate(ctx context.Context, requesterID, date string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT count(*) FROM appointments
		WHERE requester_id = $1 AND requested_date = $2 AND status = 'pending'
	`, requesterID, date).Scan(&n)
	return n, err
}

func (r pgReader) ListByRequester(ctx context.Context, requesterID string, status model.Status) ([]model.Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE requester_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
	`, requesterID, string(status))
}

func (r pgReader) ListByProvider(ctx context.Context, providerID string, filter model.AppointmentFilter) ([]model.Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND ($2 = '' OR requested_date = $2)
			AND ($3 = '' OR status = $3)
		ORDER BY requested_date, requested_time, created_at
	`, providerID, filter.Date, string(filter.Status))
}

func (r pgReader) GetContacts(ctx context.Context, userIDs []string) (map[string]model.Contact, error) {
	out := make(map[string]model.Contact, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, full_name, email, phone, nationality
		FROM users
		WHERE id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.Nationality); err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

func (r pgReader) listAppointments(ctx context.Context, sql string, args ...any) ([]model.Appointment, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type pgTx struct {
	pgReader
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *pgTx) LockAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
	return a, notFound(err)
}

func (t *pgTx) InsertAppointment(ctx context.Context, a model.Appointment, at time.Time) (model.Appointment, error) {
	a.ID = uuid.NewString()
	a.Status = model.StatusPending
	a.CreatedAt, a.UpdatedAt = at, at
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.RequesterID, a.ProviderID, a.RequestedDate, a.RequestedTime, a.Purpose, a.Description,
		string(a.Status), a.RejectionReason, a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, classifyInsert(err)
	}
	return a, nil
}

func (t *pgTx) PatchAppointment(ctx context.Context, id string, from model.Status, u model.AppointmentUpdate, at time.Time) (model.Appointment, error) {
	cur, err := t.LockAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if cur.Status != from {
		return model.Appointment{}, ErrStaleStatus
	}
	next := model.Apply(cur, u, at)
	_, err = t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, rejection_reason = $3, notes = $4, updated_at = $5
		WHERE id = $1
	`, id, string(next.Status), next.RejectionReason, next.Notes, next.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	return next, nil
}

func (t *pgTx) UpsertAvailability(ctx context.Context, a model.WeeklyAvailability) (model.WeeklyAvailability, bool, error) {
	breaks, err := encodeBreaks(a.BreakTimes)
	if err != nil {
		return model.WeeklyAvailability{}, false, err
	}
	var created bool
	err = t.tx.QueryRow(ctx, `
		INSERT INTO weekly_availability (id, provider_id, day_of_week, start_time, end_time, slot_duration, break_times)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_id, day_of_week) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			slot_duration = EXCLUDED.slot_duration,
			break_times = EXCLUDED.break_times,
			updated_at = now()
		RETURNING id, (xmax = 0)
	`, uuid.NewString(), a.ProviderID, a.DayOfWeek, a.StartTime, a.EndTime, a.SlotDuration, breaks).Scan(&a.ID, &created)
	if err != nil {
		return model.WeeklyAvailability{}, false, err
	}
	return a, created, nil
}

func (t *pgTx) DeleteAvailability(ctx context.Context, providerID string, dayOfWeek int) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM weekly_availability WHERE provider_id = $1 AND day_of_week = $2`, providerID, dayOfWeek)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) SaveProvider(ctx context.Context, p model.Provider) error {
	specs := p.Specializations
	if specs == nil {
		specs = []string{}
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE providers
		SET department = $2, title = $3, specializations = $4, max_appointments_per_day = $5
		WHERE id = $1
	`, p.ID, p.Department, p.Title, specs, p.MaxAppointmentsPerDay)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	var status string
	err := row.Scan(&a.ID, &a.RequesterID, &a.ProviderID, &a.RequestedDate, &a.RequestedTime, &a.Purpose,
		&a.Description, &status, &a.RejectionReason, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	a.Status = model.Status(status)
	return a, err
}

func scanAvailability(row rowScanner) (model.WeeklyAvailability, error) {
	var a model.WeeklyAvailability
	var raw []byte
	if err := row.Scan(&a.ID, &a.ProviderID, &a.DayOfWeek, &a.StartTime, &a.EndTime, &a.SlotDuration, &raw); err != nil {
		return model.WeeklyAvailability{}, err
	}
	breaks, err := decodeBreaks(raw)
	if err != nil {
		return model.WeeklyAvailability{}, fmt.Errorf("decode break_times for %s: %w", a.ID, err)
	}
	a.BreakTimes = breaks
	return a, nil
}

func scanProvider(row rowScanner) (model.Provider, error) {
	var p model.Provider
	err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Email, &p.Department, &p.Title,
		&p.Specializations, &p.MaxAppointmentsPerDay, &p.CreatedAt)
	return p, err
}

type breakJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func encodeBreaks(breaks []model.BreakTime) ([]byte, error) {
	out := make([]breakJSON, 0, len(breaks))
	for _, b := range breaks {
		out = append(out, breakJSON{Start: b.Start, End: b.End})
	}
	return json.Marshal(out)
}

func decodeBreaks(raw []byte) ([]model.BreakTime, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var in []breakJSON
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	out := make([]model.BreakTime, 0, len(in))
	for _, b := range in {
		out = append(out, model.BreakTime{Start: b.Start, End: b.End})
	}
	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// classifyInsert maps the partial unique indexes onto domain errors.
func classifyInsert(err error) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	switch db.ConstraintName(err) {
	case constraintActiveSlot:
		return fmt.Errorf("%w: %v", ErrSlotTaken, err)
	case constraintPendingPerDay:
		return fmt.Errorf("%w: %v", ErrPendingExists, err)
	}
	return err
}

var (
	_ Store         = (*Postgres)(nil)
	_ outbox.Source = (*outbox.Repository)(nil)
)
