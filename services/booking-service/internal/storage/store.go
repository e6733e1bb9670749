package storage

import (
	"context"
	"errors"
	"time"

	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/outbox"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrSlotTaken: another active appointment already holds (provider, date, time).
	ErrSlotTaken = errors.New("time slot already taken")
	// ErrPendingExists: the requester already has a pending appointment that date.
	ErrPendingExists = errors.New("requester already has a pending appointment on this date")
	// ErrStaleStatus: the appointment left the expected status before the patch landed.
	ErrStaleStatus = errors.New("appointment status changed concurrently")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict matches the errors raised when a write loses to an existing row.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrPendingExists) || errors.Is(err, ErrStaleStatus)
}

// Reader is the read surface shared by the store and its transactions.
type Reader interface {
	GetProvider(ctx context.Context, id string) (model.Provider, error)
	ListProviders(ctx context.Context) ([]model.Provider, error)

	GetAvailability(ctx context.Context, providerID string, dayOfWeek int) (model.WeeklyAvailability, error)
	// ListAvailability returns rows ordered by day of week ascending.
	ListAvailability(ctx context.Context, providerID string) ([]model.WeeklyAvailability, error)

	GetAppointment(ctx context.Context, id string) (model.Appointment, error)
	// ListActiveByProviderDate is the conflict-check hot path: pending and
	// accepted appointments for one provider on one date.
	ListActiveByProviderDate(ctx context.Context, providerID, date string) ([]model.Appointment, error)
	CountPendingByRequesterDate(ctx context.Context, requesterID, date string) (int, error)
	// ListByRequester returns newest first. An empty status matches all.
	ListByRequester(ctx context.Context, requesterID string, status model.Status) ([]model.Appointment, error)
	// ListByProvider returns rows ordered by (date, time) ascending.
	ListByProvider(ctx context.Context, providerID string, filter model.AppointmentFilter) ([]model.Appointment, error)

	// GetContacts resolves requester identities; unknown ids are absent from the map.
	GetContacts(ctx context.Context, userIDs []string) (map[string]model.Contact, error)
}

// Tx is one atomic unit of work. Everything read through a Tx is re-read at
// commit-time isolation; nothing written is visible to others until commit.
type Tx interface {
	Reader

	// LockAppointment reads an appointment and holds it against concurrent patches.
	LockAppointment(ctx context.Context, id string) (model.Appointment, error)
	// InsertAppointment stores a new appointment with status pending. ID and
	// timestamps are assigned by the store.
	InsertAppointment(ctx context.Context, a model.Appointment, at time.Time) (model.Appointment, error)
	// PatchAppointment applies u only if the stored status still equals from.
	PatchAppointment(ctx context.Context, id string, from model.Status, u model.AppointmentUpdate, at time.Time) (model.Appointment, error)

	// UpsertAvailability replaces the (provider, weekday) row in full and
	// reports whether it was created.
	UpsertAvailability(ctx context.Context, a model.WeeklyAvailability) (model.WeeklyAvailability, bool, error)
	DeleteAvailability(ctx context.Context, providerID string, dayOfWeek int) error

	SaveProvider(ctx context.Context, p model.Provider) error

	// AppendEvent records a domain event that commits or rolls back with the tx.
	AppendEvent(ctx context.Context, evt outbox.Event) error
}

type Store interface {
	Reader
	// InTx runs fn atomically. fn may be invoked more than once when the
	// backend asks for a retry, so it must only touch the store through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
