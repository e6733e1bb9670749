package model

import "time"

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ActiveStatuses still occupy a slot.
var ActiveStatuses = []Status{StatusPending, StatusAccepted}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusRejected, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

func (s Status) Active() bool {
	return s == StatusPending || s == StatusAccepted
}

func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

type Appointment struct {
	ID              string
	RequesterID     string
	ProviderID      string
	RequestedDate   string // YYYY-MM-DD
	RequestedTime   string // HH:MM
	Purpose         string
	Description     string
	Status          Status
	RejectionReason string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AppointmentUpdate is the closed set of mutations the store applies to an
// appointment after creation. Each variant names its target status.
type AppointmentUpdate interface {
	Target() Status
}

type Accept struct{}

type Reject struct {
	Reason string
}

type Complete struct {
	Notes string
}

type Cancel struct{}

func (Accept) Target() Status   { return StatusAccepted }
func (Reject) Target() Status   { return StatusRejected }
func (Complete) Target() Status { return StatusCompleted }
func (Cancel) Target() Status   { return StatusCancelled }

// Apply returns a copy of a with u applied and UpdatedAt set to at.
func Apply(a Appointment, u AppointmentUpdate, at time.Time) Appointment {
	switch u := u.(type) {
	case Reject:
		a.RejectionReason = u.Reason
	case Complete:
		if u.Notes != "" {
			a.Notes = u.Notes
		}
	case Accept, Cancel:
	}
	a.Status = u.Target()
	a.UpdatedAt = at
	return a
}

// AppointmentFilter narrows list queries; zero values mean "any".
type AppointmentFilter struct {
	Date   string
	Status Status
}

// ProviderSummary is the public face of a provider shown to requesters.
type ProviderSummary struct {
	ID         string
	Department string
	Title      string
	FullName   string
	Email      string
}

// Contact is the requester identity shown to the provider handling a request.
type Contact struct {
	ID          string
	FullName    string
	Email       string
	Phone       string
	Nationality string
}

type RequesterAppointment struct {
	Appointment
	Provider ProviderSummary
}

type ProviderAppointment struct {
	Appointment
	Requester Contact
}
