package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/repbook/libs/otel"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
)

// Event types published for appointment lifecycle changes. The Kafka topic
// equals the event type.
const (
	AppointmentRequested = "booking.appointment.requested.v1"
	AppointmentAccepted  = "booking.appointment.accepted.v1"
	AppointmentRejected  = "booking.appointment.rejected.v1"
	AppointmentCompleted = "booking.appointment.completed.v1"
	AppointmentCancelled = "booking.appointment.cancelled.v1"
)

const aggregateAppointment = "appointment"

// Event is the domain event envelope written to the outbox.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Record is a stored event waiting for, or done with, publication.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

// NewRecord stamps evt with a fresh event id and the trace context of ctx.
func NewRecord(ctx context.Context, evt Event, at time.Time) Record {
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return Record{
		EventID:       uuid.NewString(),
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		Payload:       evt.Payload,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
		CreatedAt:     at,
	}
}

type appointmentPayload struct {
	AppointmentID   string    `json:"appointment_id"`
	RequesterID     string    `json:"requester_id"`
	ProviderID      string    `json:"provider_id"`
	RequestedDate   string    `json:"requested_date"`
	RequestedTime   string    `json:"requested_time"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// TypeForStatus maps the status an appointment moved into to its event type.
func TypeForStatus(s model.Status) string {
	switch s {
	case model.StatusAccepted:
		return AppointmentAccepted
	case model.StatusRejected:
		return AppointmentRejected
	case model.StatusCompleted:
		return AppointmentCompleted
	case model.StatusCancelled:
		return AppointmentCancelled
	default:
		return AppointmentRequested
	}
}

// AppointmentEvent builds the event announcing a's current status.
func AppointmentEvent(a model.Appointment) (Event, error) {
	payload, err := json.Marshal(appointmentPayload{
		AppointmentID:   a.ID,
		RequesterID:     a.RequesterID,
		ProviderID:      a.ProviderID,
		RequestedDate:   a.RequestedDate,
		RequestedTime:   a.RequestedTime,
		Status:          string(a.Status),
		RejectionReason: a.RejectionReason,
		OccurredAt:      a.UpdatedAt.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateAppointment,
		AggregateID:   a.ID,
		EventType:     TypeForStatus(a.Status),
		Payload:       payload,
	}, nil
}
