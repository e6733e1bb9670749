package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/repbook/libs/auth"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/repbook/services/booking-service/internal/storage"
	"go.opentelemetry.io/otel/attribute"
)

type edge struct {
	from, to model.Status
}

// transitions lists every legal status change and the role allowed to make it.
var transitions = map[edge]string{
	{model.StatusPending, model.StatusAccepted}:   auth.RoleProvider,
	{model.StatusPending, model.StatusRejected}:   auth.RoleProvider,
	{model.StatusPending, model.StatusCancelled}:  auth.RoleRequester,
	{model.StatusAccepted, model.StatusCompleted}: auth.RoleProvider,
	{model.StatusAccepted, model.StatusCancelled}: auth.RoleRequester,
}

// UpdateFor builds the update that moves an appointment to status. Side data
// the target does not use is dropped.
func UpdateFor(status model.Status, rejectionReason, notes string) (model.AppointmentUpdate, error) {
	switch status {
	case model.StatusAccepted:
		return model.Accept{}, nil
	case model.StatusRejected:
		return model.Reject{Reason: strings.TrimSpace(rejectionReason)}, nil
	case model.StatusCompleted:
		return model.Complete{Notes: strings.TrimSpace(notes)}, nil
	case model.StatusCancelled:
		return model.Cancel{}, nil
	}
	return nil, fmt.Errorf("%w: cannot move an appointment to %q", ErrInvalidArgument, status)
}

// CheckTransition is the status guard. It returns the refusal for moving a to
// u's target on behalf of actor, or ok=true when the change is allowed.
func CheckTransition(a model.Appointment, actor Actor, u model.AppointmentUpdate) (Result, bool) {
	if !owns(actor, a) {
		return refuse(KindForbidden, "You can only update your own appointments"), false
	}
	to := u.Target()
	if a.Status.Terminal() {
		return refuse(KindInvalidTransition, "Appointment is already %s", a.Status), false
	}
	role, legal := transitions[edge{a.Status, to}]
	if !legal {
		return refuse(KindInvalidTransition, "Cannot move appointment from %s to %s", a.Status, to), false
	}
	if role != actor.Role {
		return refuse(KindForbidden, "Only the %s can mark an appointment %s", role, to), false
	}
	if r, isReject := u.(model.Reject); isReject && strings.TrimSpace(r.Reason) == "" {
		return refuse(KindValidation, "A rejection reason is required"), false
	}
	return Result{}, true
}

// TransitionStatus applies u to the appointment under a row lock, so two
// concurrent changes to one appointment are serialized and the second is
// judged against the first one's result.
func (s *Service) TransitionStatus(ctx context.Context, actor Actor, appointmentID string, u model.AppointmentUpdate) (res Result, err error) {
	ctx, span := s.start(ctx, "booking.transition_status",
		attribute.String("appointment_id", appointmentID),
		attribute.String("target_status", string(u.Target())))
	defer func() { finish(span, res, err) }()

	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		cur, err := tx.LockAppointment(ctx, appointmentID)
		if err != nil {
			if storage.IsNotFound(err) {
				return abort(KindNotFound, "Appointment not found")
			}
			return err
		}
		if denied, allowed := CheckTransition(cur, actor, u); !allowed {
			return &refusal{res: denied}
		}

		next, err := tx.PatchAppointment(ctx, appointmentID, cur.Status, u, s.now())
		if errors.Is(err, storage.ErrStaleStatus) {
			return abort(KindConflict, "Appointment was changed by someone else, reload and retry")
		}
		if err != nil {
			return err
		}
		evt, err := outbox.AppointmentEvent(next)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, evt)
	})

	res, err = settle(err, ok(appointmentID, fmt.Sprintf("Appointment %s successfully", u.Target())))
	switch {
	case err != nil:
		s.logger.Error("status transition failed", "appointment_id", appointmentID, "err", err)
	case !res.Success:
		s.logger.Warn("status transition refused", "appointment_id", appointmentID,
			"actor_id", actor.ID, "target", u.Target(), "reason", res.Message)
	default:
		s.logger.Info("appointment status changed", "appointment_id", appointmentID, "status", u.Target())
	}
	return res, err
}

// CancelAppointment withdraws a pending or accepted appointment on behalf of
// its requester.
func (s *Service) CancelAppointment(ctx context.Context, actor Actor, appointmentID string) (Result, error) {
	if !actor.IsRequester() {
		return refuse(KindForbidden, "You can only cancel your own appointments"), nil
	}
	res, err := s.TransitionStatus(ctx, actor, appointmentID, model.Cancel{})
	if err == nil && res.Kind == KindInvalidTransition {
		res.Message = "Only pending or accepted appointments can be cancelled"
	}
	return res, err
}

// TransitionTo is TransitionStatus addressed by target status name, the way
// callers outside the service express it. Moving back to pending is never a
// legal transition.
func (s *Service) TransitionTo(ctx context.Context, actor Actor, appointmentID, status, rejectionReason, notes string) (Result, error) {
	target, known := model.ParseStatus(status)
	if !known {
		return refuse(KindValidation, "Unknown status %q", status), nil
	}
	if target == model.StatusPending {
		return refuse(KindInvalidTransition, "Appointments cannot be moved back to pending"), nil
	}
	u, err := UpdateFor(target, rejectionReason, notes)
	if err != nil {
		return refuse(KindValidation, "%v", err), nil
	}
	return s.TransitionStatus(ctx, actor, appointmentID, u)
}
