package booking

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/repbook/libs/auth"
)

// Kind classifies a write that was refused for a business reason.
//
// KindForbidden splits out of KindInvalidTransition the status changes that
// are legal for the appointment but not for the caller: a role making an edge
// that belongs to the other role, or anyone touching an appointment they are
// not party to. Changes that are illegal for every caller stay
// KindInvalidTransition.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidation        Kind = "validation"
	KindForbidden         Kind = "forbidden"
)

// Result is the outcome of a write. Business refusals come back with
// Success=false and a Kind; the error return is reserved for storage faults.
type Result struct {
	Success bool
	Kind    Kind
	Message string
	// ID is the appointment or availability row the write touched.
	ID string
	// Created is set by SetAvailability when no row existed before.
	Created bool
}

func ok(id, msg string) Result {
	return Result{Success: true, ID: id, Message: msg}
}

func refuse(kind Kind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// refusal aborts a transaction with a business result instead of a fault.
type refusal struct {
	res Result
}

func (r *refusal) Error() string { return string(r.res.Kind) + ": " + r.res.Message }

func abort(kind Kind, format string, args ...any) error {
	return &refusal{res: refuse(kind, format, args...)}
}

// settle splits the error returned from a transaction into a refusal result
// or a hard fault.
func settle(err error, success Result) (Result, error) {
	if err == nil {
		return success, nil
	}
	var r *refusal
	if errors.As(err, &r) {
		return r.res, nil
	}
	return Result{}, err
}

// Errors returned by read operations.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrForbidden       = errors.New("forbidden")
)

// Actor is the verified caller of an operation.
type Actor struct {
	ID   string
	Role string
}

func ActorFromIdentity(id auth.Identity) Actor {
	return Actor{ID: id.Subject, Role: id.Role}
}

func (a Actor) IsProvider() bool  { return a.Role == auth.RoleProvider }
func (a Actor) IsRequester() bool { return a.Role == auth.RoleRequester }
