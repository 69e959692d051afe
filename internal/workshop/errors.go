package workshop

import (
	"errors"
	"fmt"
)

// Rejection classes surfaced to clients as validation_error codes.
var (
	ErrPermissionDenied = errors.New("permission_denied")
	ErrInvalidState     = errors.New("invalid_state")
	ErrNotFound         = errors.New("not_found")
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrCapacityReached  = errors.New("capacity_reached")
	ErrBanned           = errors.New("banned")
)

// Roster-level failures.
var (
	ErrNotOnRoster        = errors.New("attendee is not on the roster")
	ErrAlreadySpeaker     = errors.New("attendee can already speak")
	ErrHandAlreadyRaised  = errors.New("hand already raised")
	ErrHandNotRaised      = errors.New("hand is not raised")
	ErrNotSpeaker         = errors.New("attendee has no speaker grant")
	ErrSpeakerIsModerator = errors.New("host and co-hosts always speak")
	ErrTargetIsHost       = errors.New("target is the host")
	ErrAlreadyCoHost      = errors.New("attendee is already a co-host")
	ErrNotCoHost          = errors.New("attendee is not a co-host")
)

var (
	ErrRegistryClosed = errors.New("coordinator registry is closed")
)

// Rejection is a refused intent. It unwraps to one of the rejection classes.
type Rejection struct {
	Class   error
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Class, r.Message)
}

func (r *Rejection) Unwrap() error {
	return r.Class
}

// Code is the wire code sent in validation_error events.
func (r *Rejection) Code() string {
	return r.Class.Error()
}

func reject(class error, format string, args ...interface{}) *Rejection {
	return &Rejection{Class: class, Message: fmt.Sprintf(format, args...)}
}

// rejectRoster maps a roster failure onto its rejection class.
func rejectRoster(err error) *Rejection {
	switch {
	case errors.Is(err, ErrNotOnRoster):
		return reject(ErrNotFound, "%v", err)
	case errors.Is(err, ErrTargetIsHost):
		return reject(ErrPermissionDenied, "%v", err)
	default:
		return reject(ErrInvalidState, "%v", err)
	}
}
