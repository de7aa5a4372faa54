package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/live-event-booking/internal/model"
	"github.com/iliyamo/live-event-booking/internal/repository"
)

// Kind classifies a failure so the HTTP layer can pick a status code.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindPreconditionFailed Kind = "precondition_failed"
	KindConflict           Kind = "conflict"
	KindConfiguration      Kind = "configuration"
	KindForbidden          Kind = "forbidden"
	KindInternal           Kind = "internal"
)

// Error is returned by every service operation that fails for a reason
// the caller can act on.  Msg names the offending seat, field or state.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindInternal for anything that is not
// a service error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// SeatConflict is returned when a booking batch is rejected because one of
// its seats is already taken.
type SeatConflict struct {
	SectionName string
	SeatNumber  string
}

// SeatOf extracts the rejected seat from a booking conflict.
func SeatOf(err error) (SeatConflict, bool) {
	var sue *repository.SeatUnavailableError
	if errors.As(err, &sue) {
		return SeatConflict{SectionName: sue.SectionName, SeatNumber: sue.SeatNumber}, true
	}
	return SeatConflict{}, false
}

// fromStore maps repository errors onto service kinds.  Errors that are
// already service errors pass through untouched.
func fromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	var sue *repository.SeatUnavailableError
	var oe *repository.OverlapError
	switch {
	case errors.As(err, &sue):
		return &Error{Kind: KindConflict, Msg: sue.Error(), Err: err}
	case errors.As(err, &oe):
		return &Error{Kind: KindConflict, Msg: "event " + oe.Error(), Err: err}
	case errors.Is(err, repository.ErrVenueNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrTicketNotFound):
		return &Error{Kind: KindNotFound, Msg: err.Error(), Err: err}
	case errors.Is(err, repository.ErrEventNotSellable):
		return &Error{Kind: KindPreconditionFailed, Msg: err.Error(), Err: err}
	case errors.Is(err, repository.ErrConflict):
		return &Error{Kind: KindConflict, Msg: err.Error(), Err: err}
	}
	return &Error{Kind: KindInternal, Msg: op + ": internal error", Err: fmt.Errorf("%s: %w", op, err)}
}

// illegalState reports an operation attempted outside its legal state.
func illegalState(op string, from model.EventStatus) *Error {
	return newErr(KindPreconditionFailed, "%s: not allowed while event is %s", op, from)
}
