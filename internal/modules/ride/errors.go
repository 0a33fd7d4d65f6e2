// README: Ride error taxonomy shared by the service and the HTTP error mapping.
package ride

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrConflict         = errors.New("ride no longer available")
	ErrForbidden        = errors.New("not allowed for this ride")
	ErrNotConfirmed     = errors.New("pickup has not been confirmed")
	ErrAlreadyConfirmed = errors.New("pickup already confirmed")
	ErrDenied           = errors.New("driver not eligible")

	ErrWindow          = errors.New("outside the allowed time window")
	ErrConfirmTooEarly = windowError("pickup can only be confirmed within 48 hours of the ride")
	ErrConfirmTooLate  = windowError("ride time has already passed")
	ErrRidePassed      = windowError("ride can no longer be cancelled, the ride time has passed")
)

type windowErr struct{ msg string }

func windowError(msg string) error { return &windowErr{msg: msg} }
func (e *windowErr) Error() string { return e.msg }
func (e *windowErr) Unwrap() error { return ErrWindow }

// DeniedError carries the eligibility reason shown to the driver.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }
func (e *DeniedError) Unwrap() error { return ErrDenied }

// ValidationError lists per-field problems of a malformed request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrBadRequest }

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
