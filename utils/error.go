package utils

import "errors"

// Error taxonomy for the reconciliation core. Callers map these to transport
// codes at the boundary; none of them are retried automatically.

// ValidationError: malformed or incomplete input. Surfaced immediately.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(msg string) error { return &ValidationError{Msg: msg} }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// AuthorizationError: org mismatch / tenant isolation violation. Always fatal
// to the request; never downgraded to a filter.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func NewAuthorizationError(msg string) error { return &AuthorizationError{Msg: msg} }

func IsAuthorizationError(err error) bool {
	var v *AuthorizationError
	return errors.As(err, &v)
}

// NotFoundError: lookup found nothing. Callers may treat as "no data yet".
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func IsNotFoundError(err error) bool {
	var v *NotFoundError
	return errors.As(err, &v)
}

var ErrorRecordNotFound error = &NotFoundError{Msg: "record not found"}

// ConflictError: a merge detected disagreement on an immutable field. The
// pipeline keeps the earlier value and flags an anomaly instead of failing,
// but the conflict is logged with both values.
type ConflictError struct {
	Field    string
	Kept     string
	Rejected string
}

func (e *ConflictError) Error() string {
	return "conflict on immutable field " + e.Field + ": kept " + e.Kept + ", rejected " + e.Rejected
}

func IsConflictError(err error) bool {
	var v *ConflictError
	return errors.As(err, &v)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
