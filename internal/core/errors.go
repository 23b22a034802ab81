package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error a service returns to a handler wraps one of these,
// and the API layer picks the response status from the kind alone.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrBillingProvider = errors.New("billing provider error")
)

// Error carries a message that is safe to show the client.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Named rejections. Return them as is, or wrap them with fmt.Errorf("%w").
var (
	ErrCouponInvalid           = &Error{Kind: ErrNotFound, Message: "Invalid coupon code"}
	ErrCouponExpired           = &Error{Kind: ErrValidation, Message: "This coupon has expired"}
	ErrCouponLimitReached      = &Error{Kind: ErrValidation, Message: "This coupon has reached its usage limit"}
	ErrCouponAlreadyUsed       = &Error{Kind: ErrValidation, Message: "You have already used this coupon"}
	ErrAlreadySubscribed       = &Error{Kind: ErrConflict, Message: "User already has an active subscription"}
	ErrAccountQuotaReached     = &Error{Kind: ErrForbidden, Message: "Account limit reached. Please upgrade your plan."}
	ErrNoGoverningSubscription = &Error{Kind: ErrForbidden, Message: "Active subscription required to add accounts"}
	ErrInactiveUser            = &Error{Kind: ErrForbidden, Message: "User account is inactive"}
	ErrNotAdmin                = &Error{Kind: ErrForbidden, Message: "Admin access required"}
)

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(ErrValidation, format, args...)
}

func notFoundError(format string, args ...interface{}) *Error {
	return newError(ErrNotFound, format, args...)
}

func conflictError(format string, args ...interface{}) *Error {
	return newError(ErrConflict, format, args...)
}

func forbiddenError(format string, args ...interface{}) *Error {
	return newError(ErrForbidden, format, args...)
}

// billingError marks a failed call to the billing provider.
func billingError(message string, err error) *Error {
	return &Error{Kind: ErrBillingProvider, Message: message, Err: err}
}

// Message returns the client-safe message carried by err, or fallback when
// err has none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
