package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTooManyAttempts     = errors.New("too many login attempts")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUserExists          = errors.New("user already exists")
	ErrCustomerExists      = errors.New("customer with this mobile/email already exists")
	ErrCarRegNoExists      = errors.New("car registration number already exists")
	ErrWrongPassword       = errors.New("invalid current password")
	ErrForbidden           = errors.New("access denied")
	ErrSelfModification    = errors.New("admins cannot demote or delete themselves")
	ErrUserNotFound        = errors.New("user not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrCarNotFound         = errors.New("car not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrPastDate            = errors.New("start date is in the past")
	ErrDateTooFar          = errors.New("booking date is too far in the future")
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrNonPositiveTotal    = errors.New("total bill amount must be greater than zero")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
