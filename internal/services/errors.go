package services

import (
	"errors"
	"fmt"

	"cashbox_backend/internal/authz"
	"cashbox_backend/internal/repositories"
)

// Error taxonomy. Every error returned by a service wraps one of these, so callers
// branch with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrTransient       = errors.New("temporarily unavailable")
	ErrForbidden       = authz.ErrForbidden
	ErrUnauthenticated = authz.ErrUnauthenticated
)

var (
	ErrEmployeeNotFound       = fmt.Errorf("%w: employee not found or inactive", ErrNotFound)
	ErrShiftNotFound          = fmt.Errorf("%w: shift not found", ErrNotFound)
	ErrOpenShiftNotFound      = fmt.Errorf("%w: no open shift with that id", ErrNotFound)
	ErrShiftAlreadyOpen       = fmt.Errorf("%w: you already have an open shift", ErrConflict)
	ErrShiftNotOpen           = fmt.Errorf("%w: the shift is no longer open", ErrConflict)
	ErrShiftHasOpenSession    = fmt.Errorf("%w: close the cash drawer before ending the shift", ErrConflict)
	ErrSessionNotFound        = fmt.Errorf("%w: cashbox session not found", ErrNotFound)
	ErrSessionAlreadyOpen     = fmt.Errorf("%w: this shift already has an open cash drawer", ErrConflict)
	ErrSessionNotOpen         = fmt.Errorf("%w: the cash drawer is already closed", ErrConflict)
	ErrSessionStillOpen       = fmt.Errorf("%w: the cash drawer is still open", ErrConflict)
	ErrLiquidationNotFound    = fmt.Errorf("%w: liquidation not found", ErrNotFound)
	ErrLiquidationAlreadyPaid = fmt.Errorf("%w: liquidation is already paid", ErrConflict)
	ErrInvalidCredentials     = errors.New("invalid username or password")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeError lifts a repository error into the service taxonomy. Errors with a
// domain meaning (not found, duplicates) are mapped by the caller first.
func storeError(err error, op string) error {
	if err == nil || isServiceError(err) {
		return err
	}
	if errors.Is(err, repositories.ErrTransient) {
		return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isServiceError(err error) bool {
	for _, target := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrTransient, ErrForbidden, ErrUnauthenticated} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
