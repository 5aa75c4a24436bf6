package availability

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/tablekeeper/services/availability-service/internal/hours"
)

// ValidationError is returned for malformed input before any store is read.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigurationError means the business has no weekly hours at all.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("calendar not configured: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransientError wraps a store failure. The caller may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConfiguration(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

func storeError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hours.ErrNotConfigured), errors.Is(err, hours.ErrInvalidCalendar):
		return &ConfigurationError{Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return &TransientError{Op: op, Err: err}
	}
}
