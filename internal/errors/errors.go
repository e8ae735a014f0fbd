package errors

import (
	"errors"
	"fmt"
)

// Common error types for the reader client
var (
	// Session errors
	ErrIncompleteSession = errors.New("session must hold both tokens or neither")
	ErrNoSession         = errors.New("no session")
	ErrInvalidToken      = errors.New("invalid token")

	// Pipeline errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrTimeout        = errors.New("request timed out")
	ErrTransport      = errors.New("transport failure")
	ErrRefreshFailed  = errors.New("refresh failed")
	ErrNoRefreshToken = errors.New("no refresh token")

	// Request errors
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrServer     = errors.New("server error")
)

// TimeoutMessage is shown to users when a request exceeded its deadline.
const TimeoutMessage = "Request timed out. Please check your connection and try again."

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Join wraps cause under the sentinel kind so both match with Is.
func Join(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
