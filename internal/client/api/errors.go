package api

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned by Login for any non-2xx response.
	// It never says whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUnauthorized means the server rejected the credential of a live
	// session (invalid or expired). Callers treat it as an implicit logout.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError is a server rejection of a request that the caller may
// correct: forbidden role, unknown record, employee outside the team,
// malformed payload. The server's message is kept verbatim.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request rejected (%d)", e.StatusCode)
	}
	return fmt.Sprintf("request rejected (%d): %s", e.StatusCode, e.Message)
}

// TransportError is a network or server-side failure. StatusCode is zero
// when no response arrived.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server error (%d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}
