package interactive

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by AcquireToken when the user did not complete
	// sign-in before the deadline.
	ErrTimeout = errors.New("user did not complete sign-in in time")

	// ErrCanceled is returned by AcquireToken when the caller canceled the flow.
	ErrCanceled = errors.New("interactive sign-in was canceled")

	// ErrRedirectAlreadyResolved is returned when a request's redirect URI is
	// rewritten a second time.
	ErrRedirectAlreadyResolved = errors.New("redirect URI already resolved")

	errUnknownOutcome = errors.New("flow ended without a known outcome")
)

// ValidationError indicates bad caller input.
type ValidationError struct {
	// Field is the offending input, e.g. "scopes" or "redirect_uri".
	Field string
	// Reason describes what is wrong with it.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is allows errors.Is() to match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

func validationErrorf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PortUnavailableError indicates the caller-requested port could not be bound.
type PortUnavailableError struct {
	Port   int
	Reason error
}

func (e *PortUnavailableError) Error() string {
	return fmt.Sprintf("loopback port %d is unavailable: %v", e.Port, e.Reason)
}

func (e *PortUnavailableError) Unwrap() error {
	return e.Reason
}

func (e *PortUnavailableError) Is(target error) bool {
	_, ok := target.(*PortUnavailableError)
	return ok
}

// NoAvailablePortError indicates automatic port selection gave up.
type NoAvailablePortError struct {
	Attempts   int
	RangeStart int
	RangeEnd   int
	// Last is the error of the final bind attempt.
	Last error
}

func (e *NoAvailablePortError) Error() string {
	if e.RangeStart == 0 && e.RangeEnd == 0 {
		return fmt.Sprintf("no loopback port available after %d attempt(s): %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("no loopback port available in %d-%d after %d attempt(s): %v",
		e.RangeStart, e.RangeEnd, e.Attempts, e.Last)
}

func (e *NoAvailablePortError) Unwrap() error {
	return e.Last
}

func (e *NoAvailablePortError) Is(target error) bool {
	_, ok := target.(*NoAvailablePortError)
	return ok
}

// BrowserLaunchError indicates the system browser could not be opened.
// The authorization URL is intentionally not part of the message since it
// carries the correlation state.
type BrowserLaunchError struct {
	Reason error
}

func (e *BrowserLaunchError) Error() string {
	return fmt.Sprintf("failed to open browser: %v", e.Reason)
}

func (e *BrowserLaunchError) Unwrap() error {
	return e.Reason
}

func (e *BrowserLaunchError) Is(target error) bool {
	_, ok := target.(*BrowserLaunchError)
	return ok
}

// ListenerError indicates the loopback listener failed while serving.
type ListenerError struct {
	Reason error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("loopback listener failed: %v", e.Reason)
}

func (e *ListenerError) Unwrap() error {
	return e.Reason
}

func (e *ListenerError) Is(target error) bool {
	_, ok := target.(*ListenerError)
	return ok
}

// AuthorizationError is the error the identity provider returned on the
// redirect, surfaced verbatim.
type AuthorizationError struct {
	ErrorCode   string
	Description string
	URI         string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization failed: %s - %s", e.ErrorCode, e.Description)
	}
	return fmt.Sprintf("authorization failed: %s", e.ErrorCode)
}

func (e *AuthorizationError) Is(target error) bool {
	_, ok := target.(*AuthorizationError)
	return ok
}
