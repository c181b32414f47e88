package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Sentinel errors. Richer failures wrap these through typed errors below so
// callers can branch with errors.Is and extract detail with errors.As.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountInactive     = errors.New("account is deactivated")
	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrAccountLockedNow    = errors.New("account locked after too many failed attempts")
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrForbidden           = errors.New("access forbidden")
	ErrSlotUnavailable     = errors.New("slot unavailable")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrReasonRequired      = errors.New("cancellation reason required")
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// CredentialsError is a failed credential check that still leaves attempts
// before lockout. The message never reveals which field was wrong.
type CredentialsError struct {
	AttemptsRemaining int
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("invalid credentials (%d attempts remaining)", e.AttemptsRemaining)
}

func (e *CredentialsError) Unwrap() error { return ErrInvalidCredentials }

// LockedError reports a lockout in effect. JustLocked marks the attempt that
// triggered the lock, which surfaces with a distinct message.
type LockedError struct {
	Until      time.Time
	JustLocked bool
}

// RemainingMinutes returns the wait time rounded up to whole minutes.
func (e *LockedError) RemainingMinutes(now time.Time) int {
	rem := e.Until.Sub(now)
	if rem <= 0 {
		return 0
	}
	return int(math.Ceil(rem.Minutes()))
}

func (e *LockedError) Error() string {
	if e.JustLocked {
		return "too many failed attempts, account locked"
	}
	return "account temporarily locked"
}

func (e *LockedError) Unwrap() error {
	if e.JustLocked {
		return ErrAccountLockedNow
	}
	return ErrAccountLocked
}

// ForbiddenError carries the role sets involved in a rejected authorization.
// Diagnostic only; it never gates anything itself.
type ForbiddenError struct {
	Required []Role
	Actual   Role
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("role %s not allowed, requires one of %v", e.Actual, e.Required)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// TransitionError reports an illegal appointment state change with the
// attempted and allowed target states.
type TransitionError struct {
	From    AppointmentStatus
	To      AppointmentStatus
	Allowed []AppointmentStatus
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("appointment is %s and cannot change state", e.From)
	}
	return fmt.Sprintf("cannot transition from %s to %s, allowed: %v", e.From, e.To, e.Allowed)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
