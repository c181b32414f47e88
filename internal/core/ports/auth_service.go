package ports

import (
	"context"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

// LoginMode selects the credential semantics of a login attempt.
type LoginMode string

const (
	// ModeStaff authenticates by email + password against staff roles.
	ModeStaff LoginMode = "STAFF"
	// ModePatient authenticates by CPF + birthdate (YYYY-MM-DD) against
	// PATIENT accounts.
	ModePatient LoginMode = "PATIENT"
)

// AuthResult is returned on successful authentication. Account is a
// sanitized projection; the secret hash never leaves the service.
type AuthResult struct {
	Token   string
	Account *domain.Account
}

// RegisterInput carries the data needed to provision an account.
type RegisterInput struct {
	LoginKey string
	Secret   string
	Role     domain.Role
}

// AuthService verifies credentials, enforces the lockout policy, and issues
// and validates session tokens.
type AuthService interface {
	// Authenticate turns a credential pair into a session token or a typed
	// rejection. Every attempt against an existing account mutates its
	// attempt/lock state as a deliberate side effect.
	Authenticate(ctx context.Context, loginKey, secret string, mode LoginMode) (*AuthResult, error)

	// Authorize maps a bearer token string to the live account it asserts,
	// or rejects with ErrUnauthenticated, ErrInvalidToken, ErrTokenExpired,
	// or ErrAccountInactive.
	Authorize(ctx context.Context, tokenString string) (*domain.Account, error)

	Register(ctx context.Context, input RegisterInput) (*domain.Account, error)
}
