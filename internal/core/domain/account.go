package domain

import "time"

// Role is the closed set of account roles. Every authorization site matches
// against these constants, never against free-form strings.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleManager      Role = "MANAGER"
	RoleDoctor       Role = "DOCTOR"
	RoleReceptionist Role = "RECEPTIONIST"
	RolePatient      Role = "PATIENT"
)

// StaffRoles is the role set accepted by the staff login path.
var StaffRoles = []Role{RoleAdmin, RoleManager, RoleDoctor, RoleReceptionist}

// ParseRole maps a string to a Role, reporting whether it is one of the
// known roles.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleDoctor, RoleReceptionist, RolePatient:
		return Role(s), true
	}
	return "", false
}

// IsStaff reports whether the role belongs to the staff login path.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleDoctor || r == RoleReceptionist
}

// Account models an authenticatable identity with its lockout state.
// The login key is an email for staff accounts and a CPF for patients.
type Account struct {
	ID             string     `json:"id"`
	LoginKey       string     `json:"login_key"`
	SecretHash     string     `json:"-"`
	Role           Role       `json:"role"`
	Active         bool       `json:"active"`
	FailedAttempts int        `json:"-"`
	LockedUntil    *time.Time `json:"-"`
	LastAccess     *time.Time `json:"last_access,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Locked reports whether the account is under a lockout at the given instant.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// RequireRole rejects with a ForbiddenError when role is not in allowed.
// The error carries both sets for diagnostic display only.
func RequireRole(role Role, allowed ...Role) error {
	for _, r := range allowed {
		if role == r {
			return nil
		}
	}
	return &ForbiddenError{Required: allowed, Actual: role}
}
