package ports

import (
	"context"
	"time"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
)

// AccountRepository is the credential store. All mutation of the lockout
// counters goes through RegisterFailure and RegisterSuccess; no other
// component writes failed_attempts or locked_until.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	// FindByLoginKey resolves an account by its login key scoped to a login
	// path: patient=true matches only PATIENT accounts, patient=false only
	// staff roles.
	FindByLoginKey(ctx context.Context, loginKey string, patient bool) (*domain.Account, error)

	// RegisterFailure atomically increments the failed-attempt counter and,
	// when the post-increment value reaches threshold, sets the lock to
	// now+cooldown — a single conditional update, never read-then-write, so
	// concurrent failures on the same account cannot under- or over-count.
	// It returns the post-increment counter and lock state.
	RegisterFailure(ctx context.Context, id string, threshold int, cooldown time.Duration) (attempts int, lockedUntil *time.Time, err error)

	// RegisterSuccess resets the counter to zero, clears any lock, and stamps
	// the last access time.
	RegisterSuccess(ctx context.Context, id string, at time.Time) error
}
