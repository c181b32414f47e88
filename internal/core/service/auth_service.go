package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sgs-clinic/clinic-api/internal/api/metrics"
	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

const birthdateLayout = "2006-01-02"

// LockoutPolicy holds the brute-force throttling parameters.
type LockoutPolicy struct {
	Threshold int           // failed attempts before lock
	Cooldown  time.Duration // lock duration
}

// DefaultLockoutPolicy matches the policy the rest of the system depends on:
// five attempts, fifteen-minute cooldown.
var DefaultLockoutPolicy = LockoutPolicy{Threshold: 5, Cooldown: 15 * time.Minute}

// AuthService implements credential verification, the lockout policy, token
// issuance, and token validation.
type AuthService struct {
	repo      ports.AccountRepository
	jwtSecret []byte
	tokenTTL  time.Duration
	lockout   LockoutPolicy
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAuthService(repo ports.AccountRepository, jwtSecret string, tokenTTL time.Duration, lockout LockoutPolicy, logger zerolog.Logger) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 7 * 24 * time.Hour
	}
	if lockout.Threshold <= 0 {
		lockout.Threshold = DefaultLockoutPolicy.Threshold
	}
	if lockout.Cooldown <= 0 {
		lockout.Cooldown = DefaultLockoutPolicy.Cooldown
	}
	return &AuthService{
		repo:      repo,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		lockout:   lockout,
		logger:    logger,
		now:       time.Now,
	}
}

// Authenticate resolves the account for the login key, applies the active and
// lockout checks, verifies the secret, and issues a session token. The
// lockout check precedes secret verification: a locked account is rejected
// even with the correct secret. Unknown login keys are reported as plain
// invalid credentials so the response does not reveal account existence.
func (s *AuthService) Authenticate(ctx context.Context, loginKey, secret string, mode ports.LoginMode) (*ports.AuthResult, error) {
	if loginKey == "" || secret == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if mode == ports.ModePatient {
		if _, err := time.Parse(birthdateLayout, secret); err != nil {
			return nil, domain.ErrInvalidCredentials
		}
	}

	account, err := s.repo.FindByLoginKey(ctx, loginKey, mode == ports.ModePatient)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			metrics.LoginsTotal.WithLabelValues(string(mode), "invalid").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !account.Active {
		metrics.LoginsTotal.WithLabelValues(string(mode), "inactive").Inc()
		return nil, domain.ErrAccountInactive
	}

	now := s.now().UTC()
	if account.Locked(now) {
		metrics.LoginsTotal.WithLabelValues(string(mode), "locked").Inc()
		return nil, &domain.LockedError{Until: *account.LockedUntil}
	}

	if bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte(secret)) != nil {
		return nil, s.registerFailure(ctx, account, mode)
	}

	if err := s.repo.RegisterSuccess(ctx, account.ID, now); err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("failed to reset lockout state")
		return nil, err
	}
	account.FailedAttempts = 0
	account.LockedUntil = nil
	account.LastAccess = &now

	token, err := s.generateToken(account, now)
	if err != nil {
		return nil, err
	}

	metrics.LoginsTotal.WithLabelValues(string(mode), "success").Inc()
	s.logger.Info().
		Str("account_id", account.ID).
		Str("role", string(account.Role)).
		Str("mode", string(mode)).
		Msg("login succeeded")

	return &ports.AuthResult{Token: token, Account: account}, nil
}

// registerFailure persists the failed attempt and maps the post-increment
// state to the caller-visible rejection. The counter mutation commits even
// though the login call fails.
func (s *AuthService) registerFailure(ctx context.Context, account *domain.Account, mode ports.LoginMode) error {
	attempts, lockedUntil, err := s.repo.RegisterFailure(ctx, account.ID, s.lockout.Threshold, s.lockout.Cooldown)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("failed to record login attempt")
		return err
	}

	if lockedUntil != nil && attempts >= s.lockout.Threshold {
		metrics.LoginsTotal.WithLabelValues(string(mode), "locked_now").Inc()
		metrics.LockoutsTotal.Inc()
		s.logger.Warn().
			Str("account_id", account.ID).
			Time("locked_until", *lockedUntil).
			Msg("account locked after repeated failures")
		return &domain.LockedError{Until: *lockedUntil, JustLocked: true}
	}

	metrics.LoginsTotal.WithLabelValues(string(mode), "invalid").Inc()
	remaining := s.lockout.Threshold - attempts
	if remaining < 0 {
		remaining = 0
	}
	return &domain.CredentialsError{AttemptsRemaining: remaining}
}

// Authorize validates a bearer token and resolves the live account it
// asserts. Expired tokens are reported distinctly from malformed ones since
// the caller-visible remedy differs.
func (s *AuthService) Authorize(ctx context.Context, tokenString string) (*domain.Account, error) {
	if tokenString == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}
	if !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	accountID, _ := claims["sub"].(string)
	if accountID == "" {
		return nil, domain.ErrInvalidToken
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			// account deleted after the token was issued
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}
	if !account.Active {
		return nil, domain.ErrAccountInactive
	}
	return account, nil
}

// Register provisions a new account with a hashed secret.
func (s *AuthService) Register(ctx context.Context, input ports.RegisterInput) (*domain.Account, error) {
	if input.LoginKey == "" || input.Secret == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if _, ok := domain.ParseRole(string(input.Role)); !ok {
		return nil, fmt.Errorf("register: unknown role %q: %w", input.Role, domain.ErrForbidden)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	account := &domain.Account{
		LoginKey:   input.LoginKey,
		SecretHash: string(hash),
		Role:       input.Role,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.repo.Create(ctx, account)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("account_id", created.ID).Str("role", string(created.Role)).Msg("account registered")
	return created, nil
}

// generateToken signs the session claims: subject account id, role, login
// key, and expiry.
func (s *AuthService) generateToken(account *domain.Account, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":       account.ID,
		"role":      string(account.Role),
		"login_key": account.LoginKey,
		"iat":       now.Unix(),
		"exp":       now.Add(s.tokenTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.jwtSecret)
}
