package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sgs-clinic/clinic-api/internal/core/domain"
	"github.com/sgs-clinic/clinic-api/internal/core/ports"
)

type stubAccountRepo struct {
	accounts map[string]*domain.Account
	now      func() time.Time
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{
		accounts: make(map[string]*domain.Account),
		now:      time.Now,
	}
}

func cloneAccount(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		clone.LockedUntil = &t
	}
	return &clone
}

func (r *stubAccountRepo) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.LoginKey == account.LoginKey && a.Role == account.Role {
			return nil, domain.ErrAccountExists
		}
	}
	copy := cloneAccount(account)
	if copy.ID == "" {
		copy.ID = "acc_" + account.LoginKey
	}
	r.accounts[copy.ID] = cloneAccount(copy)
	return cloneAccount(copy), nil
}

func (r *stubAccountRepo) FindByID(_ context.Context, id string) (*domain.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) FindByLoginKey(_ context.Context, loginKey string, patient bool) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.LoginKey != loginKey {
			continue
		}
		if patient != (a.Role == domain.RolePatient) {
			continue
		}
		return cloneAccount(a), nil
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) RegisterFailure(_ context.Context, id string, threshold int, cooldown time.Duration) (int, *time.Time, error) {
	a, ok := r.accounts[id]
	if !ok {
		return 0, nil, domain.ErrAccountNotFound
	}
	a.FailedAttempts++
	if a.FailedAttempts >= threshold {
		until := r.now().UTC().Add(cooldown)
		a.LockedUntil = &until
	}
	var lockedUntil *time.Time
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		lockedUntil = &t
	}
	return a.FailedAttempts, lockedUntil, nil
}

func (r *stubAccountRepo) RegisterSuccess(_ context.Context, id string, at time.Time) error {
	a, ok := r.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.LastAccess = &at
	return nil
}

func newTestAuthService(repo *stubAccountRepo) *AuthService {
	return NewAuthService(repo, "test-secret", time.Hour, DefaultLockoutPolicy, zerolog.Nop())
}

func seedStaff(t *testing.T, repo *stubAccountRepo, email, password string, role domain.Role) *domain.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	created, err := repo.Create(context.Background(), &domain.Account{
		LoginKey:   email,
		SecretHash: string(hash),
		Role:       role,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return created
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	seedStaff(t, repo, "doc@clinic.example", "s3cret!", domain.RoleDoctor)

	result, err := svc.Authenticate(context.Background(), "doc@clinic.example", "s3cret!", ports.ModeStaff)
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected token, got empty")
	}
	if result.Account.LastAccess == nil {
		t.Fatalf("expected last access to be set")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(result.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	if claims["sub"] != result.Account.ID {
		t.Fatalf("unexpected subject: %v", claims["sub"])
	}
	if claims["role"] != string(domain.RoleDoctor) {
		t.Fatalf("unexpected role claim: %v", claims["role"])
	}
}

func TestAuthService_Authenticate_UnknownLoginKey(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)

	_, err := svc.Authenticate(context.Background(), "ghost@clinic.example", "whatever", ports.ModeStaff)
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Authenticate_EmptyFields(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)

	if _, err := svc.Authenticate(context.Background(), "", "pass", ports.ModeStaff); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty login key, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "a@b.c", "", ports.ModeStaff); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty secret, got %v", err)
	}
}

func TestAuthService_Authenticate_WrongSecretCountsDown(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	for want := 4; want >= 1; want-- {
		_, err := svc.Authenticate(context.Background(), "doc@clinic.example", "wrong", ports.ModeStaff)
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		var ce *domain.CredentialsError
		if !errors.As(err, &ce) {
			t.Fatalf("expected CredentialsError, got %T", err)
		}
		if ce.AttemptsRemaining != want {
			t.Fatalf("expected %d attempts remaining, got %d", want, ce.AttemptsRemaining)
		}
	}
}

func TestAuthService_Authenticate_FifthFailureLocks(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	for i := 0; i < 4; i++ {
		_, _ = svc.Authenticate(context.Background(), "doc@clinic.example", "wrong", ports.ModeStaff)
	}

	_, err := svc.Authenticate(context.Background(), "doc@clinic.example", "wrong", ports.ModeStaff)
	if !errors.Is(err, domain.ErrAccountLockedNow) {
		t.Fatalf("expected ErrAccountLockedNow, got %v", err)
	}
	var le *domain.LockedError
	if !errors.As(err, &le) {
		t.Fatalf("expected LockedError, got %T", err)
	}
	if !le.JustLocked {
		t.Fatalf("expected JustLocked on the triggering attempt")
	}
	if minutes := le.RemainingMinutes(time.Now().UTC()); minutes < 14 || minutes > 15 {
		t.Fatalf("expected roughly 15 minutes remaining, got %d", minutes)
	}
}

func TestAuthService_Authenticate_LockedRejectsCorrectSecret(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	for i := 0; i < 5; i++ {
		_, _ = svc.Authenticate(context.Background(), "doc@clinic.example", "wrong", ports.ModeStaff)
	}

	_, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestAuthService_Authenticate_UnlocksAfterCooldown(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	account := seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	for i := 0; i < 5; i++ {
		_, _ = svc.Authenticate(context.Background(), "doc@clinic.example", "wrong", ports.ModeStaff)
	}

	// move the service clock past the cooldown
	svc.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	result, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if err != nil {
		t.Fatalf("expected login after cooldown, got %v", err)
	}
	if result.Account.ID != account.ID {
		t.Fatalf("unexpected account: %s", result.Account.ID)
	}
	if stored := repo.accounts[account.ID]; stored.FailedAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected lockout state reset, got attempts=%d locked=%v", stored.FailedAttempts, stored.LockedUntil)
	}
}

func TestAuthService_Authenticate_SuccessResetsCounter(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	account := seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	for i := 0; i < 3; i++ {
		_, _ = svc.Authenticate(context.Background(), "doc@clinic.example", "wrong", ports.ModeStaff)
	}
	if _, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if stored := repo.accounts[account.ID]; stored.FailedAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", stored.FailedAttempts)
	}

	// the full budget is available again
	var ce *domain.CredentialsError
	_, err := svc.Authenticate(context.Background(), "doc@clinic.example", "wrong", ports.ModeStaff)
	if !errors.As(err, &ce) || ce.AttemptsRemaining != 4 {
		t.Fatalf("expected 4 attempts remaining after reset, got %v", err)
	}
}

func TestAuthService_Authenticate_InactiveAccount(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	account := seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)
	repo.accounts[account.ID].Active = false

	_, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestAuthService_Authenticate_PatientMode(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)

	hash, _ := bcrypt.GenerateFromPassword([]byte("1990-04-12"), bcrypt.MinCost)
	_, err := repo.Create(context.Background(), &domain.Account{
		LoginKey:   "52998224725",
		SecretHash: string(hash),
		Role:       domain.RolePatient,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}

	result, err := svc.Authenticate(context.Background(), "52998224725", "1990-04-12", ports.ModePatient)
	if err != nil {
		t.Fatalf("patient login failed: %v", err)
	}
	if result.Account.Role != domain.RolePatient {
		t.Fatalf("unexpected role: %s", result.Account.Role)
	}

	// malformed birthdate is rejected before touching the repository
	if _, err := svc.Authenticate(context.Background(), "52998224725", "12/04/1990", ports.ModePatient); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for malformed birthdate, got %v", err)
	}
}

func TestAuthService_Authenticate_PatientModeIgnoresStaff(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	seedStaff(t, repo, "2000-01-01", "2000-01-01", domain.RoleDoctor)

	_, err := svc.Authenticate(context.Background(), "2000-01-01", "2000-01-01", ports.ModePatient)
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Authorize_Roundtrip(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	account := seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	result, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	resolved, err := svc.Authorize(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("authorize failed: %v", err)
	}
	if resolved.ID != account.ID {
		t.Fatalf("expected account %s, got %s", account.ID, resolved.ID)
	}
}

func TestAuthService_Authorize_EmptyToken(t *testing.T) {
	svc := newTestAuthService(newStubAccountRepo())

	if _, err := svc.Authorize(context.Background(), ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthService_Authorize_TamperedToken(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	result, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	tampered := result.Token[:len(result.Token)-2] + "xx"
	if _, err := svc.Authorize(context.Background(), tampered); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_Authorize_WrongSecret(t *testing.T) {
	repo := newStubAccountRepo()
	issuer := NewAuthService(repo, "other-secret", time.Hour, DefaultLockoutPolicy, zerolog.Nop())
	verifier := newTestAuthService(repo)
	seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	result, err := issuer.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := verifier.Authorize(context.Background(), result.Token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthService_Authorize_ExpiredToken(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	// issue a token already past its expiry
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	result, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	svc.now = time.Now

	if _, err := svc.Authorize(context.Background(), result.Token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthService_Authorize_DeletedAccount(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	account := seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	result, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	delete(repo.accounts, account.ID)
	if _, err := svc.Authorize(context.Background(), result.Token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestAuthService_Authorize_DeactivatedAccount(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)
	account := seedStaff(t, repo, "doc@clinic.example", "right", domain.RoleDoctor)

	result, err := svc.Authenticate(context.Background(), "doc@clinic.example", "right", ports.ModeStaff)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	repo.accounts[account.ID].Active = false
	if _, err := svc.Authorize(context.Background(), result.Token); !errors.Is(err, domain.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}

func TestAuthService_Register(t *testing.T) {
	repo := newStubAccountRepo()
	svc := newTestAuthService(repo)

	account, err := svc.Register(context.Background(), ports.RegisterInput{
		LoginKey: "nurse@clinic.example",
		Secret:   "pass123",
		Role:     domain.RoleReceptionist,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if account.SecretHash == "pass123" {
		t.Fatalf("expected secret to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.SecretHash), []byte("pass123")); err != nil {
		t.Fatalf("stored hash does not match secret: %v", err)
	}
	if !account.Active {
		t.Fatalf("expected new account to be active")
	}

	_, err = svc.Register(context.Background(), ports.RegisterInput{
		LoginKey: "nurse@clinic.example",
		Secret:   "pass456",
		Role:     domain.RoleReceptionist,
	})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}
