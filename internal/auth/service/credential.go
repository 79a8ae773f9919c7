package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/metrics"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/pkg/slogx"
)

// PasswordHasher is satisfied by cryptox.Hasher. Compare returns false with
// a nil error for a wrong password.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) (bool, error)
}

// LoginRequest is a role-tagged login attempt.
type LoginRequest struct {
	Surface    domain.LoginSurface
	Identifier string
	Password   string
}

// AuthResult is a successful authentication. MustChangePassword is the
// value after the success write.
type AuthResult struct {
	Account            domain.Account
	MustChangePassword bool
}

// CredentialVerifier turns a login attempt into an AuthResult or a
// *Failure. Every dependency is a field; it keeps no other state.
type CredentialVerifier struct {
	Resolver *IdentityResolver
	Store    store.Store
	Hasher   PasswordHasher
	Notifier Notifier
	Policy   LockoutPolicy
	Now      func() time.Time
	Metrics  *metrics.Metrics

	// ClearAdminMustChange clears must_change_password for SUPER_ADMIN and
	// SCHOOL_ADMIN on every successful login.
	ClearAdminMustChange bool

	dummyOnce sync.Once
	dummyHash string
}

func (v *CredentialVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}

// Authenticate resolves, gates, compares and then performs exactly one
// conditional write. Failures are *Failure values; store problems wrap
// ErrUnavailable.
func (v *CredentialVerifier) Authenticate(ctx context.Context, req LoginRequest) (AuthResult, error) {
	start := time.Now()
	res, err := v.authenticate(ctx, req)

	outcome := "success"
	if f, ok := AsFailure(err); ok {
		outcome = f.Outcome()
	} else if err != nil {
		outcome = "error"
	}
	v.Metrics.ObserveLogin(string(req.Surface), outcome, time.Since(start))
	return res, err
}

func (v *CredentialVerifier) authenticate(ctx context.Context, req LoginRequest) (AuthResult, error) {
	l := slogx.FromContext(ctx)
	now := v.now()

	resolver, err := v.Resolver.For(req.Surface)
	if err != nil {
		return AuthResult{}, err
	}

	acc, err := resolver.Resolve(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			v.burnCompare(req.Password)
		}
		l.Info("login refused during resolution", slog.String("surface", string(req.Surface)), slog.Any("error", err))
		return AuthResult{}, err
	}
	l = l.With(slog.String("account_id", acc.ID))

	if !acc.IsActive {
		l.Info("login refused: account disabled")
		return AuthResult{}, ErrInvalidCredentials
	}
	if acc.Status != domain.StatusActive {
		l.Info("login refused: account not active", slog.String("status", string(acc.Status)))
		return AuthResult{}, ErrInactiveAccount
	}
	if acc.LockedAt(now) {
		return AuthResult{}, Locked(MinutesUntil(*acc.AccountLockedUntil, now))
	}

	ok, err := v.Hasher.Compare(req.Password, acc.PasswordHash)
	if err != nil {
		// An unreadable stored hash can never match; count it like a miss.
		l.Error("password compare failed", slog.Any("error", err))
		ok = false
	}
	if !ok {
		return AuthResult{}, v.recordFailure(ctx, l, acc, now)
	}

	clearMustChange := v.ClearAdminMustChange && acc.Role.IsAdministrative()
	mustChange, err := v.Store.Accounts().RecordSuccessfulLogin(ctx, acc.ID, now, clearMustChange)
	if errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, v.lostRace(ctx, acc.ID, now)
	}
	if err != nil {
		return AuthResult{}, unavailable("record successful login", err)
	}

	acc.FailedLoginAttempts = 0
	acc.LastFailedLoginAt = nil
	acc.AccountLockedUntil = nil
	acc.LastLoginAt = &now
	acc.MustChangePassword = mustChange

	l.Info("login succeeded", slog.String("role", string(acc.Role)))
	return AuthResult{Account: acc, MustChangePassword: mustChange}, nil
}

// recordFailure persists the miss and, on the write that crossed the
// threshold, sends the lock notification. The lock itself is reported on
// the next attempt.
func (v *CredentialVerifier) recordFailure(ctx context.Context, l *slog.Logger, acc domain.Account, now time.Time) error {
	res, err := v.Store.Accounts().RecordFailedLogin(ctx, acc.ID, now, v.Policy.Threshold, v.Policy.Window)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return unavailable("record failed login", err)
	}

	l.Info("login refused: bad password", slog.Int("failed_attempts", res.Attempts))

	if res.Locked && res.LockedUntil != nil {
		minutes := MinutesUntil(*res.LockedUntil, now)
		v.Metrics.AccountLocked()
		l.Warn("account locked", slog.Time("locked_until", *res.LockedUntil))
		notify(ctx, v.Notifier, NotifyAccountLocked, acc, map[string]any{
			"minutes":      minutes,
			"locked_until": res.LockedUntil.Format(time.RFC3339),
		})
	}
	return ErrInvalidCredentials
}

// lostRace handles a success write refused because concurrent failures
// locked the account after it was read.
func (v *CredentialVerifier) lostRace(ctx context.Context, id string, now time.Time) error {
	acc, err := v.Store.Accounts().GetAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return unavailable("reload account", err)
	}
	if acc.LockedAt(now) {
		return Locked(MinutesUntil(*acc.AccountLockedUntil, now))
	}
	return ErrInvalidCredentials
}

// burnCompare spends a hash comparison on unknown identifiers so response
// time does not reveal whether an account exists.
func (v *CredentialVerifier) burnCompare(password string) {
	v.dummyOnce.Do(func() {
		v.dummyHash, _ = v.Hasher.Hash("schoolgate-unknown-account")
	})
	if v.dummyHash != "" {
		_, _ = v.Hasher.Compare(password, v.dummyHash)
	}
}
