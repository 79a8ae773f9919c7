package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/metrics"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/pkg/cryptox"
	"github.com/aussiebroadwan/schoolgate/pkg/idx"
	"github.com/aussiebroadwan/schoolgate/pkg/slogx"
)

const (
	DefaultApprovalResetTTL    = 24 * time.Hour
	DefaultSelfServiceResetTTL = time.Hour

	// Consumed tokens are kept this long for audit before housekeeping
	// removes them.
	consumedRetention = 24 * time.Hour

	minPasswordLength = 8
	maxPasswordLength = 128
)

// ResetThrottler limits forgot-password requests; *limiter.ResetThrottle
// satisfies it.
type ResetThrottler interface {
	Allow(ctx context.Context, surface, identifier, ip string) error
}

// ResetTokenService issues and redeems single-use password reset tokens.
// Only token fingerprints are stored.
type ResetTokenService struct {
	Store    store.Store
	Hasher   PasswordHasher
	Notifier Notifier
	Resolver *IdentityResolver
	Throttle ResetThrottler // optional
	Metrics  *metrics.Metrics
	Now      func() time.Time

	// BaseURL prefixes the reset link: {BaseURL}/reset?token=...
	BaseURL        string
	ApprovalTTL    time.Duration
	SelfServiceTTL time.Duration
}

func (s *ResetTokenService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue stores a new token for the account, consuming any earlier ones in
// the same transaction, and returns the plaintext.
func (s *ResetTokenService) Issue(ctx context.Context, accountID string, ttl time.Duration, purpose domain.ResetPurpose) (string, error) {
	plaintext, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	now := s.now()

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.ResetTokens().InvalidateResetTokensForAccount(ctx, accountID, now); err != nil {
			return err
		}
		return tx.ResetTokens().CreateResetToken(ctx, domain.ResetToken{
			ID:        idx.NewAt(now).String(),
			AccountID: accountID,
			TokenHash: cryptox.FingerprintToken(plaintext),
			Purpose:   purpose,
			IssuedAt:  now,
			ExpiresAt: now.Add(ttl),
		})
	})
	if err != nil {
		return "", unavailable("issue reset token", err)
	}

	s.Metrics.ResetToken("issued")
	slogx.FromContext(ctx).Info("reset token issued",
		slog.String("account_id", accountID),
		slog.String("purpose", string(purpose)),
		slog.Time("expires_at", now.Add(ttl)),
	)
	return plaintext, nil
}

// ResetLink is the one-time URL embedding a plaintext token.
func (s *ResetTokenService) ResetLink(plaintext string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/reset?token=" + url.QueryEscape(plaintext)
}

// IssueApproval mints the 24h token sent with the welcome message once an
// account is approved.
func (s *ResetTokenService) IssueApproval(ctx context.Context, accountID string) error {
	acc, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}
	return s.issueAndNotify(ctx, acc, orDefault(s.ApprovalTTL, DefaultApprovalResetTTL), domain.ResetPurposeApproval, NotifyWelcome)
}

// Approve moves an account to ACTIVE and sends the welcome message with
// its first password link.
func (s *ResetTokenService) Approve(ctx context.Context, accountID string) error {
	acc, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.Status != domain.StatusActive {
		if err := s.Store.Accounts().SetStatus(ctx, acc.ID, domain.StatusActive); err != nil {
			return unavailable("activate account", err)
		}
		acc.Status = domain.StatusActive
		slogx.FromContext(ctx).Info("account approved", slog.String("account_id", acc.ID))
	}
	return s.issueAndNotify(ctx, acc, orDefault(s.ApprovalTTL, DefaultApprovalResetTTL), domain.ResetPurposeApproval, NotifyWelcome)
}

// IssueSelfService mints the 1h token for a known account and sends the
// password reset message.
func (s *ResetTokenService) IssueSelfService(ctx context.Context, accountID string) error {
	acc, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}
	return s.selfService(ctx, acc)
}

func (s *ResetTokenService) account(ctx context.Context, id string) (domain.Account, error) {
	acc, err := s.Store.Accounts().GetAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrNotFound
	}
	if err != nil {
		return domain.Account{}, unavailable("get account", err)
	}
	return acc, nil
}

func (s *ResetTokenService) selfService(ctx context.Context, acc domain.Account) error {
	return s.issueAndNotify(ctx, acc, orDefault(s.SelfServiceTTL, DefaultSelfServiceResetTTL), domain.ResetPurposeSelfService, NotifyPasswordReset)
}

// RequestSelfService handles "forgot password". It returns nil whether or
// not the identifier matched an account; only throttling and store failures
// are reported.
func (s *ResetTokenService) RequestSelfService(ctx context.Context, surface domain.LoginSurface, identifier, ip string) error {
	l := slogx.FromContext(ctx)

	if s.Throttle != nil {
		if err := s.Throttle.Allow(ctx, string(surface), identifier, ip); err != nil {
			s.Metrics.ResetToken("throttled")
			return err
		}
	}

	acc, err := s.Resolver.Resolve(ctx, surface, identifier)
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	if err != nil {
		l.Info("reset request ignored", slog.String("surface", string(surface)), slog.Any("reason", err))
		return nil
	}
	if !acc.IsActive {
		l.Info("reset request ignored: account disabled", slog.String("account_id", acc.ID))
		return nil
	}

	return s.selfService(ctx, acc)
}

func (s *ResetTokenService) issueAndNotify(ctx context.Context, acc domain.Account, ttl time.Duration, purpose domain.ResetPurpose, kind NotificationKind) error {
	plaintext, err := s.Issue(ctx, acc.ID, ttl, purpose)
	if err != nil {
		return err
	}
	notify(ctx, s.Notifier, kind, acc, map[string]any{
		"reset_link":    s.ResetLink(plaintext),
		"expires_hours": ttl.Hours(),
	})
	return nil
}

// Redeem consumes the token and sets the new password in one transaction.
// Concurrent redemptions of one token succeed exactly once.
func (s *ResetTokenService) Redeem(ctx context.Context, plaintext, newPassword string) error {
	if n := utf8.RuneCountInString(newPassword); n < minPasswordLength || n > maxPasswordLength {
		return ErrWeakPassword
	}
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return ErrResetTokenNotFound
	}

	// Hash outside the transaction so the write lock is held briefly.
	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	fingerprint := cryptox.FingerprintToken(plaintext)
	now := s.now()
	var accountID string

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		id, err := tx.ResetTokens().ConsumeResetToken(ctx, fingerprint, now)
		if errors.Is(err, store.ErrNotFound) {
			return classifyRejectedToken(ctx, tx, fingerprint, now)
		}
		if err != nil {
			return err
		}
		accountID = id
		return tx.Accounts().UpdatePassword(ctx, id, hash, now)
	})

	switch {
	case errors.Is(err, ErrResetTokenNotFound):
		s.Metrics.ResetToken("rejected_not_found")
		return err
	case errors.Is(err, ErrResetTokenUsed):
		s.Metrics.ResetToken("rejected_used")
		return err
	case errors.Is(err, ErrResetTokenExpired):
		s.Metrics.ResetToken("rejected_expired")
		return err
	case err != nil:
		return unavailable("redeem reset token", err)
	}

	s.Metrics.ResetToken("redeemed")
	slogx.FromContext(ctx).Info("password reset", slog.String("account_id", accountID))
	return nil
}

// classifyRejectedToken explains why the conditional consume matched no row.
func classifyRejectedToken(ctx context.Context, tx store.Tx, fingerprint string, now time.Time) error {
	t, err := tx.ResetTokens().GetResetTokenByHash(ctx, fingerprint)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrResetTokenNotFound
	case err != nil:
		return err
	case t.Consumed():
		return ErrResetTokenUsed
	case t.ExpiredAt(now):
		return ErrResetTokenExpired
	default:
		return ErrResetTokenUsed
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
