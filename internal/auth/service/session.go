package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
)

var ErrInvalidSession = errors.New("service: invalid session token")

// SessionKeys signs and verifies session tokens; *jwtx.KeyManager
// satisfies it.
type SessionKeys interface {
	Sign(jwtx.SessionClaims) (string, error)
	Verify(token string) (jwtx.SessionClaims, error)
}

// IssuedSession is a signed session token and the claim set inside it.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	Session   domain.Session
}

// SessionIssuer builds claim sets from authenticated accounts. Claims are
// only ever rebuilt from storage by an explicit Refresh.
type SessionIssuer struct {
	Store    store.Store
	Keys     SessionKeys
	Issuer   string
	Audience []string
	MaxAge   time.Duration
	Now      func() time.Time
}

func (s *SessionIssuer) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Build returns the claim set for acc, loading its school when set.
func (s *SessionIssuer) Build(ctx context.Context, acc domain.Account, mustChangePassword bool) (domain.Session, error) {
	sess := domain.Session{
		AccountID:          acc.ID,
		Role:               acc.Role,
		SchoolID:           acc.SchoolID,
		MustChangePassword: mustChangePassword,
	}
	if acc.SchoolID == nil {
		return sess, nil
	}

	school, err := s.Store.Schools().GetSchoolByID(ctx, *acc.SchoolID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Dangling tenant reference; the id alone is still reported.
	case err != nil:
		return domain.Session{}, unavailable("get school", err)
	default:
		sess.School = &domain.SchoolRef{ID: school.ID, Name: school.Name, Subdomain: school.Subdomain}
	}
	return sess, nil
}

// Issue builds and signs a session for a freshly authenticated account.
func (s *SessionIssuer) Issue(ctx context.Context, acc domain.Account, mustChangePassword bool) (IssuedSession, error) {
	sess, err := s.Build(ctx, acc, mustChangePassword)
	if err != nil {
		return IssuedSession{}, err
	}
	return s.sign(sess)
}

// Refresh re-reads the account and school and issues a new session. It is
// the only path by which claims change after login.
func (s *SessionIssuer) Refresh(ctx context.Context, accountID string) (IssuedSession, error) {
	acc, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return IssuedSession{}, ErrInvalidCredentials
	}
	if err != nil {
		return IssuedSession{}, unavailable("get account", err)
	}
	if !acc.IsActive {
		return IssuedSession{}, ErrInvalidCredentials
	}
	if acc.Status != domain.StatusActive {
		return IssuedSession{}, ErrInactiveAccount
	}
	return s.Issue(ctx, acc, acc.MustChangePassword)
}

// Verify checks a session token and returns the claim set it carries.
func (s *SessionIssuer) Verify(token string) (domain.Session, error) {
	c, err := s.Keys.Verify(token)
	if err != nil {
		return domain.Session{}, errors.Join(ErrInvalidSession, err)
	}
	return SessionFromClaims(c)
}

// SessionFromClaims maps verified token claims back onto the claim set.
func SessionFromClaims(c jwtx.SessionClaims) (domain.Session, error) {
	role, err := domain.ParseRole(c.Role)
	if err != nil {
		return domain.Session{}, errors.Join(ErrInvalidSession, err)
	}

	sess := domain.Session{
		AccountID:          c.Subject,
		Role:               role,
		SchoolID:           c.SchoolID,
		MustChangePassword: c.MustChangePassword,
	}
	if c.School != nil {
		sess.School = &domain.SchoolRef{ID: c.School.ID, Name: c.School.Name, Subdomain: c.School.Subdomain}
	}
	return sess, nil
}

func (s *SessionIssuer) sign(sess domain.Session) (IssuedSession, error) {
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = jwtx.DefaultSessionTTL
	}
	now := s.now()

	var school *jwtx.SchoolClaim
	if sess.School != nil {
		school = &jwtx.SchoolClaim{ID: sess.School.ID, Name: sess.School.Name, Subdomain: sess.School.Subdomain}
	}
	claims := jwtx.NewSessionClaims(
		sess.AccountID, string(sess.Role),
		sess.SchoolID, school,
		sess.MustChangePassword,
		s.Issuer, s.Audience,
		maxAge, now,
	)

	token, err := s.Keys.Sign(claims)
	if err != nil {
		return IssuedSession{}, err
	}
	return IssuedSession{Token: token, ExpiresAt: now.Add(maxAge), Session: sess}, nil
}
