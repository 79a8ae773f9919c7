package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the session max-age when none is configured.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SchoolClaim is the tenant snapshot embedded in a session.
type SchoolClaim struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
}

// SessionClaims are the signed form of an authenticated session. The
// subject is the account id.
type SessionClaims struct {
	jwt.RegisteredClaims

	Role               string       `json:"role"`
	SchoolID           *string      `json:"school_id,omitempty"`
	School             *SchoolClaim `json:"school,omitempty"`
	MustChangePassword bool         `json:"must_change_password"`
}

// NewSessionClaims builds claims valid from now until now+ttl.
func NewSessionClaims(
	accountID, role string,
	schoolID *string,
	school *SchoolClaim,
	mustChangePassword bool,
	issuer string,
	audience []string,
	ttl time.Duration,
	now time.Time,
) SessionClaims {
	return SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   accountID,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Role:               role,
		SchoolID:           schoolID,
		School:             school,
		MustChangePassword: mustChangePassword,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func (c *SessionClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *SessionClaims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry checks exp and nbf against now, allowing leeway for clock
// skew in both directions.
func (c *SessionClaims) ValidateExpiry(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
