package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrUnknownKID   = errors.New("jwtx: unknown kid")
	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Verifier validates a session token and gives you back the claims if it's
// legit.
type Verifier interface {
	Verify(token string) (SessionClaims, error)
}

// EdDSAVerifier validates tokens signed by any key in its KeySet.
type EdDSAVerifier struct {
	keys   *KeySet
	issuer string
	aud    []string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

func NewVerifierEdDSA(keys *KeySet, issuer string, aud []string) *EdDSAVerifier {
	return &EdDSAVerifier{keys: keys, issuer: issuer, aud: aud}
}

func (v *EdDSAVerifier) Verify(tokenStr string) (SessionClaims, error) {
	// Expiry is checked below against the injected clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	var claims SessionClaims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformed
		}
		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		return SessionClaims{}, fmt.Errorf("jwtx: parse or verify: %w", err)
	}
	if !token.Valid || claims.Subject == "" {
		return SessionClaims{}, ErrInvalidClaim
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return SessionClaims{}, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return SessionClaims{}, err
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if err := claims.ValidateExpiry(now().UTC(), v.Leeway); err != nil {
		return SessionClaims{}, err
	}
	return claims, nil
}
