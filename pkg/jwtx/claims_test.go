package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testIssuer = "schoolgate-test"

func TestValidateIssuer(t *testing.T) {
	c := &jwtx.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "auth-service"}}

	require.NoError(t, c.ValidateIssuer("auth-service"))
	require.NoError(t, c.ValidateIssuer(""))
	require.ErrorIs(t, c.ValidateIssuer("other"), jwtx.ErrIssuer)
}

func TestValidateAudience(t *testing.T) {
	c := &jwtx.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Audience: []string{"portal", "staff"}}}

	require.NoError(t, c.ValidateAudience([]string{"staff"}))
	require.NoError(t, c.ValidateAudience(nil))
	require.ErrorIs(t, c.ValidateAudience([]string{"billing"}), jwtx.ErrAudience)
}

func TestValidateExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	c := jwtx.NewSessionClaims("acc-1", "TEACHER", nil, nil, false, testIssuer, nil, time.Hour, now)

	require.NoError(t, c.ValidateExpiry(now, 0))
	require.NoError(t, c.ValidateExpiry(now.Add(59*time.Minute), 0))
	require.ErrorIs(t, c.ValidateExpiry(now.Add(time.Hour), 0), jwtx.ErrExpired)
	require.NoError(t, c.ValidateExpiry(now.Add(time.Hour), time.Minute))
	require.ErrorIs(t, c.ValidateExpiry(now.Add(-time.Second), 0), jwtx.ErrNotYetValid)
}

func TestNewSessionClaims(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	school := "school-1"
	c := jwtx.NewSessionClaims("acc-1", "SCHOOL_ADMIN", &school,
		&jwtx.SchoolClaim{ID: school, Name: "Hillside", Subdomain: "hillside"},
		true, testIssuer, []string{"portal"}, jwtx.DefaultSessionTTL, now)

	require.Equal(t, "acc-1", c.Subject)
	require.Equal(t, now.Add(30*24*time.Hour), c.ExpiresAt.Time)
	require.NotEmpty(t, c.ID)
	require.NotEqual(t, c.ID, jwtx.NewJTI())
	require.Equal(t, "hillside", c.School.Subdomain)
	require.True(t, c.MustChangePassword)
}
