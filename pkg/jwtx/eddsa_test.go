package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/cryptox"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newSigner(t *testing.T, kid string) jwtx.Signer {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	signer := newSigner(t, "test-key-eddsa")
	require.NoError(t, signer.Validate())
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "test-key-eddsa", signer.KID())

	now := time.Now().UTC()
	school := "school-1"
	claims := jwtx.NewSessionClaims("acc-1", "PARENT", &school, nil, false, testIssuer, []string{"portal"}, time.Hour, now)

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))
	jwks := keyset.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)

	got, err := jwtx.NewVerifierEdDSA(keyset, testIssuer, []string{"portal"}).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "acc-1", got.Subject)
	require.Equal(t, "PARENT", got.Role)
	require.Equal(t, school, *got.SchoolID)
	require.Nil(t, got.School)
	require.Equal(t, claims.ID, got.ID)
}

func TestEdDSAVerifyFailures(t *testing.T) {
	signer := newSigner(t, "kid-a")
	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	now := time.Now().UTC()
	sign := func(c jwtx.SessionClaims) string {
		tok, err := signer.Sign(c)
		require.NoError(t, err)
		return tok
	}

	t.Run("wrong issuer", func(t *testing.T) {
		tok := sign(jwtx.NewSessionClaims("acc", "TEACHER", nil, nil, false, "someone-else", nil, time.Hour, now))
		_, err := jwtx.NewVerifierEdDSA(keyset, testIssuer, nil).Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired by injected clock", func(t *testing.T) {
		tok := sign(jwtx.NewSessionClaims("acc", "TEACHER", nil, nil, false, testIssuer, nil, time.Hour, now))
		v := jwtx.NewVerifierEdDSA(keyset, testIssuer, nil)
		v.Now = func() time.Time { return now.Add(2 * time.Hour) }
		_, err := v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("unknown kid", func(t *testing.T) {
		other := newSigner(t, "kid-b")
		tok, err := other.Sign(jwtx.NewSessionClaims("acc", "TEACHER", nil, nil, false, testIssuer, nil, time.Hour, now))
		require.NoError(t, err)
		_, err = jwtx.NewVerifierEdDSA(keyset, testIssuer, nil).Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok := sign(jwtx.NewSessionClaims("acc", "TEACHER", nil, nil, false, testIssuer, nil, time.Hour, now))
		parts := strings.Split(tok, ".")
		forged := sign(jwtx.NewSessionClaims("acc", "SUPER_ADMIN", nil, nil, false, testIssuer, nil, time.Hour, now))
		parts[1] = strings.Split(forged, ".")[1]
		parts[2] = strings.Split(tok, ".")[2]
		_, err := jwtx.NewVerifierEdDSA(keyset, testIssuer, nil).Verify(strings.Join(parts, "."))
		require.Error(t, err)
	})

	t.Run("other algorithm", func(t *testing.T) {
		c := jwtx.NewSessionClaims("acc", "TEACHER", nil, nil, false, testIssuer, nil, time.Hour, now)
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
		tok.Header["kid"] = "kid-a"
		s, err := tok.SignedString([]byte("secret"))
		require.NoError(t, err)
		_, err = jwtx.NewVerifierEdDSA(keyset, testIssuer, nil).Verify(s)
		require.Error(t, err)
	})
}
