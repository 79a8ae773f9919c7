package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWK_PEM_Ed25519(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pemStr, err := NewEd25519JWK("kid", "sig", AlgorithmEdDSA, pub).PEM()
	require.NoError(t, err)

	block, _ := pem.Decode([]byte(pemStr))
	require.NotNil(t, block)
	require.Equal(t, "PUBLIC KEY", block.Type)

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)
	require.Equal(t, pub, parsed.(ed25519.PublicKey))
}

func TestJWK_Unsupported(t *testing.T) {
	_, err := JWK{Kty: "RSA"}.PEM()
	require.Error(t, err)

	_, err = JWK{Kty: "OKP", Crv: "X25519", X: "abc"}.PEM()
	require.Error(t, err)

	_, err = JWK{Kty: "OKP", Crv: "Ed25519", X: "c2hvcnQ"}.PEM()
	require.Error(t, err)
}

func TestKeySetRemoveAndReset(t *testing.T) {
	ks := NewKeySet()
	for _, kid := range []string{"a", "b"} {
		pub, _, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		require.NoError(t, ks.AddJWK(NewEd25519JWK(kid, "sig", AlgorithmEdDSA, pub)))
	}
	require.Len(t, ks.PublicJWKS().Keys, 2)

	ks.Remove("a")
	_, err := ks.Get("a")
	require.ErrorIs(t, err, ErrNoKey)
	require.Len(t, ks.PublicJWKS().Keys, 1)

	require.NoError(t, ks.ResetFromJWKS(JWKS{}))
	require.False(t, ks.IsReady())
}
