package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cryptox-pepper")
	if err != nil {
		panic(err)
	}
	SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль密码"},
		{"whitespace password", "   spaces   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6)
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])
			require.NotEmpty(t, parts[4])
			require.NotEmpty(t, parts[5])

			require.NoError(t, VerifyPassword(tt.password, hash))
		})
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	a, err := HashPassword("same-password")
	require.NoError(t, err)
	b, err := HashPassword("same-password")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	require.ErrorIs(t, VerifyPassword("battery staple", hash), ErrPasswordMismatch)
	require.ErrorIs(t, VerifyPassword("Correct horse", hash), ErrPasswordMismatch)
	require.ErrorIs(t, VerifyPassword("", hash), ErrPasswordMismatch)
}

func TestVerifyPassword_Bcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, VerifyPassword("legacy-pass", string(legacy)))
	require.ErrorIs(t, VerifyPassword("other", string(legacy)), ErrPasswordMismatch)
	require.True(t, NeedsRehash(string(legacy)))
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
		want error
	}{
		{"empty", "", ErrUnknownHash},
		{"plaintext", "password", ErrUnknownHash},
		{"unsupported scheme", "$scrypt$ln=15$abc$def", ErrUnknownHash},
		{"missing parts", "$argon2id$v=19$m=19456,t=2,p=1$salt", nil},
		{"wrong version", "$argon2id$v=16$m=19456,t=2,p=1$c2FsdA$aGFzaA", nil},
		{"bad params", "$argon2id$v=19$garbage$c2FsdA$aGFzaA", nil},
		{"bad salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyPassword("password", tt.hash)
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrPasswordMismatch)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestHasher_Compare(t *testing.T) {
	var h Hasher

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	require.False(t, NeedsRehash(hash))

	ok, err := h.Compare("s3cret", hash)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Compare("wrong", hash)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = h.Compare("s3cret", "not-a-hash")
	require.Error(t, err)
	require.False(t, ok)
}

func TestHashPassword_PepperIntegration(t *testing.T) {
	hash, err := HashPassword("peppered")
	require.NoError(t, err)

	// Swap to a fresh pepper; the old hash must no longer verify.
	orig := pepperFile
	SetPepperPath(filepath.Join(t.TempDir(), "other-pepper"))
	t.Cleanup(func() { SetPepperPath(orig) })

	require.ErrorIs(t, VerifyPassword("peppered", hash), ErrPasswordMismatch)
}
