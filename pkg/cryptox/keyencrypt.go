package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
)

// MasterKeyEnv is consulted when no master key file is configured.
const MasterKeyEnv = "AUTH_MASTER_KEY"

var ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")

// Sealer encrypts signing key material at rest with AES-256-GCM. Output is
// [nonce][ciphertext][tag].
type Sealer struct {
	aead cipher.AEAD

	// Ephemeral is set when no master key was configured and a random one
	// was generated. Keys sealed by it cannot be opened after a restart.
	Ephemeral bool
}

// NewSealer derives the AES key as SHA-256 of the master key material.
func NewSealer(material []byte) (*Sealer, error) {
	key := sha256.Sum256(material)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// LoadSealer reads the master key from path, then from AUTH_MASTER_KEY, and
// otherwise falls back to an ephemeral random key.
func LoadSealer(path string) (*Sealer, error) {
	var material []byte
	ephemeral := false

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cryptox: read master key file: %w", err)
		}
		material = data
	case os.Getenv(MasterKeyEnv) != "":
		material = []byte(os.Getenv(MasterKeyEnv))
	default:
		material = make([]byte, 32)
		if _, err := rand.Read(material); err != nil {
			return nil, fmt.Errorf("cryptox: generate ephemeral master key: %w", err)
		}
		ephemeral = true
	}

	s, err := NewSealer(material)
	if err != nil {
		return nil, err
	}
	s.Ephemeral = ephemeral
	return s, nil
}

func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decryption failed: %w", err)
	}
	return plaintext, nil
}
