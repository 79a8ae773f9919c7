package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/cryptox"
)

const (
	defaultNumKeys = 2
	maxNumKeys     = 10
)

// KeyManager owns the signing keys for an instance plus the KeySet that
// verifies and publishes them. Signing picks a random active key.
type KeyManager struct {
	Verifier *EdDSAVerifier
	KeySet   *KeySet

	mu      sync.RWMutex
	signers []Signer
	created map[string]time.Time // kid: creation time, for rotation
}

// KeyManagerOptions configures the issuer/audience the verifier enforces and
// how many keys sign concurrently.
type KeyManagerOptions struct {
	Issuer   string
	Audience []string

	// NumKeys defaults to 2, capped at 10.
	NumKeys int
}

func (o *KeyManagerOptions) numKeys() int {
	switch {
	case o.NumKeys <= 0:
		return defaultNumKeys
	case o.NumKeys > maxNumKeys:
		return maxNumKeys
	default:
		return o.NumKeys
	}
}

func newKeyManager(opts KeyManagerOptions) *KeyManager {
	keyset := NewKeySet()
	return &KeyManager{
		Verifier: NewVerifierEdDSA(keyset, opts.Issuer, opts.Audience),
		KeySet:   keyset,
		created:  make(map[string]time.Time),
	}
}

// NewEphemeralKeyManager generates in-memory keys only. Every session issued
// by the process becomes invalid when it restarts.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	km := newKeyManager(opts)
	now := time.Now().UTC()
	for i := range opts.numKeys() {
		_, signer, err := generateSigner()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer, now); err != nil {
			return nil, err
		}
	}
	return km, nil
}

// generateSigner returns a fresh Ed25519 key as PEM and its signer.
func generateSigner() ([]byte, Signer, error) {
	kid, err := generateRandomKeyID()
	if err != nil {
		return nil, nil, err
	}
	pemBytes, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, nil, err
	}
	signer, err := NewSignerEdDSA(kid, pemBytes)
	if err != nil {
		return nil, nil, err
	}
	return pemBytes, signer, nil
}

func (km *KeyManager) Algorithm() string { return AlgorithmEdDSA }

// IsReady reports whether there is a key to sign with.
func (km *KeyManager) IsReady() bool {
	return km.NumSigners() > 0 && km.KeySet.IsReady()
}

// GetSigner returns a randomly selected active signer, or nil if none.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

// Sign signs claims with a random active key.
func (km *KeyManager) Sign(claims SessionClaims) (string, error) {
	signer := km.GetSigner()
	if signer == nil {
		return "", fmt.Errorf("jwtx: no active signing key")
	}
	return signer.Sign(claims)
}

func (km *KeyManager) Verify(token string) (SessionClaims, error) {
	return km.Verifier.Verify(token)
}

func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner makes signer available for both signing and verification.
func (km *KeyManager) AddSigner(signer Signer, createdAt time.Time) error {
	if signer == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}
	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	km.signers = append(km.signers, signer)
	km.created[signer.KID()] = createdAt
	return nil
}

// RetireSignerByKid stops kid from signing. It stays in the KeySet so
// tokens it already signed keep verifying.
func (km *KeyManager) RetireSignerByKid(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return fmt.Errorf("jwtx: cannot retire the last signing key")
	}

	kept := make([]Signer, 0, len(km.signers)-1)
	for _, s := range km.signers {
		if s.KID() != kid {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(km.signers) {
		return fmt.Errorf("jwtx: signer with kid %q not found", kid)
	}
	km.signers = kept
	delete(km.created, kid)
	return nil
}

// GetSigners returns a copy of all active signing keys.
func (km *KeyManager) GetSigners() []Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	signers := make([]Signer, len(km.signers))
	copy(signers, km.signers)
	return signers
}

// signersOlderThan lists active kids created at or before cutoff.
func (km *KeyManager) signersOlderThan(cutoff time.Time) []string {
	km.mu.RLock()
	defer km.mu.RUnlock()

	var kids []string
	for _, s := range km.signers {
		if c, ok := km.created[s.KID()]; ok && !c.After(cutoff) {
			kids = append(kids, s.KID())
		}
	}
	return kids
}

// generateRandomKeyID returns "schoolgate-" followed by a 128-bit token.
func generateRandomKeyID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to generate key ID: %w", err)
	}
	return "schoolgate-" + token, nil
}
