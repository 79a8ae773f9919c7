package jwtx

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/schoolgate/pkg/idx"
)

// SigningKeyRecord is a signing key as persisted. It mirrors the domain
// type so jwtx does not import the service's packages.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// KeyStore is the persistence a KeyManager needs.
type KeyStore interface {
	// ListAllSigningKeys returns every key still inside its verification window.
	ListAllSigningKeys(ctx context.Context, now time.Time) ([]SigningKeyRecord, error)

	// ListActiveSigningKeys returns keys that may still sign.
	ListActiveSigningKeys(ctx context.Context, now time.Time) ([]SigningKeyRecord, error)

	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
	RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error
}

// KeySealer protects private key material at rest.
type KeySealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

type PersistentKeyManagerOptions struct {
	KeyManagerOptions

	Store  KeyStore
	Sealer KeySealer

	// GracePeriod is how long a retired key keeps verifying. It must cover
	// the session max-age. Defaults to 30 days.
	GracePeriod time.Duration

	// RotateAfter is how long a key signs before Rotate retires it. Defaults
	// to GracePeriod.
	RotateAfter time.Duration
}

// PersistentKeyManager is a KeyManager whose keys survive restarts.
type PersistentKeyManager struct {
	*KeyManager

	store       KeyStore
	sealer      KeySealer
	numKeys     int
	gracePeriod time.Duration
	rotateAfter time.Duration
}

// NewPersistentKeyManager loads every verifiable key from the store, signs
// with the active ones, and tops up to NumKeys active keys.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions, now time.Time) (*PersistentKeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if opts.Sealer == nil {
		return nil, fmt.Errorf("jwtx: Sealer is required for persistent key manager")
	}
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultSessionTTL
	}
	if opts.RotateAfter <= 0 {
		opts.RotateAfter = opts.GracePeriod
	}

	pkm := &PersistentKeyManager{
		KeyManager:  newKeyManager(opts.KeyManagerOptions),
		store:       opts.Store,
		sealer:      opts.Sealer,
		numKeys:     opts.numKeys(),
		gracePeriod: opts.GracePeriod,
		rotateAfter: opts.RotateAfter,
	}

	all, err := opts.Store.ListAllSigningKeys(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to load keys from database: %w", err)
	}

	for _, rec := range all {
		signer, err := pkm.open(rec)
		if err != nil {
			return nil, err
		}
		if rec.RetiredAt == nil {
			if err := pkm.AddSigner(signer, rec.CreatedAt); err != nil {
				return nil, err
			}
			continue
		}
		if err := pkm.KeySet.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add key %s to keyset: %w", rec.Kid, err)
		}
	}

	if err := pkm.topUp(ctx, now); err != nil {
		return nil, err
	}
	return pkm, nil
}

func (pkm *PersistentKeyManager) open(rec SigningKeyRecord) (Signer, error) {
	if rec.Algorithm != AlgorithmEdDSA {
		return nil, fmt.Errorf("jwtx: key %s has unsupported algorithm %q", rec.Kid, rec.Algorithm)
	}
	pemData, err := pkm.sealer.Open(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to decrypt key %s: %w", rec.Kid, err)
	}
	signer, err := NewSignerEdDSA(rec.Kid, pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to create signer for key %s: %w", rec.Kid, err)
	}
	return signer, nil
}

// topUp generates and stores keys until numKeys are active.
func (pkm *PersistentKeyManager) topUp(ctx context.Context, now time.Time) error {
	for pkm.NumSigners() < pkm.numKeys {
		pemData, signer, err := generateSigner()
		if err != nil {
			return fmt.Errorf("jwtx: failed to generate new key: %w", err)
		}
		sealed, err := pkm.sealer.Seal(pemData)
		if err != nil {
			return fmt.Errorf("jwtx: failed to encrypt new key: %w", err)
		}

		rec := SigningKeyRecord{
			ID:                  idx.NewAt(now).String(),
			Kid:                 signer.KID(),
			Algorithm:           AlgorithmEdDSA,
			PrivateKeyEncrypted: sealed,
			CreatedAt:           now,
			// Upper bound; Rotate shortens it to retiredAt+GracePeriod.
			ExpiresAt: now.Add(pkm.rotateAfter + pkm.gracePeriod),
		}
		if err := pkm.store.CreateSigningKey(ctx, rec); err != nil {
			return fmt.Errorf("jwtx: failed to store new key: %w", err)
		}
		if err := pkm.AddSigner(signer, now); err != nil {
			return err
		}
	}
	return nil
}

// Rotate retires keys that have signed for RotateAfter, replaces them, and
// drops keys whose verification window has closed from the KeySet. It
// returns the number of keys retired.
func (pkm *PersistentKeyManager) Rotate(ctx context.Context, now time.Time) (int, error) {
	stale := pkm.signersOlderThan(now.Add(-pkm.rotateAfter))

	// Add replacements first so there is never zero active keys.
	pkm.numKeys += len(stale)
	err := pkm.topUp(ctx, now)
	pkm.numKeys -= len(stale)
	if err != nil {
		return 0, err
	}

	retired := 0
	for _, kid := range stale {
		if err := pkm.store.RetireSigningKey(ctx, kid, now, now.Add(pkm.gracePeriod)); err != nil {
			return retired, fmt.Errorf("jwtx: failed to retire key %s: %w", kid, err)
		}
		if err := pkm.RetireSignerByKid(kid); err != nil {
			return retired, err
		}
		retired++
	}

	live, err := pkm.store.ListAllSigningKeys(ctx, now)
	if err != nil {
		return retired, fmt.Errorf("jwtx: failed to list keys: %w", err)
	}
	keep := make(map[string]struct{}, len(live))
	for _, rec := range live {
		keep[rec.Kid] = struct{}{}
	}
	for _, j := range pkm.KeySet.PublicJWKS().Keys {
		if _, ok := keep[j.Kid]; !ok {
			pkm.KeySet.Remove(j.Kid)
		}
	}
	return retired, nil
}
