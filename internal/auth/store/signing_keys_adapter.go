package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
)

// KeyStoreAdapter exposes Store signing keys as a jwtx.KeyStore, so jwtx
// never imports domain.
type KeyStoreAdapter struct {
	store Store
}

func NewKeyStoreAdapter(store Store) *KeyStoreAdapter {
	return &KeyStoreAdapter{store: store}
}

func (a *KeyStoreAdapter) ListAllSigningKeys(ctx context.Context, now time.Time) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListAllSigningKeys(ctx, now)
	if err != nil {
		return nil, err
	}
	return toRecords(keys), nil
}

func (a *KeyStoreAdapter) ListActiveSigningKeys(ctx context.Context, now time.Time) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListActiveSigningKeys(ctx, now)
	if err != nil {
		return nil, err
	}
	return toRecords(keys), nil
}

func (a *KeyStoreAdapter) CreateSigningKey(ctx context.Context, key jwtx.SigningKeyRecord) error {
	return a.store.SigningKeys().CreateSigningKey(ctx, domain.SigningKey(key))
}

func (a *KeyStoreAdapter) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	return a.store.SigningKeys().RetireSigningKey(ctx, kid, retiredAt, expiresAt)
}

func toRecords(keys []domain.SigningKey) []jwtx.SigningKeyRecord {
	records := make([]jwtx.SigningKeyRecord, len(keys))
	for i, k := range keys {
		records[i] = jwtx.SigningKeyRecord(k)
	}
	return records
}
