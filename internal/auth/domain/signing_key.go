package domain

import "time"

// SigningKey is a session signing key persisted so that issued sessions
// outlive a restart. The private key is AES-GCM sealed at rest.
type SigningKey struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time // nil while the key still signs
	ExpiresAt           time.Time  // verification stops and the row is collected
}

func (k *SigningKey) IsActive(now time.Time) bool {
	return k.RetiredAt == nil && now.Before(k.ExpiresAt)
}
