package domain

import "time"

// ResetPurpose records which flow minted a reset token.
type ResetPurpose string

const (
	ResetPurposeApproval    ResetPurpose = "approval"
	ResetPurposeSelfService ResetPurpose = "self_service"
)

// ResetToken is a single-use, time-boxed password reset credential. Only the
// fingerprint of the plaintext is ever stored.
type ResetToken struct {
	ID         string
	AccountID  string
	TokenHash  string
	Purpose    ResetPurpose
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// ExpiredAt treats the expiry instant itself as expired.
func (t *ResetToken) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *ResetToken) Consumed() bool {
	return t.ConsumedAt != nil
}
