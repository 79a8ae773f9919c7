package sqlrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
)

type resetTokensRepo struct {
	q *Queries
}

func (r *resetTokensRepo) CreateResetToken(ctx context.Context, t domain.ResetToken) error {
	_, err := r.q.exec(ctx, `
		INSERT INTO reset_tokens (id, account_id, token_hash, purpose, issued_at, expires_at, consumed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.TokenHash, string(t.Purpose),
		toMillis(t.IssuedAt), toMillis(t.ExpiresAt), mapOptionalTime(t.ConsumedAt),
	)
	return err
}

func (r *resetTokensRepo) GetResetTokenByHash(ctx context.Context, hash string) (domain.ResetToken, error) {
	var (
		t                   domain.ResetToken
		purpose             string
		issuedAt, expiresAt int64
		consumedAt          sql.NullInt64
	)
	err := r.q.queryRow(ctx, `
		SELECT id, account_id, token_hash, purpose, issued_at, expires_at, consumed_at
		FROM reset_tokens
		WHERE token_hash = ?`,
		hash,
	).Scan(&t.ID, &t.AccountID, &t.TokenHash, &purpose, &issuedAt, &expiresAt, &consumedAt)
	if err != nil {
		return domain.ResetToken{}, mapNotFound(err)
	}

	t.Purpose = domain.ResetPurpose(purpose)
	t.IssuedAt = fromMillis(issuedAt)
	t.ExpiresAt = fromMillis(expiresAt)
	t.ConsumedAt = mapNullTimePtr(consumedAt)
	return t, nil
}

func (r *resetTokensRepo) InvalidateResetTokensForAccount(ctx context.Context, accountID string, now time.Time) error {
	_, err := r.q.exec(ctx, `
		UPDATE reset_tokens SET consumed_at = ?
		WHERE account_id = ? AND consumed_at IS NULL`,
		toMillis(now), accountID,
	)
	return err
}

func (r *resetTokensRepo) ConsumeResetToken(ctx context.Context, hash string, now time.Time) (string, error) {
	nowMs := toMillis(now)

	var accountID string
	err := r.q.queryRow(ctx, `
		UPDATE reset_tokens SET consumed_at = ?
		WHERE token_hash = ? AND consumed_at IS NULL AND expires_at > ?
		RETURNING account_id`,
		nowMs, hash, nowMs,
	).Scan(&accountID)
	if err != nil {
		return "", mapNotFound(err)
	}
	return accountID, nil
}

func (r *resetTokensRepo) DeleteExpiredResetTokens(ctx context.Context, now, consumedBefore time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `
		DELETE FROM reset_tokens
		WHERE expires_at <= ?
		   OR (consumed_at IS NOT NULL AND consumed_at <= ?)`,
		toMillis(now), toMillis(consumedBefore),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
