package sqlrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
)

type signingKeysRepo struct {
	q *Queries
}

const signingKeyColumns = `id, kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at`

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.q.exec(ctx,
		`INSERT INTO signing_keys (`+signingKeyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PrivateKeyEncrypted,
		toMillis(stamp(key.CreatedAt)), mapOptionalTime(key.RetiredAt), toMillis(key.ExpiresAt),
	)
	return err
}

func (r *signingKeysRepo) ListActiveSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	return r.list(ctx, `
		SELECT `+signingKeyColumns+` FROM signing_keys
		WHERE retired_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC`,
		toMillis(now),
	)
}

func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	return r.list(ctx, `
		SELECT `+signingKeyColumns+` FROM signing_keys
		WHERE expires_at > ?
		ORDER BY created_at DESC`,
		toMillis(now),
	)
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, retiredAt, expiresAt time.Time) error {
	res, err := r.q.exec(ctx,
		`UPDATE signing_keys SET retired_at = ?, expires_at = ? WHERE kid = ? AND retired_at IS NULL`,
		toMillis(retiredAt), toMillis(expiresAt), kid,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.exec(ctx, `DELETE FROM signing_keys WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *signingKeysRepo) list(ctx context.Context, query string, args ...any) ([]domain.SigningKey, error) {
	rows, err := r.q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var (
			k                    domain.SigningKey
			createdAt, expiresAt int64
			retiredAt            sql.NullInt64
		)
		if err := rows.Scan(&k.ID, &k.Kid, &k.Algorithm, &k.PrivateKeyEncrypted, &createdAt, &retiredAt, &expiresAt); err != nil {
			return nil, err
		}
		k.CreatedAt = fromMillis(createdAt)
		k.RetiredAt = mapNullTimePtr(retiredAt)
		k.ExpiresAt = fromMillis(expiresAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
