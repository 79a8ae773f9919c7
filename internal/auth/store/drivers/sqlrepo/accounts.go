package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
)

type accountsRepo struct {
	q *Queries
}

const accountColumns = `id, role, email, phone, password_hash, is_active, status, school_id,
	failed_login_attempts, last_failed_login_at, account_locked_until, last_login_at,
	must_change_password, created_at, updated_at`

func scanAccount(row rowScanner) (domain.Account, error) {
	var (
		a                                  domain.Account
		role, status                       string
		email, phone, schoolID             sql.NullString
		lastFailed, lockedUntil, lastLogin sql.NullInt64
		createdAt, updatedAt               int64
	)
	err := row.Scan(
		&a.ID, &role, &email, &phone, &a.PasswordHash, &a.IsActive, &status, &schoolID,
		&a.FailedLoginAttempts, &lastFailed, &lockedUntil, &lastLogin,
		&a.MustChangePassword, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	parsed, err := domain.ParseRole(role)
	if err != nil {
		return domain.Account{}, err
	}

	a.Role = parsed
	a.Status = domain.AccountStatus(status)
	a.Email = mapNullStringPtr(email)
	a.Phone = mapNullStringPtr(phone)
	a.SchoolID = mapNullStringPtr(schoolID)
	a.LastFailedLoginAt = mapNullTimePtr(lastFailed)
	a.AccountLockedUntil = mapNullTimePtr(lockedUntil)
	a.LastLoginAt = mapNullTimePtr(lastLogin)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	return scanAccount(r.q.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *accountsRepo) GetAccountByEmail(ctx context.Context, email string) (domain.Account, error) {
	return scanAccount(r.q.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *accountsRepo) GetParentAccountByPhone(ctx context.Context, phone string) (domain.Account, error) {
	return scanAccount(r.q.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE phone = ? AND role = ?`,
		phone, string(domain.RoleParent),
	))
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Role), mapOptionalString(a.Email), mapOptionalString(a.Phone),
		a.PasswordHash, a.IsActive, string(a.Status), mapOptionalString(a.SchoolID),
		a.FailedLoginAttempts, mapOptionalTime(a.LastFailedLoginAt),
		mapOptionalTime(a.AccountLockedUntil), mapOptionalTime(a.LastLoginAt),
		a.MustChangePassword, toMillis(createdAt), toMillis(createdAt),
	)
	return err
}

func (r *accountsRepo) RecordFailedLogin(
	ctx context.Context,
	id string,
	now time.Time,
	threshold int,
	window time.Duration,
) (store.FailedLoginResult, error) {
	nowMs := toMillis(now)
	lockUntil := toMillis(now.Add(window))

	// Both CASE arms read the pre-update row, so the count and the lock are
	// derived from the same snapshot in one statement.
	row := r.q.queryRow(ctx, `
		UPDATE accounts SET
			failed_login_attempts = CASE
				WHEN account_locked_until IS NOT NULL AND account_locked_until <= ? THEN 1
				ELSE failed_login_attempts + 1
			END,
			account_locked_until = CASE
				WHEN (CASE
					WHEN account_locked_until IS NOT NULL AND account_locked_until <= ? THEN 1
					ELSE failed_login_attempts + 1
				END) = ? THEN ?
				WHEN account_locked_until IS NOT NULL AND account_locked_until <= ? THEN NULL
				ELSE account_locked_until
			END,
			last_failed_login_at = ?,
			updated_at = ?
		WHERE id = ?
		RETURNING failed_login_attempts, account_locked_until`,
		nowMs, nowMs, threshold, lockUntil, nowMs, nowMs, nowMs, id,
	)

	var (
		attempts int
		locked   sql.NullInt64
	)
	if err := row.Scan(&attempts, &locked); err != nil {
		return store.FailedLoginResult{}, mapNotFound(err)
	}

	res := store.FailedLoginResult{
		Attempts:    attempts,
		LockedUntil: mapNullTimePtr(locked),
		Locked:      attempts == threshold && locked.Valid && locked.Int64 == lockUntil,
	}

	// Over threshold with no lock at all: the threshold was lowered after
	// these failures were counted. The IS NULL guard lets one writer win.
	if attempts > threshold && !locked.Valid {
		var until int64
		err := r.q.queryRow(ctx, `
			UPDATE accounts SET account_locked_until = ?, updated_at = ?
			WHERE id = ? AND account_locked_until IS NULL
			RETURNING account_locked_until`,
			lockUntil, nowMs, id,
		).Scan(&until)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// A concurrent writer set the lock first.
		case err != nil:
			return store.FailedLoginResult{}, err
		default:
			res.LockedUntil = mapNullTimePtr(sql.NullInt64{Int64: until, Valid: true})
			res.Locked = true
		}
	}

	return res, nil
}

func (r *accountsRepo) RecordSuccessfulLogin(
	ctx context.Context,
	id string,
	now time.Time,
	clearMustChange bool,
) (bool, error) {
	nowMs := toMillis(now)
	row := r.q.queryRow(ctx, `
		UPDATE accounts SET
			failed_login_attempts = 0,
			last_failed_login_at = NULL,
			account_locked_until = NULL,
			last_login_at = ?,
			must_change_password = CASE WHEN ? THEN FALSE ELSE must_change_password END,
			updated_at = ?
		WHERE id = ?
		  AND (account_locked_until IS NULL OR account_locked_until <= ?)
		RETURNING must_change_password`,
		nowMs, clearMustChange, nowMs, id, nowMs,
	)

	var mustChange bool
	if err := row.Scan(&mustChange); err != nil {
		return false, mapNotFound(err)
	}
	return mustChange, nil
}

func (r *accountsRepo) UpdatePassword(ctx context.Context, id, passwordHash string, now time.Time) error {
	res, err := r.q.exec(ctx, `
		UPDATE accounts SET
			password_hash = ?,
			failed_login_attempts = 0,
			last_failed_login_at = NULL,
			account_locked_until = NULL,
			must_change_password = FALSE,
			updated_at = ?
		WHERE id = ?`,
		passwordHash, toMillis(now), id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

func (r *accountsRepo) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.q.exec(ctx,
		`UPDATE accounts SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, toMillis(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *accountsRepo) SetStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	res, err := r.q.exec(ctx,
		`UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
