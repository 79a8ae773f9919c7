// Package sqlrepo holds the database/sql repositories shared by the sqlite
// and postgres drivers. Queries are written with "?" placeholders and
// rebound by the driver's Dialect.
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name string

	// Dollar rebinds "?" placeholders to "$1".."$n".
	Dollar bool

	// IsUniqueViolation recognises the driver's unique constraint error.
	IsUniqueViolation func(error) bool
}

// Queries binds a DBTX to a Dialect and hands out the repositories.
type Queries struct {
	db      DBTX
	dialect Dialect
}

func New(db DBTX, dialect Dialect) *Queries {
	return &Queries{db: db, dialect: dialect}
}

func (q *Queries) Accounts() store.Accounts       { return &accountsRepo{q: q} }
func (q *Queries) Students() store.Students       { return &studentsRepo{q: q} }
func (q *Queries) Parents() store.Parents         { return &parentsRepo{q: q} }
func (q *Queries) Schools() store.Schools         { return &schoolsRepo{q: q} }
func (q *Queries) ResetTokens() store.ResetTokens { return &resetTokensRepo{q: q} }
func (q *Queries) SigningKeys() store.SigningKeys { return &signingKeysRepo{q: q} }

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.rebind(query), args...)
	if err != nil {
		return nil, q.mapWriteErr(err)
	}
	return res, nil
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *Queries) rebind(query string) string {
	if !q.dialect.Dollar {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (q *Queries) mapWriteErr(err error) error {
	if q.dialect.IsUniqueViolation != nil && q.dialect.IsUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// requireAffected turns a zero-row write into ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// Timestamps are stored as unix milliseconds in both dialects.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func mapOptionalTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func mapNullTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapNullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}
