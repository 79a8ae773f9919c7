package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store/drivers/sqlrepo"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect is the sqlrepo dialect for modernc.org/sqlite.
var Dialect = sqlrepo.Dialect{
	Name:              "sqlite",
	IsUniqueViolation: isUniqueViolation,
}

type Store struct {
	db  *sql.DB
	q   *sqlrepo.Queries
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	dsn = withFilePragmas(dsn)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Every connection to ":memory:" is its own database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		q:   sqlrepo.New(db, Dialect),
		dsn: dsn,
	}, nil
}

// filePragmas apply to every pooled connection. Writers wait on the lock
// instead of failing with SQLITE_BUSY, and transactions take the write
// lock at BEGIN so a read-then-write transaction cannot be refused on upgrade.
const filePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// FileDSN builds the DSN used for on-disk databases.
func FileDSN(path string) string {
	return "file:" + path + "?" + filePragmas
}

// withFilePragmas adds filePragmas to an on-disk DSN that sets none of its
// own. In-memory and explicitly tuned DSNs are returned unchanged.
func withFilePragmas(dsn string) string {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return dsn
	}
	if strings.Contains(dsn, "_pragma=") || strings.Contains(dsn, "_txlock=") {
		return dsn
	}

	path, query, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	out := FileDSN(path)
	if query != "" {
		out += "&" + query
	}
	return out
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Accounts() store.Accounts       { return s.q.Accounts() }
func (s *Store) Students() store.Students       { return s.q.Students() }
func (s *Store) Parents() store.Parents         { return s.q.Parents() }
func (s *Store) Schools() store.Schools         { return s.q.Schools() }
func (s *Store) ResetTokens() store.ResetTokens { return s.q.ResetTokens() }
func (s *Store) SigningKeys() store.SigningKeys { return s.q.SigningKeys() }

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return strings.Contains(se.Error(), "UNIQUE constraint failed")
}
