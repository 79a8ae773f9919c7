package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store/drivers/sqlrepo"
)

type txStore struct {
	tx *sql.Tx
	q  *sqlrepo.Queries
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{
		tx: tx,
		q:  sqlrepo.New(tx, Dialect),
	}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // the outer DB stays open

// Ping is a no-op; the connection is held by the transaction.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Accounts() store.Accounts       { return t.q.Accounts() }
func (t *txStore) Students() store.Students       { return t.q.Students() }
func (t *txStore) Parents() store.Parents         { return t.q.Parents() }
func (t *txStore) Schools() store.Schools         { return t.q.Schools() }
func (t *txStore) ResetTokens() store.ResetTokens { return t.q.ResetTokens() }
func (t *txStore) SigningKeys() store.SigningKeys { return t.q.SigningKeys() }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx
