package sqlite

import (
	"context"
	"database/sql"

	"github.com/polarisid/polaris/internal/idp/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // nothing to close; the outer DB stays open

// Ping is a no-op for transactions; the connection already exists.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return sql.ErrTxDone
}

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx starts

func (t *txStore) Users() store.Users                   { return &usersRepo{db: t.tx} }
func (t *txStore) Credentials() store.Credentials       { return &credentialsRepo{db: t.tx} }
func (t *txStore) Sessions() store.Sessions             { return &sessionsRepo{db: t.tx} }
func (t *txStore) Clients() store.Clients               { return &clientsRepo{db: t.tx} }
func (t *txStore) ACLs() store.ACLs                     { return &aclsRepo{db: t.tx} }
func (t *txStore) Permissions() store.Permissions       { return &permissionsRepo{db: t.tx} }
func (t *txStore) Authorizations() store.Authorizations { return &authorizationsRepo{db: t.tx} }
func (t *txStore) Tokens() store.Tokens                 { return &tokensRepo{db: t.tx} }
