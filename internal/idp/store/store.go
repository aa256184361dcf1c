package store

import (
	"context"
	"errors"
	"time"

	"github.com/polarisid/polaris/internal/idp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable; the core only ever needs point lookups, filtered scans, and
// create/update/delete.
type Store interface {
	Users() Users
	Credentials() Credentials
	Sessions() Sessions
	Clients() Clients
	ACLs() ACLs
	Permissions() Permissions
	Authorizations() Authorizations
	Tokens() Tokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns
	// nil and rolling back otherwise. This is the recommended way to do
	// multi-step mutations that must be atomic (session sub-state updates,
	// authorization-code consumption).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// FindUsersByIdentifier matches username, email, or phone. Several
	// users may share an email or phone, so this returns a slice.
	FindUsersByIdentifier(ctx context.Context, identifier string) ([]domain.User, error)

	CreateUser(ctx context.Context, u domain.User) error

	// SetUseTwoFactor flips the two-factor requirement flag.
	SetUseTwoFactor(ctx context.Context, userID string, enabled bool) error

	// TouchLastAuthenticated and TouchLastSignedIn stamp the respective
	// timestamps with the current time.
	TouchLastAuthenticated(ctx context.Context, userID string) error
	TouchLastSignedIn(ctx context.Context, userID string) error
}

type Credentials interface {
	GetCredentialByID(ctx context.Context, id string) (domain.Credential, error)

	ListCredentialsByUser(ctx context.Context, userID string) ([]domain.Credential, error)

	// ListCredentialsByMethod returns every credential of the given method
	// across all users. Used by passwordless sign-in when no identifier
	// narrows the candidates.
	ListCredentialsByMethod(ctx context.Context, method domain.Method) ([]domain.Credential, error)

	CreateCredential(ctx context.Context, c domain.Credential) error

	// UpdateCredentialFlags replaces the three capability flags.
	UpdateCredentialFlags(ctx context.Context, id string, singleFactor, twoFactor, passwordReset bool) error

	DeleteCredential(ctx context.Context, id string) error
}

type Sessions interface {
	// GetSessionByTokenHash returns a session by the fingerprint of its
	// opaque token.
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (domain.Session, error)

	CreateSession(ctx context.Context, s domain.Session) error

	// UpdateSession replaces the mutable parts (user set, extended-auth
	// sub-state) and bumps updated_at. Callers needing read-modify-write
	// atomicity run it inside WithTx.
	UpdateSession(ctx context.Context, s domain.Session) error

	DeleteSession(ctx context.Context, id string) error

	DeleteExpiredSessions(ctx context.Context, now time.Time) error
}

type Clients interface {
	GetClientByID(ctx context.Context, id string) (domain.Client, error)
	CreateClient(ctx context.Context, c domain.Client) error

	// UpdateClientRedirectURIs replaces the registered redirect URI set.
	UpdateClientRedirectURIs(ctx context.Context, clientID string, uris []string) error
}

type ACLs interface {
	GetACLByID(ctx context.Context, id string) (domain.ACL, error)
	CreateACL(ctx context.Context, acl domain.ACL) error
}

type Permissions interface {
	// GetPermissionByName resolves a scope token against the registry.
	GetPermissionByName(ctx context.Context, name string) (domain.Permission, error)
	CreatePermission(ctx context.Context, p domain.Permission) error
}

type Authorizations interface {
	GetAuthorizationByID(ctx context.Context, id string) (domain.Authorization, error)

	// ListAuthorizationsByUserAndClient returns the full consent history
	// for enforcement (the authorized set is the union over it).
	ListAuthorizationsByUserAndClient(ctx context.Context, userID, clientID string) ([]domain.Authorization, error)

	CreateAuthorization(ctx context.Context, a domain.Authorization) error

	// AttachUser binds a pending (device-flow) authorization to a user.
	AttachUser(ctx context.Context, authorizationID, userID string) error
}

type Tokens interface {
	GetTokenByHash(ctx context.Context, tokenHash string) (domain.Token, error)

	CreateToken(ctx context.Context, t domain.Token) error

	// DeleteToken removes a token record (revocation / consumption).
	DeleteToken(ctx context.Context, tokenHash string) error

	// ListTokensByTypeIssuedAfter is the filtered scan behind device-code
	// lookup: all tokens of the type still inside their TTL window.
	ListTokensByTypeIssuedAfter(ctx context.Context, typ domain.TokenType, after time.Time) ([]domain.Token, error)

	// UpdateTokenMetadata replaces a token's metadata payload.
	UpdateTokenMetadata(ctx context.Context, id string, md domain.TokenMetadata) error
}
