package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/internal/idp/store/drivers/sqlite"
	"github.com/polarisid/polaris/pkg/cryptox"
	"github.com/polarisid/polaris/pkg/idx"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func testTokenTTLs() TokenTTLs {
	return TokenTTLs{
		AuthorizationCode: 5 * time.Minute,
		Access:            time.Hour,
		Refresh:           30 * 24 * time.Hour,
		ID:                time.Hour,
		DeviceCode:        10 * time.Minute,
	}
}

func newTestSessions(st store.Store) *SessionService {
	return &SessionService{Store: st, TTL: time.Hour}
}

// newTestSession issues a session and returns the loaded record.
func newTestSession(t *testing.T, sessions *SessionService) domain.Session {
	t.Helper()

	opaque, err := sessions.Issue(context.Background())
	require.NoError(t, err)
	sess, err := sessions.Get(context.Background(), opaque)
	require.NoError(t, err)
	return sess
}

func seedUser(t *testing.T, st store.Store, username, password string, useTwoFactor bool) domain.User {
	t.Helper()
	ctx := context.Background()

	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Name:         username,
		Email:        username + "@example.com",
		Phone:        "+1555" + username,
		UseTwoFactor: useTwoFactor,
	}
	require.NoError(t, st.Users().CreateUser(ctx, user))

	if password != "" {
		hash, err := cryptox.HashPassword(password)
		require.NoError(t, err)
		seedCredential(t, st, user.ID, domain.MethodPassword, hash, false, false, true)
	}
	return user
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	return hash
}

func seedCredential(t *testing.T, st store.Store, userID string, method domain.Method, secret string, single, two, reset bool) domain.Credential {
	t.Helper()

	cred := domain.Credential{
		ID:                 idx.New().String(),
		UserID:             userID,
		Method:             method,
		Secret:             secret,
		AllowSingleFactor:  single,
		AllowTwoFactor:     two,
		AllowPasswordReset: reset,
	}
	require.NoError(t, st.Credentials().CreateCredential(context.Background(), cred))
	return cred
}

func seedACL(t *testing.T, st store.Store, rules []domain.Rule) domain.ACL {
	t.Helper()

	acl := domain.ACL{ID: idx.New().String(), Rules: rules}
	require.NoError(t, st.ACLs().CreateACL(context.Background(), acl))
	return acl
}

func seedClient(t *testing.T, st store.Store, aclID string, redirectURIs ...string) domain.Client {
	t.Helper()

	client := domain.Client{
		ID:           idx.New().String(),
		Name:         "test-app",
		RedirectURIs: redirectURIs,
		ACLID:        aclID,
	}
	require.NoError(t, st.Clients().CreateClient(context.Background(), client))
	return client
}

func seedPermissions(t *testing.T, st store.Store, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, st.Permissions().CreatePermission(context.Background(), domain.Permission{Name: name}))
	}
}
