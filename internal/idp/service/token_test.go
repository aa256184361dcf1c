package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/pkg/idx"
)

func seedAuthorization(t *testing.T, st store.Store, userID string) domain.Authorization {
	t.Helper()

	a := domain.Authorization{
		ID:          idx.New().String(),
		UserID:      userID,
		ClientID:    seedClient(t, st, seedACL(t, st, nil).ID, "https://app.example/cb").ID,
		Permissions: []string{"profile"},
	}
	require.NoError(t, st.Authorizations().CreateAuthorization(context.Background(), a))
	return a
}

func TestTokenIssueAndValidate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &TokenService{Store: st, TTLs: testTokenTTLs()}

	user := seedUser(t, st, "alice", "", false)
	auth := seedAuthorization(t, st, user.ID)

	opaque, err := svc.Issue(ctx, auth.ID, domain.TokenAccess, domain.TokenMetadata{})
	require.NoError(t, err)
	require.NotEmpty(t, opaque)

	valid, err := svc.IsValid(ctx, opaque)
	require.NoError(t, err)
	require.True(t, valid)

	valid, err = svc.IsValid(ctx, "unknown-token")
	require.NoError(t, err)
	require.False(t, valid)
}

func TestTokenExpiryIsComputedFromType(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	ttls := testTokenTTLs()
	ttls.Access = time.Millisecond
	svc := &TokenService{Store: st, TTLs: ttls}

	user := seedUser(t, st, "alice", "", false)
	auth := seedAuthorization(t, st, user.ID)

	opaque, err := svc.Issue(ctx, auth.ID, domain.TokenAccess, domain.TokenMetadata{})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	valid, err := svc.IsValid(ctx, opaque)
	require.NoError(t, err)
	require.False(t, valid)
}

func TestTokenRevoke(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &TokenService{Store: st, TTLs: testTokenTTLs()}

	user := seedUser(t, st, "alice", "", false)
	auth := seedAuthorization(t, st, user.ID)

	opaque, err := svc.Issue(ctx, auth.ID, domain.TokenRefresh, domain.TokenMetadata{})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, opaque))

	valid, err := svc.IsValid(ctx, opaque)
	require.NoError(t, err)
	require.False(t, valid)

	// Revoking again reports the missing token distinctly.
	require.ErrorIs(t, svc.Revoke(ctx, opaque), ErrInvalidGrant)
}

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &TokenService{Store: st, TTLs: testTokenTTLs()}

	user := seedUser(t, st, "alice", "", false)
	auth := seedAuthorization(t, st, user.ID)

	opaque, err := svc.Issue(ctx, auth.ID, domain.TokenAuthorizationCode, domain.TokenMetadata{
		CodeChallenge:       "challenge-value",
		CodeChallengeMethod: "plain",
	})
	require.NoError(t, err)

	consumed, err := svc.Consume(ctx, opaque, domain.TokenAuthorizationCode)
	require.NoError(t, err)
	require.Equal(t, auth.ID, consumed.AuthorizationID)
	require.Equal(t, "challenge-value", consumed.Metadata.CodeChallenge)

	// Replay fails: the record is gone.
	_, err = svc.Consume(ctx, opaque, domain.TokenAuthorizationCode)
	require.ErrorIs(t, err, ErrInvalidGrant)
}

func TestConsumeRejectsWrongTypeAndExpired(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	ttls := testTokenTTLs()
	ttls.AuthorizationCode = time.Millisecond
	svc := &TokenService{Store: st, TTLs: ttls}

	user := seedUser(t, st, "alice", "", false)
	auth := seedAuthorization(t, st, user.ID)

	access, err := svc.Issue(ctx, auth.ID, domain.TokenAccess, domain.TokenMetadata{})
	require.NoError(t, err)
	_, err = svc.Consume(ctx, access, domain.TokenAuthorizationCode)
	require.ErrorIs(t, err, ErrInvalidGrant)

	code, err := svc.Issue(ctx, auth.ID, domain.TokenAuthorizationCode, domain.TokenMetadata{})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.Consume(ctx, code, domain.TokenAuthorizationCode)
	require.ErrorIs(t, err, ErrInvalidGrant)
}
