package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/pkg/cryptox"
)

func TestSessionIssueAndGet(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)

	opaque, err := sessions.Issue(ctx)
	require.NoError(t, err)

	sess, err := sessions.Get(ctx, opaque)
	require.NoError(t, err)
	require.Empty(t, sess.UserIDs)
	require.Nil(t, sess.ExtendedAuth)

	_, err = sessions.Get(ctx, "not-a-session")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionExpiry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := &SessionService{Store: st, TTL: -time.Minute}

	opaque, err := sessions.Issue(ctx)
	require.NoError(t, err)

	_, err = sessions.Get(ctx, opaque)
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, sessions.DeleteExpired(ctx))
	_, err = st.Sessions().GetSessionByTokenHash(ctx, cryptox.FingerprintToken(opaque))
	require.Error(t, err)
}

func TestSessionMutateRoundTripsSubState(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)

	sess := newTestSession(t, sessions)
	issued := time.Now().UTC().Truncate(time.Second)

	err := sessions.Mutate(ctx, sess.TokenHash, func(cur *domain.Session) error {
		cur.ExtendedAuth = &domain.ExtendedAuth{
			UserID:             "user-1",
			Flow:               domain.FlowTwoFactor,
			Method:             domain.MethodSMS,
			Challenge:          "123456",
			ChallengeCreatedAt: &issued,
		}
		return nil
	})
	require.NoError(t, err)

	fresh, err := st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	require.NotNil(t, fresh.ExtendedAuth)
	require.Equal(t, "user-1", fresh.ExtendedAuth.UserID)
	require.Equal(t, domain.MethodSMS, fresh.ExtendedAuth.Method)
	require.Equal(t, "123456", fresh.ExtendedAuth.Challenge)
	require.Equal(t, issued, fresh.ExtendedAuth.ChallengeCreatedAt.UTC())
}

func TestSessionMultipleUsers(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)

	sess := newTestSession(t, sessions)
	for _, id := range []string{"user-1", "user-2", "user-1"} {
		err := sessions.Mutate(ctx, sess.TokenHash, func(cur *domain.Session) error {
			cur.Login(id)
			return nil
		})
		require.NoError(t, err)
	}

	fresh, err := st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	require.Equal(t, []string{"user-1", "user-2"}, fresh.UserIDs)
	require.True(t, sessions.PreviouslyLoggedIn(fresh, "user-2"))
	require.False(t, sessions.PreviouslyLoggedIn(fresh, "user-3"))
}
