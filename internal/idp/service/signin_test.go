package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/internal/idp/store"
)

func newSigninService(st store.Store, sessions *SessionService) *SigninService {
	return &SigninService{
		Store:             st,
		Sessions:          sessions,
		ChallengeTTL:      300 * time.Second,
		ChallengeCooldown: time.Minute,
	}
}

func TestProbe(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	alice := seedUser(t, st, "alice", "correct horse", false)
	sess := newTestSession(t, sessions)

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := svc.Probe(ctx, sess, "nobody")
		require.ErrorIs(t, err, ErrWrongUsername)
	})

	t.Run("known identifier without prior login is existence-only", func(t *testing.T) {
		profile, err := svc.Probe(ctx, sess, "alice")
		require.NoError(t, err)
		require.Nil(t, profile)
	})

	t.Run("profile after signing in on this session", func(t *testing.T) {
		_, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "198.51.100.7")
		require.NoError(t, err)

		fresh, err := st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
		require.NoError(t, err)

		profile, err := svc.Probe(ctx, fresh, "alice")
		require.NoError(t, err)
		require.NotNil(t, profile)
		require.Equal(t, alice.Username, profile.Username)
	})
}

func TestPasswordLogin(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	seedUser(t, st, "alice", "correct horse", false)
	sess := newTestSession(t, sessions)

	t.Run("wrong username", func(t *testing.T) {
		_, err := svc.PasswordLogin(ctx, sess, "nobody", "pw", "")
		require.ErrorIs(t, err, ErrWrongUsername)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.PasswordLogin(ctx, sess, "alice", "battery staple", "")
		require.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("success appends the user to the session", func(t *testing.T) {
		user, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "")
		require.NoError(t, err)

		fresh, err := st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
		require.NoError(t, err)
		require.True(t, fresh.HasUser(user.ID))
		require.Nil(t, fresh.ExtendedAuth)
	})
}

func TestPasswordLoginAmbiguousIdentifier(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	// Two users share a phone number and, unusually, the same password.
	shared := "+15550001111"
	a := domain.User{ID: "amb-1", Username: "amb1", Phone: shared}
	b := domain.User{ID: "amb-2", Username: "amb2", Phone: shared}
	require.NoError(t, st.Users().CreateUser(ctx, a))
	require.NoError(t, st.Users().CreateUser(ctx, b))
	for _, u := range []domain.User{a, b} {
		hash := mustHash(t, "same password")
		seedCredential(t, st, u.ID, domain.MethodPassword, hash, false, false, false)
	}

	sess := newTestSession(t, sessions)
	_, err := svc.PasswordLogin(ctx, sess, shared, "same password", "")
	require.ErrorIs(t, err, ErrMoreThanOneUserMatched)
}

func TestTwoFactorSigninFlow(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	alice := seedUser(t, st, "alice", "correct horse", true)
	seedCredential(t, st, alice.ID, domain.MethodSMS, "+15550002222", false, true, false)
	sess := newTestSession(t, sessions)

	// Password alone must not complete the login.
	_, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "")
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	require.NotNil(t, sess.ExtendedAuth)
	require.Equal(t, alice.ID, sess.ExtendedAuth.UserID)
	require.Equal(t, domain.FlowTwoFactor, sess.ExtendedAuth.Flow)

	// Without a method the service lists what is available.
	res, err := svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor})
	require.NoError(t, err)
	require.Equal(t, []domain.Method{domain.MethodSMS}, res.Methods)

	// Selecting SMS issues a challenge that is not echoed.
	res, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.NoError(t, err)
	require.True(t, res.ChallengeSent)
	require.Empty(t, res.Challenge)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	challenge := sess.ExtendedAuth.Challenge
	require.NotEmpty(t, challenge)

	// A second issue inside the cooldown is rejected.
	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.ErrorIs(t, err, ErrRateLimited)

	// Wrong code fails, correct code completes and clears the sub-state.
	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS, Response: "000000"})
	require.ErrorIs(t, err, ErrSigninFailed)

	res, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS, Response: challenge})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	require.Equal(t, alice.ID, res.User.ID)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	require.True(t, sess.HasUser(alice.ID))
	require.Nil(t, sess.ExtendedAuth)
}

func TestChallengeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	alice := seedUser(t, st, "alice", "correct horse", true)
	seedCredential(t, st, alice.ID, domain.MethodSMS, "+15550002222", false, true, false)
	sess := newTestSession(t, sessions)

	_, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "")
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.NoError(t, err)

	// Snapshot taken before verification, as a racing submission would hold.
	stale, err := st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	code := stale.ExtendedAuth.Challenge

	res, err := svc.ExtendedSignin(ctx, stale, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS, Response: code})
	require.NoError(t, err)
	require.NotNil(t, res.User)

	// Replaying the consumed code with the stale snapshot must not sign in
	// again: the sub-state is re-read inside the transaction, not trusted
	// from the caller.
	_, err = svc.ExtendedSignin(ctx, stale, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS, Response: code})
	require.ErrorIs(t, err, ErrAuthRequestNotMade)
}

func TestChallengeCooldownIgnoresStaleSnapshot(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	alice := seedUser(t, st, "alice", "correct horse", true)
	seedCredential(t, st, alice.ID, domain.MethodSMS, "+15550002222", false, true, false)
	sess := newTestSession(t, sessions)

	_, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "")
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	// Snapshot from before the first issue carries no ChallengeCreatedAt.
	stale, err := st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)

	_, err = svc.ExtendedSignin(ctx, stale, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.NoError(t, err)

	// Re-issuing with the same stale snapshot still hits the cooldown: the
	// check runs against the stored sub-state.
	_, err = svc.ExtendedSignin(ctx, stale, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestTwoFactorWithoutPasswordStep(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	sess := newTestSession(t, sessions)
	_, err := svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.ErrorIs(t, err, ErrAuthRequestNotMade)
}

func TestChallengeMethodMustMatch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	alice := seedUser(t, st, "alice", "correct horse", true)
	seedCredential(t, st, alice.ID, domain.MethodSMS, "+15550002222", false, true, false)
	seedCredential(t, st, alice.ID, domain.MethodEmail, "alice@example.com", false, true, false)
	sess := newTestSession(t, sessions)

	_, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "")
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)

	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.NoError(t, err)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)

	// Answering with a different method than the outstanding challenge.
	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodEmail, Response: "123456"})
	require.ErrorIs(t, err, ErrNotCurrentMethod)
}

func TestChallengeTimeout(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)
	svc.ChallengeTTL = time.Millisecond
	svc.ChallengeCooldown = 0

	alice := seedUser(t, st, "alice", "correct horse", true)
	seedCredential(t, st, alice.ID, domain.MethodSMS, "+15550002222", false, true, false)
	sess := newTestSession(t, sessions)

	_, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "")
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodSMS})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{
		Flow:     domain.FlowTwoFactor,
		Method:   domain.MethodSMS,
		Response: sess.ExtendedAuth.Challenge,
	})
	require.ErrorIs(t, err, ErrAuthTimeout)
}

func TestPasswordlessSignin(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	alice := seedUser(t, st, "alice", "", false)
	seedCredential(t, st, alice.ID, domain.MethodEmail, "alice@example.com", true, false, false)
	sess := newTestSession(t, sessions)

	res, err := svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowPasswordless, Identifier: "alice"})
	require.NoError(t, err)
	require.Equal(t, []domain.Method{domain.MethodEmail}, res.Methods)

	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowPasswordless, Identifier: "alice", Method: domain.MethodEmail})
	require.NoError(t, err)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)

	res, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{
		Flow:       domain.FlowPasswordless,
		Identifier: "alice",
		Method:     domain.MethodEmail,
		Response:   sess.ExtendedAuth.Challenge,
	})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	require.Equal(t, alice.ID, res.User.ID)
}

func TestPasswordIsNotAnExtendedMethod(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sessions := newTestSessions(st)
	svc := newSigninService(st, sessions)

	alice := seedUser(t, st, "alice", "correct horse", true)
	seedCredential(t, st, alice.ID, domain.MethodSMS, "+15550002222", false, true, false)
	sess := newTestSession(t, sessions)

	_, err := svc.PasswordLogin(ctx, sess, "alice", "correct horse", "")
	require.ErrorIs(t, err, ErrTwoFactorRequired)

	sess, err = st.Sessions().GetSessionByTokenHash(ctx, sess.TokenHash)
	require.NoError(t, err)
	_, err = svc.ExtendedSignin(ctx, sess, ExtendedRequest{Flow: domain.FlowTwoFactor, Method: domain.MethodPassword})
	require.ErrorIs(t, err, ErrUnsupportedMethod)
}
