package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polarisid/polaris/internal/idp/domain"
)

func TestTwoFactorEnableRequiresCapableCredential(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &TwoFactorService{Store: st}

	user := seedUser(t, st, "alice", "correct horse", false)

	// Only a password credential: nothing can act as a second factor.
	require.ErrorIs(t, svc.Enable(ctx, user.ID), ErrUnsupportedMethod)

	seedCredential(t, st, user.ID, domain.MethodSMS, "+15550002222", false, true, false)
	require.NoError(t, svc.Enable(ctx, user.ID))

	fresh, err := st.Users().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, fresh.UseTwoFactor)
}

func TestTwoFactorLockoutOnDelete(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &TwoFactorService{Store: st}

	user := seedUser(t, st, "alice", "correct horse", false)
	sms := seedCredential(t, st, user.ID, domain.MethodSMS, "+15550002222", false, true, false)
	require.NoError(t, svc.Enable(ctx, user.ID))

	// Deleting the last 2FA-capable credential is refused, state unchanged.
	require.ErrorIs(t, svc.RemoveCredential(ctx, sms.ID), ErrUnsupportedMethod)
	_, err := st.Credentials().GetCredentialByID(ctx, sms.ID)
	require.NoError(t, err)

	// With a second 2FA method the first may go.
	seedCredential(t, st, user.ID, domain.MethodEmail, "alice@example.com", false, true, false)
	require.NoError(t, svc.RemoveCredential(ctx, sms.ID))
}

func TestTwoFactorLockoutOnFlagUpdate(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &TwoFactorService{Store: st}

	user := seedUser(t, st, "alice", "correct horse", false)
	sms := seedCredential(t, st, user.ID, domain.MethodSMS, "+15550002222", true, true, false)
	require.NoError(t, svc.Enable(ctx, user.ID))

	// Clearing the two-factor flag on the last capable credential is refused.
	require.ErrorIs(t, svc.UpdateCredentialFlags(ctx, sms.ID, true, false, false), ErrUnsupportedMethod)

	fresh, err := st.Credentials().GetCredentialByID(ctx, sms.ID)
	require.NoError(t, err)
	require.True(t, fresh.AllowTwoFactor)

	// Updates that keep the capability pass.
	require.NoError(t, svc.UpdateCredentialFlags(ctx, sms.ID, false, true, true))

	// After disabling the requirement, the flag may be cleared freely.
	require.NoError(t, svc.Disable(ctx, user.ID))
	require.NoError(t, svc.UpdateCredentialFlags(ctx, sms.ID, true, false, false))
}

func TestTwoFactorUnknownCredential(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := &TwoFactorService{Store: st}

	require.ErrorIs(t, svc.RemoveCredential(ctx, "missing"), ErrInvalidRequest)
	require.ErrorIs(t, svc.UpdateCredentialFlags(ctx, "missing", true, true, true), ErrInvalidRequest)
}
