package service

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/polarisid/polaris/internal/idp/domain"
)

func TestGenerateChallenge(t *testing.T) {
	t.Parallel()

	t.Run("delivery methods get numeric codes", func(t *testing.T) {
		for _, m := range []domain.Method{domain.MethodSMS, domain.MethodEmail, domain.MethodOTP} {
			c, err := generateChallenge(m)
			require.NoError(t, err)
			require.Len(t, c, challengeDigits)
			require.Regexp(t, `^[0-9]+$`, c)
		}
	})

	t.Run("signature methods get an opaque nonce", func(t *testing.T) {
		c, err := generateChallenge(domain.MethodPGPSignature)
		require.NoError(t, err)
		require.Greater(t, len(c), challengeDigits)
	})
}

func TestIsRateLimited(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cooldown := time.Minute

	require.False(t, isRateLimited(nil, cooldown, now))

	recent := now.Add(-30 * time.Second)
	require.True(t, isRateLimited(&recent, cooldown, now))

	old := now.Add(-2 * time.Minute)
	require.False(t, isRateLimited(&old, cooldown, now))
}

func TestShouldEchoChallenge(t *testing.T) {
	t.Parallel()

	require.True(t, shouldEchoChallenge(domain.MethodPGPSignature))
	require.False(t, shouldEchoChallenge(domain.MethodSMS))
	require.False(t, shouldEchoChallenge(domain.MethodEmail))
	require.False(t, shouldEchoChallenge(domain.MethodOTP))
}

func TestVerifyChallenge(t *testing.T) {
	t.Parallel()

	t.Run("sms compares against the issued code", func(t *testing.T) {
		cred := domain.Credential{Method: domain.MethodSMS}
		require.True(t, verifyChallenge(domain.MethodSMS, "123456", "123456", cred))
		require.False(t, verifyChallenge(domain.MethodSMS, "123456", "654321", cred))
		require.False(t, verifyChallenge(domain.MethodSMS, "", "", cred))
	})

	t.Run("otp validates against the shared secret", func(t *testing.T) {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: "polaris", AccountName: "alice"})
		require.NoError(t, err)

		code, err := totp.GenerateCode(key.Secret(), time.Now())
		require.NoError(t, err)

		cred := domain.Credential{Method: domain.MethodOTP, Secret: key.Secret()}
		require.True(t, verifyChallenge(domain.MethodOTP, "", code, cred))
		require.False(t, verifyChallenge(domain.MethodOTP, "", "000000", cred))
	})

	t.Run("pgp rejects garbage keys and signatures", func(t *testing.T) {
		cred := domain.Credential{Method: domain.MethodPGPSignature, Secret: "not a key"}
		require.False(t, verifyChallenge(domain.MethodPGPSignature, "nonce", "sig", cred))
	})

	t.Run("unknown method never verifies", func(t *testing.T) {
		require.False(t, verifyChallenge(domain.Method("carrier_pigeon"), "a", "a", domain.Credential{}))
	})
}
