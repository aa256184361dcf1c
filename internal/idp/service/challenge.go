package service

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/openpgp"

	"github.com/polarisid/polaris/internal/idp/domain"
	"github.com/polarisid/polaris/pkg/cryptox"
)

// challengeDigits is the length of numeric delivery codes.
const challengeDigits = 6

// generateChallenge produces the method-appropriate secret. Delivery methods
// and TOTP get a numeric code; signature methods get an opaque nonce the
// client signs.
func generateChallenge(method domain.Method) (string, error) {
	switch method {
	case domain.MethodPGPSignature:
		return cryptox.GenerateToken(cryptox.TokenSize256)
	default:
		return cryptox.GenerateNumericCode(challengeDigits)
	}
}

// isRateLimited reports whether a previous challenge was issued inside the
// cooldown window. Checked before generating, so a rejected request never
// replaces the outstanding challenge.
func isRateLimited(lastIssuedAt *time.Time, cooldown time.Duration, now time.Time) bool {
	if lastIssuedAt == nil {
		return false
	}
	return now.Sub(*lastIssuedAt) < cooldown
}

// shouldEchoChallenge reports whether the challenge goes back to the caller.
// Only client-verified methods ever see it; delivery methods keep the value
// server-side and reach the user out of band.
func shouldEchoChallenge(method domain.Method) bool {
	return method == domain.MethodPGPSignature
}

// verifyChallenge checks a response against the issued challenge for one
// credential. It only ever returns a boolean so callers cannot leak which
// verification arm rejected.
func verifyChallenge(method domain.Method, challenge, response string, cred domain.Credential) bool {
	switch method {
	case domain.MethodSMS, domain.MethodEmail:
		if challenge == "" || response == "" {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(response)) == 1

	case domain.MethodOTP:
		return totp.Validate(response, cred.Secret)

	case domain.MethodPGPSignature:
		keyring, err := openpgp.ReadArmoredKeyRing(strings.NewReader(cred.Secret))
		if err != nil {
			return false
		}
		_, err = openpgp.CheckArmoredDetachedSignature(
			keyring,
			strings.NewReader(challenge),
			strings.NewReader(response),
		)
		return err == nil

	default:
		return false
	}
}
