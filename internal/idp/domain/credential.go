package domain

import "time"

// Method identifies an authentication method. The set is closed: adding a
// method means adding a case to the challenge engine's dispatch points.
type Method string

const (
	MethodPassword     Method = "password"
	MethodSMS          Method = "sms"
	MethodEmail        Method = "email"
	MethodOTP          Method = "otp"
	MethodPGPSignature Method = "pgp_signature"
)

// ParseMethod validates a client-supplied method name.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodPassword, MethodSMS, MethodEmail, MethodOTP, MethodPGPSignature:
		return Method(s), true
	default:
		return "", false
	}
}

// Credential is one authentication method registered to a user. The three
// capability flags are independent; none is ever inferred from another.
type Credential struct {
	ID     string
	UserID string
	Method Method

	// Secret holds the method-specific material: argon2 hash for password,
	// base32 TOTP secret for otp, armored public key for pgp_signature,
	// destination address for sms/email.
	Secret string

	AllowSingleFactor  bool // usable for passwordless login
	AllowTwoFactor     bool // usable as a second factor
	AllowPasswordReset bool // usable to recover a lost password

	CreatedAt time.Time
	UpdatedAt time.Time
}
