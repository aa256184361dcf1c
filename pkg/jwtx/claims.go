package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIDTokenTTL is the default lifetime for OpenID Connect ID tokens.
const DefaultIDTokenTTL = time.Hour

// IDTokenClaims are the OpenID Connect claims embedded in signed ID tokens.
// Profile fields are only populated when the corresponding scope was granted.
type IDTokenClaims struct {
	jwt.RegisteredClaims

	// Nonce echoes the client-provided value to bind the token to the
	// authorization request.
	Nonce string `json:"nonce,omitempty"`

	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Picture           string `json:"picture,omitempty"`
	Email             string `json:"email,omitempty"`
	EmailVerified     *bool  `json:"email_verified,omitempty"`
	PhoneNumber       string `json:"phone_number,omitempty"`
}

// NewIDTokenClaims builds the registered claim set for an ID token: issuer,
// subject (user id), audience (client id), and the standard timestamps.
func NewIDTokenClaims(issuer, subject, clientID, nonce string, ttl time.Duration, now time.Time) IDTokenClaims {
	return IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Nonce: nonce,
	}
}
