package domain

import "time"

// TokenType discriminates the stored token kinds. TTLs are a pure function of
// the type, configured at startup; expiry is computed at validation time.
type TokenType string

const (
	TokenAuthorizationCode TokenType = "AUTHORIZATION_CODE"
	TokenAccess            TokenType = "ACCESS_TOKEN"
	TokenRefresh           TokenType = "REFRESH_TOKEN"
	TokenID                TokenType = "ID_TOKEN"
	TokenDeviceCode        TokenType = "DEVICE_CODE"
)

// ParseTokenType validates a wire token type name.
func ParseTokenType(s string) (TokenType, bool) {
	switch TokenType(s) {
	case TokenAuthorizationCode, TokenAccess, TokenRefresh, TokenID, TokenDeviceCode:
		return TokenType(s), true
	default:
		return "", false
	}
}

// DeviceMetadata carries the device-flow state attached to a DEVICE_CODE
// token. IsAuthorized is flipped exactly once by the device coordinator;
// polling clients only ever read it.
type DeviceMetadata struct {
	UserCode     string `json:"user_code"`
	Interval     int    `json:"interval,omitempty"` // polling interval, seconds
	IsAuthorized bool   `json:"is_authorized"`
}

// TokenMetadata is the type-specific payload stored alongside a token.
type TokenMetadata struct {
	CodeChallenge       string          `json:"code_challenge,omitempty"`
	CodeChallengeMethod string          `json:"code_challenge_method,omitempty"`
	Nonce               string          `json:"nonce,omitempty"`
	Offline             bool            `json:"offline,omitempty"`
	Device              *DeviceMetadata `json:"device,omitempty"`
}

// Token is an opaque bearer token record. Only the SHA-256 fingerprint of the
// opaque value is stored.
type Token struct {
	ID              string
	TokenHash       string
	Type            TokenType
	AuthorizationID string
	Metadata        TokenMetadata
	IssuedAt        time.Time
}
