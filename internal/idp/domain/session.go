package domain

import (
	"slices"
	"time"
)

// SigninFlow distinguishes the two extended-authentication flows.
type SigninFlow string

const (
	FlowTwoFactor    SigninFlow = "two_factor"
	FlowPasswordless SigninFlow = "passwordless"
)

// ExtendedAuth is the transient sub-state attached to a session while a
// two-factor or passwordless sign-in is in flight. A challenge response is
// only ever accepted when Method matches the method the client submits.
type ExtendedAuth struct {
	// UserID is the target user. Unset for passwordless flows where the
	// user is still being discovered.
	UserID             string     `json:"user_id,omitempty"`
	Flow               SigninFlow `json:"flow"`
	Method             Method     `json:"method,omitempty"`
	Challenge          string     `json:"challenge,omitempty"`
	ChallengeCreatedAt *time.Time `json:"challenge_created_at,omitempty"`
}

// Session is the mutable record bound to an opaque client-held token. It may
// carry several concurrently signed-in users.
type Session struct {
	ID           string
	TokenHash    string
	UserIDs      []string
	ExtendedAuth *ExtendedAuth
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasUser reports whether the user has signed in on this session.
func (s *Session) HasUser(userID string) bool {
	return slices.Contains(s.UserIDs, userID)
}

// Login appends the user to the session's signed-in set.
func (s *Session) Login(userID string) {
	if !s.HasUser(userID) {
		s.UserIDs = append(s.UserIDs, userID)
	}
}
