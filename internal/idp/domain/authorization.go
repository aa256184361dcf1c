package domain

import "time"

// Authorization records that a user granted a client a set of permissions.
// Records are append-only: every grant event creates a new row, and the
// enforced authorized set is the union across all of a user's authorizations
// for the client. UserID is empty for pending device-flow authorizations
// until a user approves them.
type Authorization struct {
	ID          string
	UserID      string
	ClientID    string
	Permissions []string
	CreatedAt   time.Time
}
