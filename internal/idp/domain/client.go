package domain

import "time"

// Client is a registered OAuth2 client application. An empty SecretHashes set
// marks a public (implicit) client.
type Client struct {
	ID           string
	Name         string
	SecretHashes []string
	RedirectURIs []string
	ACLID        string
	OwnerIDs     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Public reports whether the client authenticates without a secret.
func (c Client) Public() bool { return len(c.SecretHashes) == 0 }
