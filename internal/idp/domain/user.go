package domain

import "time"

type User struct {
	ID                  string
	Username            string
	Name                string
	Email               string
	Phone               string
	ProfileURL          string
	Groups              []string
	UseTwoFactor        bool
	LastAuthenticatedAt *time.Time
	LastSignedInAt      *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Profile is the limited view returned by the username probe once the caller
// has previously authenticated as the user in the same session.
type Profile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url,omitempty"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:         u.ID,
		Username:   u.Username,
		Name:       u.Name,
		ProfileURL: u.ProfileURL,
	}
}
