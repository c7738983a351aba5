package model

import "time"

// Profile is the identity payload returned by an external OAuth provider
// after the user consents. Any field other than ProviderID may be empty,
// depending on the scopes the user granted.
type Profile struct {
	ProviderID string // stable subject identifier ("sub" claim for Google)
	Email      string
	FirstName  string
	LastName   string
	Picture    string
}

// Session is a server-side login session. The browser only ever holds the
// signed session ID; the user ID lives here.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}
