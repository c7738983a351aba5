// Package model defines the data structures used throughout the application.
package model

import (
	"encoding/json"
	"time"
)

// User represents a guest on the event's RSVP list.
//
// A user is created either by direct registration (POST /users) or by the
// identity reconciler on a first Google login. The ID is assigned by the
// store: an xid string on SQLite, an ObjectID hex string on MongoDB.
//
// WHY GoogleID *string?
// The googleId index is sparse: users who never logged in with Google must
// not collide with each other on uniqueness. A nil pointer maps to a missing
// field in MongoDB and to NULL in SQLite, both of which are excluded from the
// unique constraint. An empty string would not be.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"` // always stored lower-cased
	Phone     string    `json:"phone,omitempty"`
	GoogleID  *string   `json:"googleId,omitempty"` // nil when never linked
	Picture   string    `json:"picture,omitempty"`  // profile picture URL
	HasRSVPd  bool      `json:"hasRSVPd"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FullName returns "first last", the display name used in tokens and redirects.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// MarshalJSON adds the computed fullName field to the serialized user.
//
// The alias type drops User's methods, so json.Marshal on it does not recurse
// back into this function.
func (u User) MarshalJSON() ([]byte, error) {
	type alias User
	return json.Marshal(struct {
		alias
		FullName string `json:"fullName"`
	}{
		alias:    alias(u),
		FullName: u.FullName(),
	})
}

// Display returns the minimal projection of the user that is embedded in
// bearer tokens and in the OAuth redirect to the front end.
func (u *User) Display() Display {
	return Display{
		ID:      u.ID,
		Email:   u.Email,
		Name:    u.FullName(),
		Picture: u.Picture,
	}
}

// Display is the public identity of a user: enough to render a header with a
// name and avatar, nothing more.
type Display struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
}

// UserPatch is a partial update. A nil field means "leave unchanged".
//
// Pointers are the usual Go answer to "was this field present in the JSON?":
// a plain bool cannot tell `{"hasRSVPd": false}` apart from `{}`.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Picture   *string
	GoogleID  *string
	HasRSVPd  *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p UserPatch) IsEmpty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Phone == nil && p.Picture == nil && p.GoogleID == nil && p.HasRSVPd == nil
}

// Apply copies every non-nil field of the patch onto u.
func (p UserPatch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Picture != nil {
		u.Picture = *p.Picture
	}
	if p.GoogleID != nil {
		id := *p.GoogleID
		u.GoogleID = &id
	}
	if p.HasRSVPd != nil {
		u.HasRSVPd = *p.HasRSVPd
	}
}
