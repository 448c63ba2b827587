package models

import (
	"fmt"
	"time"
)

// Profile is the set of name fields a chat platform reports for a user.
type Profile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// User is a profile record, refreshed every time the user is seen.
type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile returns the user's name fields.
func (u *User) Profile() Profile {
	return Profile{FirstName: u.FirstName, LastName: u.LastName, Username: u.Username}
}

// Description formats the user as "First Last (@username)".
func (u *User) Description() string {
	out := u.FirstName
	if u.LastName != "" {
		out += " " + u.LastName
	}
	if u.Username != "" {
		out += fmt.Sprintf(" (@%s)", u.Username)
	}
	return out
}
