// Package domain contains entity without logic, just meta-data
package domain

import (
	"strconv"

	"github.com/google/uuid"
)

type UserID string

// Status is the presence state of a participant inside a room.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
)

// User is the identity a participant presents to the rest of a room.
// For authenticated rooms it comes from the verified init data; for
// private rooms it is generated server-side.
type User struct {
	ID        UserID `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// NewAnonymousUser builds a user for private invite-link rooms, where
// the client has no identity of its own.
func NewAnonymousUser(displayName string) *User {
	return &User{
		ID:        UserID(uuid.NewString()),
		FirstName: displayName,
	}
}

// UserIDFromInt converts a numeric platform identity into a UserID.
func UserIDFromInt(id int64) UserID {
	return UserID(strconv.FormatInt(id, 10))
}
