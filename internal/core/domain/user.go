package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// UserID is the identity a connection is bound to. The relay never
// interprets it beyond equality.
type UserID string

func (id UserID) String() string {
	return string(id)
}

// SessionID is assigned by the connection registry on every registration and
// grows monotonically, so a later session always compares greater.
type SessionID uint64

func (s SessionID) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

type User struct {
	ID           UserID    `json:"id"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfilePic   string    `json:"profilePic"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func NewUserID() UserID {
	return UserID(uuid.New().String())
}
