package users

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("user not found")
	QueryTimeoutDuration = time.Second * 5
)

// Profile mirrors an identity of the hosted auth service plus the admin
// flag, which is only ever set out of band.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminStatus is the answer to "is this email an administrator".
type AdminStatus struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}
