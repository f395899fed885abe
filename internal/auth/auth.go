package auth

import "errors"

var ErrInvalidSubject = errors.New("token subject is not a user id")

// Authenticator verifies bearer tokens minted by the hosted auth service.
type Authenticator interface {
	ValidateAccessToken(token string) (*Claims, error)
}
