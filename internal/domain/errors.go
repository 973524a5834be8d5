package domain

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrStreamNotFound   = errors.New("stream not found")
	ErrDonationNotFound = errors.New("donation not found")
	ErrUsernameTaken    = errors.New("username is already taken")
	ErrEmailTaken       = errors.New("email is already registered")
	ErrNotStreamOwner   = errors.New("user does not own stream")
	ErrNotStreamer      = errors.New("user is not a streamer")

	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrTokenRevoked       = errors.New("token revoked")
)

// InvalidInputError rejects a single request field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return e.Field + ": " + e.Reason
}

func InvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
