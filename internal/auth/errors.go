package auth

import "errors"

// Authentication failures. The web layer renders all of these as the
// same "not authorized, try again" outcome so an attacker can't learn
// which half of a credential pair was wrong or which token failed.
var (
	ErrInvalidCredentials = errors.New("invalid email/password combination")
	ErrExpiredToken       = errors.New("token has expired")
	ErrSessionInvalid     = errors.New("session is not valid")
)

var (
	ErrEmailTaken           = errors.New("email is already taken")
	ErrConfirmationMismatch = errors.New("password confirmation does not match")
)
