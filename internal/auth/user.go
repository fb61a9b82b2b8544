package auth

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/chirpnet/chirp/internal/email"
	"github.com/chirpnet/chirp/internal/errorz"
)

const (
	maxNameLen  = 50
	maxEmailLen = 255
)

var (
	ErrNameRequired = errors.New("name is required")
	ErrNameTooLong  = errors.New("name is too long")
	ErrEmailTooLong = errors.New("email is too long")
)

// User contains the credential state for a single account.
//
// The digest fields hold hashes of secrets that only ever existed
// transiently: the password digest of the current password, the
// remember digest of the cookie token while a persistent session is
// active, the activation digest of the token mailed at registration and
// the reset digest of the most recent password reset token.
type User struct {
	ID             uuid.UUID
	Name           string
	Email          email.Address
	PasswordDigest Digest

	// RememberDigest is empty unless a "remember me" session is active.
	RememberDigest Digest

	ActivationDigest Digest
	Activated        bool
	ActivatedAt      *time.Time

	// ResetDigest is only usable while ResetSentAt is within the reset
	// token expiry window.
	ResetDigest Digest
	ResetSentAt *time.Time

	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the constraints of the full validated save path. The
// email format itself is checked when the address is parsed; length
// limits are enforced here.
func (u *User) Validate() error {
	var errs errorz.InvalidInput

	if u.Name == "" {
		errs = append(errs, errorz.Keyed{Key: "name", Err: ErrNameRequired})
	}
	if len(u.Name) > maxNameLen {
		errs = append(errs, errorz.Keyed{Key: "name", Err: ErrNameTooLong})
	}
	if u.Email == "" {
		errs = append(errs, errorz.Keyed{Key: "email", Err: email.ErrInvalidEmail})
	}
	if len(u.Email) > maxEmailLen {
		errs = append(errs, errorz.Keyed{Key: "email", Err: ErrEmailTooLong})
	}
	if u.PasswordDigest == "" {
		errs = append(errs, errorz.Keyed{Key: "password", Err: ErrInvalidPassword})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
