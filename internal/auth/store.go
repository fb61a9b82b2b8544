package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/chirpnet/chirp/internal/email"
)

// Store provides access to persisted users.
//
// There are two distinct write paths. CreateUser/UpdateUser are the full
// validated save path. The credential methods below them are narrow
// trusted updates: they bypass user validation, touch only digest, flag
// and timestamp columns and each one is a single atomic row update.
// Keep new writes on the right side of that split.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	FindUserByID(ctx context.Context, id uuid.UUID) (User, error)
	FindUserByEmail(ctx context.Context, addr email.Address) (User, error)

	// SetRememberDigest stores the digest of a remember token. An empty
	// digest clears the column.
	SetRememberDigest(ctx context.Context, id uuid.UUID, d Digest) error

	// MarkActivated flips the activated flag and records the timestamp.
	MarkActivated(ctx context.Context, id uuid.UUID, at time.Time) error

	// SetResetDigest stores the digest of a password reset token and
	// when it was sent, overwriting any previous reset request.
	SetResetDigest(ctx context.Context, id uuid.UUID, d Digest, sentAt time.Time) error

	// ReplacePassword swaps the password digest and clears the reset
	// digest and timestamp in the same statement, so a consumed reset
	// token can't be replayed.
	ReplacePassword(ctx context.Context, id uuid.UUID, d Digest) error
}
