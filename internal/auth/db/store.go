// Package db implements auth.Store on an SQLite database.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chirpnet/chirp/internal/auth"
	"github.com/chirpnet/chirp/internal/email"
	"github.com/chirpnet/chirp/internal/errorz"
)

// Store is responsible for interacting with the database.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, name, email, password_digest, remember_digest, activation_digest, activated, activated_at, reset_digest, reset_sent_at, admin, created_at, updated_at`

// CreateUser inserts a new user row.
// It returns errorz.ErrConstraintViolated if the email is already taken.
func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(),
		u.Name,
		string(u.Email),
		u.PasswordDigest.String(),
		nullDigest(u.RememberDigest),
		u.ActivationDigest.String(),
		u.Activated,
		u.ActivatedAt,
		nullDigest(u.ResetDigest),
		u.ResetSentAt,
		u.IsAdmin,
		u.CreatedAt,
		u.UpdatedAt,
	)
	return errorz.MapDBErr(err)
}

// UpdateUser updates the full user row.
// It returns errorz.ErrNotFound if no user is found.
func (s *Store) UpdateUser(ctx context.Context, u *auth.User) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET
		name = ?,
		email = ?,
		password_digest = ?,
		remember_digest = ?,
		activation_digest = ?,
		activated = ?,
		activated_at = ?,
		reset_digest = ?,
		reset_sent_at = ?,
		admin = ?,
		created_at = ?,
		updated_at = ?
	WHERE id = ?`,
		u.Name,
		string(u.Email),
		u.PasswordDigest.String(),
		nullDigest(u.RememberDigest),
		u.ActivationDigest.String(),
		u.Activated,
		u.ActivatedAt,
		nullDigest(u.ResetDigest),
		u.ResetSentAt,
		u.IsAdmin,
		u.CreatedAt,
		u.UpdatedAt,
		u.ID.String(),
	)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return checkFound(result, "user")
}

// DeleteUser deletes a user. Rows owned by the user are cascade-deleted
// by the schema's foreign keys.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return checkFound(result, "user")
}

// FindUserByID returns the user with the given id or errorz.ErrNotFound.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

// FindUserByEmail returns the user with the given email address or
// errorz.ErrNotFound. Addresses are stored lowercased, so the caller is
// expected to provide a parsed (and therefore lowercased) address.
func (s *Store) FindUserByEmail(ctx context.Context, addr email.Address) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, string(addr))
	return scanUser(row)
}

func (s *Store) SetRememberDigest(ctx context.Context, id uuid.UUID, d auth.Digest) error {
	return s.patch(ctx, id, `remember_digest = ?`, nullDigest(d))
}

func (s *Store) MarkActivated(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.patch(ctx, id, `activated = 1, activated_at = ?`, at)
}

func (s *Store) SetResetDigest(ctx context.Context, id uuid.UUID, d auth.Digest, sentAt time.Time) error {
	return s.patch(ctx, id, `reset_digest = ?, reset_sent_at = ?`, d.String(), sentAt)
}

func (s *Store) ReplacePassword(ctx context.Context, id uuid.UUID, d auth.Digest) error {
	return s.patch(ctx, id, `password_digest = ?, reset_digest = NULL, reset_sent_at = NULL`, d.String())
}

// patch runs one of the narrow credential updates. Each is a single
// atomic row update; updated_at is bumped as a side effect.
func (s *Store) patch(ctx context.Context, id uuid.UUID, set string, params ...any) error {
	params = append(params, time.Now(), id.String())

	result, err := s.db.ExecContext(ctx, `UPDATE users SET `+set+`, updated_at = ? WHERE id = ?`, params...)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return checkFound(result, "user")
}

func checkFound(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("%s not found: %w", entity, errorz.ErrNotFound)
	}

	return nil
}

func nullDigest(d auth.Digest) any {
	if d == "" {
		return nil
	}
	return d.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (auth.User, error) {
	var (
		u           auth.User
		id          string
		addr        string
		remember    sql.NullString
		reset       sql.NullString
		activatedAt sql.NullTime
		resetSentAt sql.NullTime
	)

	err := row.Scan(
		&id,
		&u.Name,
		&addr,
		(*string)(&u.PasswordDigest),
		&remember,
		(*string)(&u.ActivationDigest),
		&u.Activated,
		&activatedAt,
		&reset,
		&resetSentAt,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return auth.User{}, errorz.MapDBErr(err)
	}

	u.ID, err = uuid.Parse(id)
	if err != nil {
		return auth.User{}, err
	}

	u.Email = email.Address(addr)

	if remember.Valid {
		u.RememberDigest = auth.Digest(remember.String)
	}
	if reset.Valid {
		u.ResetDigest = auth.Digest(reset.String)
	}
	if activatedAt.Valid {
		t := activatedAt.Time
		u.ActivatedAt = &t
	}
	if resetSentAt.Valid {
		t := resetSentAt.Time
		u.ResetSentAt = &t
	}

	return u, nil
}
