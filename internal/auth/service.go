package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chirpnet/chirp/internal/email"
	"github.com/chirpnet/chirp/internal/errorz"
)

// Emailer is used to send templated emails.
type Emailer interface {
	Send(ctx context.Context, template string, to email.Address, data any) error
}

// ErrFunc is a function that handles errors reported by worker goroutines.
type ErrFunc func(error)

// MailData is the data passed to the activation and password reset
// email templates. The token is the plaintext secret; it is handed to
// the emailer exactly once and never persisted.
type MailData struct {
	BaseURL string
	User    User
	Token   Token
}

// ServiceConfig is the configuration for the Service.
type ServiceConfig struct {
	// WorkerTimeout is the max duration worker goroutines are allowed
	// to take before they are cancelled.
	WorkerTimeout time.Duration
	// ResetTokenExpiry is the duration a password reset token is valid.
	ResetTokenExpiry time.Duration
	// BaseURL is the public URL of the app, used to build the links in
	// emails.
	BaseURL string
}

const (
	defaultWorkerTimeout    = 10 * time.Second
	defaultResetTokenExpiry = 2 * time.Hour
)

// Service provides the main rules for authentication: registration with
// email activation, login, persistent "remember me" sessions and
// password resets.
type Service struct {
	store      Store
	emailer    Emailer
	wg         *sync.WaitGroup
	errHandler ErrFunc
	cfg        ServiceConfig

	// comparisonDigest is used to compare passwords when no user was found.
	comparisonDigest Digest

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(s Store, emailer Emailer, errHandler ErrFunc, cfg ServiceConfig) (*Service, error) {
	if cfg.WorkerTimeout == 0 {
		cfg.WorkerTimeout = defaultWorkerTimeout
	}
	if cfg.ResetTokenExpiry == 0 {
		cfg.ResetTokenExpiry = defaultResetTokenExpiry
	}

	tok, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	d, err := tok.Hash()
	if err != nil {
		return nil, err
	}

	return &Service{
		store:            s,
		emailer:          emailer,
		wg:               &sync.WaitGroup{},
		errHandler:       errHandler,
		cfg:              cfg,
		comparisonDigest: d,
		NowFunc:          time.Now,
	}, nil
}

// Wait waits for all open workers to finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

// RegisterUser creates a new, not yet activated user. The activation
// token is minted before the row is created, so no user ever persists
// without an activation digest. The plaintext token is mailed to the
// user in a worker goroutine.
//
// Validation failures, including a taken email address, prevent
// creation entirely.
func (s *Service) RegisterUser(ctx context.Context, name string, addr email.Address, pwd Password) (User, error) {
	pwdDigest, err := pwd.Hash()
	if err != nil {
		return User{}, err
	}

	token, err := GenerateToken()
	if err != nil {
		return User{}, err
	}

	actDigest, err := token.Hash()
	if err != nil {
		return User{}, err
	}

	now := s.NowFunc()
	user := User{
		ID:               uuid.New(),
		Name:             name,
		Email:            addr,
		PasswordDigest:   pwdDigest,
		ActivationDigest: actDigest,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := user.Validate(); err != nil {
		return User{}, err
	}

	if err := s.store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, errorz.ErrConstraintViolated) {
			return User{}, errorz.InvalidInput{
				errorz.Keyed{Key: "email", Err: ErrEmailTaken},
			}
		}
		return User{}, err
	}

	s.mailAsync("user-activation", user, token)

	return user, nil
}

// Activate flips a user to activated if the presented token matches the
// activation digest. Activating an already activated user is an
// idempotent success: the activation timestamp is not advanced.
func (s *Service) Activate(ctx context.Context, userID uuid.UUID, token Token) error {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Activated {
		return nil
	}

	if !token.Match(user.ActivationDigest) {
		return ErrInvalidToken
	}

	return s.store.MarkActivated(ctx, user.ID, s.NowFunc())
}

// Login checks the provided credentials and returns the matching user.
//
// Unactivated users can log in too. The activation gate is a display
// decision that belongs to the caller, not an authentication rule; this
// mirrors how the account activation flow is presented to users.
func (s *Service) Login(ctx context.Context, addr email.Address, pwd Password) (User, error) {
	user, err := s.store.FindUserByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			// Compare against a throwaway digest so an unknown email
			// takes as long as a wrong password. Prevents user
			// enumeration through timing.
			_ = pwd.Match(s.comparisonDigest)
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if !pwd.Match(user.PasswordDigest) {
		return User{}, ErrInvalidCredentials
	}

	return user, nil
}

// Remember mints a fresh remember token, persists its digest and
// returns the plaintext token once, for the caller to put in a cookie.
//
// Only one remember digest is stored per user, so a second "remember
// me" login from another device overwrites the first device's digest
// and invalidates its cookie. Last writer wins; accepted tradeoff.
func (s *Service) Remember(ctx context.Context, userID uuid.UUID) (Token, error) {
	token, err := GenerateToken()
	if err != nil {
		return Token{}, err
	}

	d, err := token.Hash()
	if err != nil {
		return Token{}, err
	}

	if err := s.store.SetRememberDigest(ctx, userID, d); err != nil {
		return Token{}, err
	}

	return token, nil
}

// Forget clears the remember digest, ending the persistent session.
// Forgetting a user that has no persistent session, or that no longer
// exists, is a no-op.
func (s *Service) Forget(ctx context.Context, userID uuid.UUID) error {
	err := s.store.SetRememberDigest(ctx, userID, "")
	if errors.Is(err, errorz.ErrNotFound) {
		return nil
	}
	return err
}

// ResumeSession re-establishes the identity of a user from a remember
// cookie. It succeeds only if the user exists, has an active persistent
// session and the presented token matches the stored digest. The
// remember token is not rotated on resumption.
func (s *Service) ResumeSession(ctx context.Context, userID uuid.UUID, token Token) (User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errorz.ErrNotFound) {
			return User{}, ErrSessionInvalid
		}
		return User{}, err
	}

	if user.RememberDigest == "" || !token.Match(user.RememberDigest) {
		return User{}, ErrSessionInvalid
	}

	return user, nil
}

// RequestPasswordReset mints a reset token for the user with the given
// email address, stores its digest and send time, and mails the
// plaintext token in a worker goroutine. A repeated request overwrites
// the previous digest, so only the latest outstanding token is valid.
func (s *Service) RequestPasswordReset(ctx context.Context, addr email.Address) error {
	user, err := s.store.FindUserByEmail(ctx, addr)
	if err != nil {
		return err
	}

	token, err := GenerateToken()
	if err != nil {
		return err
	}

	d, err := token.Hash()
	if err != nil {
		return err
	}

	if err := s.store.SetResetDigest(ctx, user.ID, d, s.NowFunc()); err != nil {
		return err
	}

	s.mailAsync("password-reset", user, token)

	return nil
}

// CompletePasswordReset sets a new password if the presented reset
// token is valid. Expiry is checked before the token itself, so an
// expired-but-correct token reports expiry. On success the password
// digest is replaced and the reset digest cleared in one atomic update.
func (s *Service) CompletePasswordReset(ctx context.Context, userID uuid.UUID, token Token, newPwd, confirmation Password) error {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}

	now := s.NowFunc()
	if user.ResetSentAt == nil || now.Sub(*user.ResetSentAt) >= s.cfg.ResetTokenExpiry {
		return ErrExpiredToken
	}

	if !token.Match(user.ResetDigest) {
		return ErrInvalidToken
	}

	if !newPwd.Equal(confirmation) {
		return errorz.InvalidInput{
			errorz.Keyed{Key: "password_confirmation", Err: ErrConfirmationMismatch},
		}
	}

	d, err := newPwd.Hash()
	if err != nil {
		return err
	}

	return s.store.ReplacePassword(ctx, user.ID, d)
}

// User returns the user with the given id.
func (s *Service) User(ctx context.Context, userID uuid.UUID) (User, error) {
	return s.store.FindUserByID(ctx, userID)
}

// DeleteUser removes a user. Owned content is cascade-deleted by the
// store.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return s.store.DeleteUser(ctx, userID)
}

func (s *Service) mailAsync(template string, user User, token Token) {
	// Sending mail must not slow down the response and its latency is
	// not this package's concern. Failures go to the error handler.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WorkerTimeout)
		defer cancel()

		data := MailData{BaseURL: s.cfg.BaseURL, User: user, Token: token}
		if err := s.emailer.Send(ctx, template, user.Email, data); err != nil {
			s.errHandler(err)
		}
	}()
}
