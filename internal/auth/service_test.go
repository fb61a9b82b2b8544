package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chirpnet/chirp/internal/auth"
	authdb "github.com/chirpnet/chirp/internal/auth/db"
	"github.com/chirpnet/chirp/internal/db/testdb"
	"github.com/chirpnet/chirp/internal/email"
	"github.com/chirpnet/chirp/internal/errorz"
	"github.com/chirpnet/chirp/internal/errorz/testerr"
)

func Test_Service_RegisterUser(t *testing.T) {
	t.Run("ok, register user", func(t *testing.T) {
		st := newServiceTest(t)

		addr := must(email.ParseAddress("alice@example.com"))
		user, err := st.svc.RegisterUser(context.Background(), "Alice Example", addr, mustPassword(t, "reallyStrongPassword1"))
		if err != nil {
			t.Fatalf("failed to register user: %v", err)
		}

		// Wait for the service goroutine to finish mailing.
		st.svc.Wait()
		st.errList.assertNoError(t)

		if len(st.emailer.emails) != 1 {
			t.Fatalf("expected 1 email, got %d", len(st.emailer.emails))
		}

		mail := st.emailer.emails[0]
		if mail.template != "user-activation" {
			t.Errorf("expected template %q, got %q", "user-activation", mail.template)
		}
		if mail.recipient != addr {
			t.Errorf("expected recipient %s, got %s", addr, mail.recipient)
		}

		// The mailed token must correspond to the activation digest.
		if !mail.data.Token.Match(user.ActivationDigest) {
			t.Errorf("mailed token does not match activation digest")
		}

		got, err := st.svc.User(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to find user: %v", err)
		}

		if got.Activated {
			t.Errorf("expected user to not be activated yet")
		}
		if !mustPassword(t, "reallyStrongPassword1").Match(got.PasswordDigest) {
			t.Errorf("stored password digest does not match the password")
		}
	})

	t.Run("fail, email already taken", func(t *testing.T) {
		st := newServiceTest(t)
		user, _ := st.registerUser()

		_, err := st.svc.RegisterUser(context.Background(), "Second Alice", user.Email, mustPassword(t, "anotherPassword1"))

		var invalid errorz.InvalidInput
		if !errors.As(err, &invalid) {
			t.Fatalf("expected errorz.InvalidInput, got %T: %v", err, err)
		}
		if !errors.Is(err, auth.ErrEmailTaken) {
			t.Fatalf("expected error to wrap %v, got %v", auth.ErrEmailTaken, err)
		}

		st.svc.Wait()
		st.errList.assertNoError(t)

		// Only the first registration mailed anything.
		if len(st.emailer.emails) != 1 {
			t.Fatalf("expected 1 email, got %d", len(st.emailer.emails))
		}
	})

	t.Run("fail, invalid name does not persist a user", func(t *testing.T) {
		st := newServiceTest(t)

		addr := must(email.ParseAddress("alice@example.com"))
		_, err := st.svc.RegisterUser(context.Background(), "", addr, mustPassword(t, "reallyStrongPassword1"))
		if !errors.Is(err, auth.ErrNameRequired) {
			t.Fatalf("expected error to wrap %v, got %v", auth.ErrNameRequired, err)
		}

		if _, err := st.svc.Login(context.Background(), addr, mustPassword(t, "reallyStrongPassword1")); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("expected no account for %s, got err %v", addr, err)
		}

		if len(st.emailer.emails) != 0 {
			t.Fatalf("expected 0 emails, got %d", len(st.emailer.emails))
		}
	})

	for _, dep := range testerr.NewFailingDeps(testerr.Err, 1) {
		t.Run("fail, store fails", func(t *testing.T) {
			st := newServiceTest(t)
			st.store.tracker = &dep

			addr := must(email.ParseAddress("alice@example.com"))
			_, err := st.svc.RegisterUser(context.Background(), "Alice Example", addr, mustPassword(t, "reallyStrongPassword1"))
			if !errors.Is(err, testerr.Err) {
				t.Fatalf("expected error to wrap %v, got %v", testerr.Err, err)
			}

			st.svc.Wait()

			if len(st.emailer.emails) != 0 {
				t.Fatalf("expected 0 emails, got %d", len(st.emailer.emails))
			}
		})
	}

	t.Run("fail async, emailer fails", func(t *testing.T) {
		st := newServiceTest(t)
		st.emailer.testErr = testerr.Err

		addr := must(email.ParseAddress("alice@example.com"))
		_, err := st.svc.RegisterUser(context.Background(), "Alice Example", addr, mustPassword(t, "reallyStrongPassword1"))
		if err != nil {
			t.Fatalf("failed to register user: %v", err)
		}

		st.svc.Wait()
		st.errList.assertErrorIs(t, testerr.Err)
	})
}

func Test_Service_Activate(t *testing.T) {
	t.Run("ok, activate user", func(t *testing.T) {
		st := newServiceTest(t)
		user, token := st.registerUser()

		if err := st.svc.Activate(context.Background(), user.ID, token); err != nil {
			t.Fatalf("failed to activate user: %v", err)
		}

		got, err := st.svc.User(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to find user: %v", err)
		}

		if !got.Activated {
			t.Errorf("expected user to be activated")
		}
		if got.ActivatedAt == nil {
			t.Errorf("expected activation timestamp to be set")
		}
	})

	t.Run("ok, re-activation is a no-op", func(t *testing.T) {
		st := newServiceTest(t)
		user, token := st.registerUser()

		if err := st.svc.Activate(context.Background(), user.ID, token); err != nil {
			t.Fatalf("failed to activate user: %v", err)
		}

		first, err := st.svc.User(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to find user: %v", err)
		}

		// Even a wrong token succeeds once the user is activated, the
		// token is not checked anymore.
		wrong := must(auth.GenerateToken())
		if err := st.svc.Activate(context.Background(), user.ID, wrong); err != nil {
			t.Fatalf("expected re-activation to succeed, got %v", err)
		}

		second, err := st.svc.User(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to find user: %v", err)
		}

		if !second.ActivatedAt.Equal(*first.ActivatedAt) {
			t.Errorf("expected activation timestamp to be unchanged, got %v and %v", first.ActivatedAt, second.ActivatedAt)
		}
	})

	t.Run("fail, wrong token", func(t *testing.T) {
		st := newServiceTest(t)
		user, _ := st.registerUser()

		wrong := must(auth.GenerateToken())
		err := st.svc.Activate(context.Background(), user.ID, wrong)
		if !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("expected error %v, got %v", auth.ErrInvalidToken, err)
		}

		got, err := st.svc.User(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to find user: %v", err)
		}

		if got.Activated {
			t.Errorf("expected user to not be activated")
		}
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		st := newServiceTest(t)

		token := must(auth.GenerateToken())
		err := st.svc.Activate(context.Background(), uuid.New(), token)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v", errorz.ErrNotFound, err)
		}
	})
}

func Test_Service_Login(t *testing.T) {
	t.Run("ok, correct credentials", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		got, err := st.svc.Login(context.Background(), user.Email, mustPassword(t, "reallyStrongPassword1"))
		if err != nil {
			t.Fatalf("failed to login: %v", err)
		}

		if got.ID != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, got.ID)
		}
	})

	t.Run("ok, unactivated user can log in", func(t *testing.T) {
		st := newServiceTest(t)
		user, _ := st.registerUser()

		got, err := st.svc.Login(context.Background(), user.Email, mustPassword(t, "reallyStrongPassword1"))
		if err != nil {
			t.Fatalf("failed to login: %v", err)
		}

		if got.Activated {
			t.Errorf("expected user to not be activated")
		}
	})

	t.Run("fail, wrong password", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		_, err := st.svc.Login(context.Background(), user.Email, mustPassword(t, "notThePassword1"))
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("expected error %v, got %v", auth.ErrInvalidCredentials, err)
		}
	})

	t.Run("fail, unknown email", func(t *testing.T) {
		st := newServiceTest(t)

		// Unknown emails report the same error as wrong passwords.
		addr := must(email.ParseAddress("nobody@example.com"))
		_, err := st.svc.Login(context.Background(), addr, mustPassword(t, "reallyStrongPassword1"))
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("expected error %v, got %v", auth.ErrInvalidCredentials, err)
		}
	})
}

func Test_Service_Remember(t *testing.T) {
	t.Run("ok, remember and resume", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		token, err := st.svc.Remember(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to remember user: %v", err)
		}

		got, err := st.svc.ResumeSession(context.Background(), user.ID, token)
		if err != nil {
			t.Fatalf("failed to resume session: %v", err)
		}

		if got.ID != user.ID {
			t.Errorf("expected user %s, got %s", user.ID, got.ID)
		}
	})

	t.Run("ok, resume survives a restart", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		token, err := st.svc.Remember(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to remember user: %v", err)
		}

		// A fresh service over the same store, as after a restart.
		svc2, err := auth.NewService(st.store, st.emailer, st.errList.AppendErr, st.cfg)
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}

		if _, err := svc2.ResumeSession(context.Background(), user.ID, token); err != nil {
			t.Fatalf("failed to resume session: %v", err)
		}
	})

	t.Run("ok, second remember invalidates the first token", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		first, err := st.svc.Remember(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to remember user: %v", err)
		}

		second, err := st.svc.Remember(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to remember user: %v", err)
		}

		if _, err := st.svc.ResumeSession(context.Background(), user.ID, first); !errors.Is(err, auth.ErrSessionInvalid) {
			t.Fatalf("expected error %v, got %v", auth.ErrSessionInvalid, err)
		}

		if _, err := st.svc.ResumeSession(context.Background(), user.ID, second); err != nil {
			t.Fatalf("failed to resume session: %v", err)
		}
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		st := newServiceTest(t)

		_, err := st.svc.Remember(context.Background(), uuid.New())
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v", errorz.ErrNotFound, err)
		}
	})
}

func Test_Service_ResumeSession(t *testing.T) {
	t.Run("fail, no persistent session", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		token := must(auth.GenerateToken())
		_, err := st.svc.ResumeSession(context.Background(), user.ID, token)
		if !errors.Is(err, auth.ErrSessionInvalid) {
			t.Fatalf("expected error %v, got %v", auth.ErrSessionInvalid, err)
		}
	})

	t.Run("fail, wrong token", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		if _, err := st.svc.Remember(context.Background(), user.ID); err != nil {
			t.Fatalf("failed to remember user: %v", err)
		}

		wrong := must(auth.GenerateToken())
		_, err := st.svc.ResumeSession(context.Background(), user.ID, wrong)
		if !errors.Is(err, auth.ErrSessionInvalid) {
			t.Fatalf("expected error %v, got %v", auth.ErrSessionInvalid, err)
		}
	})

	t.Run("fail, after forget", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		token, err := st.svc.Remember(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("failed to remember user: %v", err)
		}

		if err := st.svc.Forget(context.Background(), user.ID); err != nil {
			t.Fatalf("failed to forget user: %v", err)
		}

		_, err = st.svc.ResumeSession(context.Background(), user.ID, token)
		if !errors.Is(err, auth.ErrSessionInvalid) {
			t.Fatalf("expected error %v, got %v", auth.ErrSessionInvalid, err)
		}
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		st := newServiceTest(t)

		token := must(auth.GenerateToken())
		_, err := st.svc.ResumeSession(context.Background(), uuid.New(), token)
		if !errors.Is(err, auth.ErrSessionInvalid) {
			t.Fatalf("expected error %v, got %v", auth.ErrSessionInvalid, err)
		}
	})
}

func Test_Service_Forget(t *testing.T) {
	t.Run("ok, without persistent session", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		if err := st.svc.Forget(context.Background(), user.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("ok, unknown user", func(t *testing.T) {
		st := newServiceTest(t)

		if err := st.svc.Forget(context.Background(), uuid.New()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func Test_Service_RequestPasswordReset(t *testing.T) {
	t.Run("ok, request reset", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		if err := st.svc.RequestPasswordReset(context.Background(), user.Email); err != nil {
			t.Fatalf("failed to request reset: %v", err)
		}

		st.svc.Wait()
		st.errList.assertNoError(t)

		mail := st.emailer.emails[len(st.emailer.emails)-1]
		if mail.template != "password-reset" {
			t.Errorf("expected template %q, got %q", "password-reset", mail.template)
		}
		if mail.recipient != user.Email {
			t.Errorf("expected recipient %s, got %s", user.Email, mail.recipient)
		}
	})

	t.Run("fail, unknown email", func(t *testing.T) {
		st := newServiceTest(t)

		// The caller decides how to present unknown emails.
		addr := must(email.ParseAddress("nobody@example.com"))
		err := st.svc.RequestPasswordReset(context.Background(), addr)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v", errorz.ErrNotFound, err)
		}

		st.svc.Wait()
		if len(st.emailer.emails) != 0 {
			t.Fatalf("expected 0 emails, got %d", len(st.emailer.emails))
		}
	})

	t.Run("ok, second request invalidates the first token", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		first := st.requestReset(user)
		second := st.requestReset(user)

		newPwd := mustPassword(t, "brandNewPassword1")
		err := st.svc.CompletePasswordReset(context.Background(), user.ID, first, newPwd, newPwd)
		if !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("expected error %v, got %v", auth.ErrInvalidToken, err)
		}

		if err := st.svc.CompletePasswordReset(context.Background(), user.ID, second, newPwd, newPwd); err != nil {
			t.Fatalf("failed to complete reset: %v", err)
		}
	})
}

func Test_Service_CompletePasswordReset(t *testing.T) {
	t.Run("ok, password is replaced", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()
		token := st.requestReset(user)

		newPwd := mustPassword(t, "brandNewPassword1")
		if err := st.svc.CompletePasswordReset(context.Background(), user.ID, token, newPwd, newPwd); err != nil {
			t.Fatalf("failed to complete reset: %v", err)
		}

		if _, err := st.svc.Login(context.Background(), user.Email, newPwd); err != nil {
			t.Fatalf("failed to login with new password: %v", err)
		}

		_, err := st.svc.Login(context.Background(), user.Email, mustPassword(t, "reallyStrongPassword1"))
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("expected old password to be rejected, got %v", err)
		}
	})

	t.Run("ok, just inside the expiry window", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		base := time.Now().Round(0)
		st.svc.NowFunc = func() time.Time { return base }
		token := st.requestReset(user)

		st.svc.NowFunc = func() time.Time { return base.Add(2*time.Hour - time.Second) }

		newPwd := mustPassword(t, "brandNewPassword1")
		if err := st.svc.CompletePasswordReset(context.Background(), user.ID, token, newPwd, newPwd); err != nil {
			t.Fatalf("failed to complete reset: %v", err)
		}
	})

	t.Run("fail, token expired", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		base := time.Now().Round(0)
		st.svc.NowFunc = func() time.Time { return base }
		token := st.requestReset(user)

		st.svc.NowFunc = func() time.Time { return base.Add(2 * time.Hour) }

		newPwd := mustPassword(t, "brandNewPassword1")
		err := st.svc.CompletePasswordReset(context.Background(), user.ID, token, newPwd, newPwd)
		if !errors.Is(err, auth.ErrExpiredToken) {
			t.Fatalf("expected error %v, got %v", auth.ErrExpiredToken, err)
		}

		// The old password still works.
		if _, err := st.svc.Login(context.Background(), user.Email, mustPassword(t, "reallyStrongPassword1")); err != nil {
			t.Fatalf("failed to login with old password: %v", err)
		}
	})

	t.Run("fail, wrong token", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()
		st.requestReset(user)

		wrong := must(auth.GenerateToken())
		newPwd := mustPassword(t, "brandNewPassword1")
		err := st.svc.CompletePasswordReset(context.Background(), user.ID, wrong, newPwd, newPwd)
		if !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("expected error %v, got %v", auth.ErrInvalidToken, err)
		}
	})

	t.Run("fail, confirmation mismatch", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()
		token := st.requestReset(user)

		err := st.svc.CompletePasswordReset(context.Background(), user.ID, token,
			mustPassword(t, "brandNewPassword1"), mustPassword(t, "somethingElse1"))
		if !errors.Is(err, auth.ErrConfirmationMismatch) {
			t.Fatalf("expected error %v, got %v", auth.ErrConfirmationMismatch, err)
		}

		// The old password still works.
		if _, err := st.svc.Login(context.Background(), user.Email, mustPassword(t, "reallyStrongPassword1")); err != nil {
			t.Fatalf("failed to login with old password: %v", err)
		}
	})

	t.Run("fail, consumed token cannot be replayed", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()
		token := st.requestReset(user)

		newPwd := mustPassword(t, "brandNewPassword1")
		if err := st.svc.CompletePasswordReset(context.Background(), user.ID, token, newPwd, newPwd); err != nil {
			t.Fatalf("failed to complete reset: %v", err)
		}

		// The reset state was cleared, a replayed token behaves like an
		// expired one.
		otherPwd := mustPassword(t, "yetAnotherPassword1")
		err := st.svc.CompletePasswordReset(context.Background(), user.ID, token, otherPwd, otherPwd)
		if !errors.Is(err, auth.ErrExpiredToken) {
			t.Fatalf("expected error %v, got %v", auth.ErrExpiredToken, err)
		}
	})

	t.Run("fail, no outstanding request", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		token := must(auth.GenerateToken())
		newPwd := mustPassword(t, "brandNewPassword1")
		err := st.svc.CompletePasswordReset(context.Background(), user.ID, token, newPwd, newPwd)
		if !errors.Is(err, auth.ErrExpiredToken) {
			t.Fatalf("expected error %v, got %v", auth.ErrExpiredToken, err)
		}
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		st := newServiceTest(t)

		token := must(auth.GenerateToken())
		newPwd := mustPassword(t, "brandNewPassword1")
		err := st.svc.CompletePasswordReset(context.Background(), uuid.New(), token, newPwd, newPwd)
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v", errorz.ErrNotFound, err)
		}
	})
}

func Test_Service_DeleteUser(t *testing.T) {
	t.Run("ok, delete user", func(t *testing.T) {
		st := newServiceTest(t)
		user := st.activatedUser()

		if err := st.svc.DeleteUser(context.Background(), user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		if _, err := st.svc.User(context.Background(), user.ID); !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v", errorz.ErrNotFound, err)
		}
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		st := newServiceTest(t)

		err := st.svc.DeleteUser(context.Background(), uuid.New())
		if !errors.Is(err, errorz.ErrNotFound) {
			t.Fatalf("expected error %v, got %v", errorz.ErrNotFound, err)
		}
	})
}

type svcTest struct {
	t       *testing.T
	store   *testStore
	emailer *testEmailer
	errList *errList
	cfg     auth.ServiceConfig
	svc     *auth.Service
}

func newServiceTest(t *testing.T) *svcTest {
	testDB := testdb.RunWhile(t)
	test := &svcTest{
		t: t,
		store: &testStore{
			store: authdb.New(testDB),
			// A negative index never matches, this tracker never fails.
			tracker: &testerr.FailingDep{FailAtIndex: -1},
		},
		emailer: &testEmailer{},
		errList: &errList{
			mutex: &sync.Mutex{},
			errs:  make([]error, 0),
		},
		cfg: auth.ServiceConfig{
			WorkerTimeout:    time.Second,
			ResetTokenExpiry: 2 * time.Hour,
			BaseURL:          "http://localhost:8888",
		},
	}

	svc, err := auth.NewService(test.store, test.emailer, test.errList.AppendErr, test.cfg)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	test.svc = svc

	return test
}

// registerUser registers a fixture user and returns it together with
// the activation token that was mailed.
func (st *svcTest) registerUser() (auth.User, auth.Token) {
	st.t.Helper()

	addr := must(email.ParseAddress("alice@example.com"))
	user, err := st.svc.RegisterUser(context.Background(), "Alice Example", addr, mustPassword(st.t, "reallyStrongPassword1"))
	if err != nil {
		st.t.Fatalf("failed to register user: %v", err)
	}

	st.svc.Wait()
	st.errList.assertNoError(st.t)

	mail := st.emailer.emails[len(st.emailer.emails)-1]
	return user, mail.data.Token
}

func (st *svcTest) activatedUser() auth.User {
	st.t.Helper()

	user, token := st.registerUser()
	if err := st.svc.Activate(context.Background(), user.ID, token); err != nil {
		st.t.Fatalf("failed to activate user: %v", err)
	}

	return user
}

// requestReset requests a password reset for the user and returns the
// reset token that was mailed.
func (st *svcTest) requestReset(user auth.User) auth.Token {
	st.t.Helper()

	if err := st.svc.RequestPasswordReset(context.Background(), user.Email); err != nil {
		st.t.Fatalf("failed to request reset: %v", err)
	}

	st.svc.Wait()
	st.errList.assertNoError(st.t)

	mail := st.emailer.emails[len(st.emailer.emails)-1]
	return mail.data.Token
}

type sentEmail struct {
	template  string
	recipient email.Address
	data      auth.MailData
}

type testEmailer struct {
	emails  []sentEmail
	testErr error
}

func (e *testEmailer) Send(_ context.Context, template string, to email.Address, data any) error {
	md, ok := data.(auth.MailData)
	if !ok {
		return errors.New("unexpected mail data type")
	}

	e.emails = append(e.emails, sentEmail{
		template:  template,
		recipient: to,
		data:      md,
	})

	return e.testErr
}

type errList struct {
	mutex *sync.Mutex
	errs  []error
}

func (e *errList) AppendErr(err error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.errs = append(e.errs, err)
}

func (e *errList) assertNoError(t *testing.T) {
	t.Helper()

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if len(e.errs) > 0 {
		t.Fatalf("unexpected errors: %v", e.errs)
	}
}

func (e *errList) assertErrorIs(t *testing.T, target error) {
	t.Helper()

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if len(e.errs) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(e.errs), e.errs)
	}

	if !errors.Is(e.errs[0], target) {
		t.Fatalf("expected error to wrap %v, got %v", target, e.errs[0])
	}
}

// testStore wraps a real store so tests can make calls fail at specific
// points in a sequence.
type testStore struct {
	store   auth.Store
	tracker *testerr.FailingDep
}

func (s *testStore) CreateUser(ctx context.Context, u *auth.User) error {
	return testerr.MaybeFailErrFunc(s.tracker, func() error {
		return s.store.CreateUser(ctx, u)
	})
}

func (s *testStore) UpdateUser(ctx context.Context, u *auth.User) error {
	return testerr.MaybeFailErrFunc(s.tracker, func() error {
		return s.store.UpdateUser(ctx, u)
	})
}

func (s *testStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return testerr.MaybeFailErrFunc(s.tracker, func() error {
		return s.store.DeleteUser(ctx, id)
	})
}

func (s *testStore) FindUserByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	return testerr.MaybeFail(s.tracker, func() (auth.User, error) {
		return s.store.FindUserByID(ctx, id)
	})
}

func (s *testStore) FindUserByEmail(ctx context.Context, addr email.Address) (auth.User, error) {
	return testerr.MaybeFail(s.tracker, func() (auth.User, error) {
		return s.store.FindUserByEmail(ctx, addr)
	})
}

func (s *testStore) SetRememberDigest(ctx context.Context, id uuid.UUID, d auth.Digest) error {
	return testerr.MaybeFailErrFunc(s.tracker, func() error {
		return s.store.SetRememberDigest(ctx, id, d)
	})
}

func (s *testStore) MarkActivated(ctx context.Context, id uuid.UUID, at time.Time) error {
	return testerr.MaybeFailErrFunc(s.tracker, func() error {
		return s.store.MarkActivated(ctx, id, at)
	})
}

func (s *testStore) SetResetDigest(ctx context.Context, id uuid.UUID, d auth.Digest, sentAt time.Time) error {
	return testerr.MaybeFailErrFunc(s.tracker, func() error {
		return s.store.SetResetDigest(ctx, id, d, sentAt)
	})
}

func (s *testStore) ReplacePassword(ctx context.Context, id uuid.UUID, d auth.Digest) error {
	return testerr.MaybeFailErrFunc(s.tracker, func() error {
		return s.store.ReplacePassword(ctx, id, d)
	})
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
