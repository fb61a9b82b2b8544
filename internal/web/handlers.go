package web

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/chirpnet/chirp/internal/auth"
	"github.com/chirpnet/chirp/internal/email"
	"github.com/chirpnet/chirp/internal/errorz"
)

// All authentication failures within one flow get the same flash
// message, so the response doesn't leak which part of a credential or
// token was wrong.

func (s *Server) getHome(w http.ResponseWriter, r *http.Request) {
	if err := s.writeView(w, r, "home", nil); err != nil {
		s.handleError(w, r, err)
	}
}

func (s *Server) postSignup(w http.ResponseWriter, r *http.Request) {
	var form signupForm
	if err := s.decodeForm(r, &form); err != nil {
		s.formFailure(w, r, err, "/signup")
		return
	}

	addr, err := email.ParseAddress(form.Email)
	if err != nil {
		s.formFailure(w, r, err, "/signup")
		return
	}

	pwd, err := auth.ParsePassword(form.Password)
	if err != nil {
		s.formFailure(w, r, err, "/signup")
		return
	}

	_, err = s.deps.Auth.RegisterUser(r.Context(), form.Name, addr, pwd)
	if err != nil {
		s.formFailure(w, r, err, "/signup")
		return
	}

	s.flashAndRedirect(w, r, "Please check your email to activate your account.", "/")
}

func (s *Server) getActivate(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := parseTokenLink(r)
	if !ok {
		s.flashAndRedirect(w, r, "Invalid activation link.", "/")
		return
	}

	err := s.deps.Auth.Activate(r.Context(), userID, token)
	if err != nil {
		if isAuthFailure(err) {
			s.flashAndRedirect(w, r, "Invalid activation link.", "/")
			return
		}
		s.handleError(w, r, err)
		return
	}

	s.flashAndRedirect(w, r, "Your account has been activated. Please log in.", "/login")
}

func (s *Server) postLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := s.decodeForm(r, &form); err != nil {
		s.loginFailure(w, r, err)
		return
	}

	addr, err := email.ParseAddress(form.Email)
	if err != nil {
		s.loginFailure(w, r, err)
		return
	}

	pwd, err := auth.ParsePassword(form.Password)
	if err != nil {
		s.loginFailure(w, r, err)
		return
	}

	user, err := s.deps.Auth.Login(r.Context(), addr, pwd)
	if err != nil {
		s.loginFailure(w, r, err)
		return
	}

	if err := s.startSession(w, r, user.ID); err != nil {
		s.handleError(w, r, err)
		return
	}

	if form.RememberMe == "1" {
		token, err := s.deps.Auth.Remember(r.Context(), user.ID)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
		if err := s.writeRememberCookie(w, r, user.ID, token); err != nil {
			s.handleError(w, r, err)
			return
		}
	} else {
		if err := s.deps.Auth.Forget(r.Context(), user.ID); err != nil {
			s.handleError(w, r, err)
			return
		}
		if err := s.clearRememberCookie(w, r); err != nil {
			s.handleError(w, r, err)
			return
		}
	}

	http.Redirect(w, r, "/profile", http.StatusFound)
}

// loginFailure collapses every failed login into one outcome.
func (s *Server) loginFailure(w http.ResponseWriter, r *http.Request, err error) {
	if isAuthFailure(err) || isInputFailure(err) {
		s.flashAndRedirect(w, r, "Invalid email/password combination.", "/login")
		return
	}
	s.handleError(w, r, err)
}

func (s *Server) postLogout(w http.ResponseWriter, r *http.Request) {
	// Logging out while anonymous is fine, just redirect.
	if user, ok := UserFromContext(r.Context()); ok {
		if err := s.deps.Auth.Forget(r.Context(), user.ID); err != nil {
			s.handleError(w, r, err)
			return
		}
	}

	if err := s.endSession(w, r); err != nil {
		s.handleError(w, r, err)
		return
	}

	if err := s.clearRememberCookie(w, r); err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) postForgotPassword(w http.ResponseWriter, r *http.Request) {
	var form forgotPasswordForm
	if err := s.decodeForm(r, &form); err != nil {
		s.formFailure(w, r, err, "/forgot-password")
		return
	}

	sent := "Check your inbox for instructions to reset your password."

	addr, err := email.ParseAddress(form.Email)
	if err != nil {
		// Indistinguishable from a known address, see below.
		s.flashAndRedirect(w, r, sent, "/")
		return
	}

	err = s.deps.Auth.RequestPasswordReset(r.Context(), addr)
	if err != nil && !errors.Is(err, errorz.ErrNotFound) {
		s.handleError(w, r, err)
		return
	}

	// An unknown email gets the same response as a known one, so this
	// form can't be used to probe which addresses have accounts.
	s.flashAndRedirect(w, r, sent, "/")
}

func (s *Server) getResetPassword(w http.ResponseWriter, r *http.Request) {
	userID, token, ok := parseTokenLink(r)
	if !ok {
		s.flashAndRedirect(w, r, "Invalid password reset link.", "/forgot-password")
		return
	}

	data := struct {
		User  string
		Token string
	}{
		User:  userID.String(),
		Token: token.String(),
	}

	if err := s.writeView(w, r, "reset-password", data); err != nil {
		s.handleError(w, r, err)
	}
}

func (s *Server) postResetPassword(w http.ResponseWriter, r *http.Request) {
	var form resetPasswordForm
	if err := s.decodeForm(r, &form); err != nil {
		s.formFailure(w, r, err, "/forgot-password")
		return
	}

	userID, err := uuid.Parse(form.User)
	if err != nil {
		s.flashAndRedirect(w, r, "Invalid password reset link.", "/forgot-password")
		return
	}

	token, err := auth.ParseToken(form.Token)
	if err != nil {
		s.flashAndRedirect(w, r, "Invalid password reset link.", "/forgot-password")
		return
	}

	pwd, err := auth.ParsePassword(form.Password)
	if err != nil {
		s.formFailure(w, r, err, "/forgot-password")
		return
	}

	confirmation, err := auth.ParsePassword(form.PasswordConfirmation)
	if err != nil {
		s.formFailure(w, r, err, "/forgot-password")
		return
	}

	err = s.deps.Auth.CompletePasswordReset(r.Context(), userID, token, pwd, confirmation)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			s.flashAndRedirect(w, r, "Password reset has expired, please request a new one.", "/forgot-password")
			return
		}
		if isAuthFailure(err) {
			s.flashAndRedirect(w, r, "Invalid password reset link.", "/forgot-password")
			return
		}
		s.formFailure(w, r, err, "/forgot-password")
		return
	}

	s.flashAndRedirect(w, r, "Your password has been reset. Please log in.", "/login")
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	if err := s.writeView(w, r, "profile", user); err != nil {
		s.handleError(w, r, err)
	}
}

func (s *Server) postDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.handleError(w, r, errorz.ErrNotFound)
		return
	}

	if err := s.deps.Auth.DeleteUser(r.Context(), userID); err != nil {
		s.handleError(w, r, err)
		return
	}

	s.flashAndRedirect(w, r, "User deleted.", "/")
}

// formFailure surfaces validation problems back to the user and hands
// everything else to the generic error handler.
func (s *Server) formFailure(w http.ResponseWriter, r *http.Request, err error, url string) {
	if isInputFailure(err) {
		s.flashAndRedirect(w, r, "Please check your input and try again.", url)
		return
	}
	s.handleError(w, r, err)
}

func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials) ||
		errors.Is(err, auth.ErrInvalidToken) ||
		errors.Is(err, auth.ErrExpiredToken) ||
		errors.Is(err, auth.ErrSessionInvalid) ||
		errors.Is(err, errorz.ErrNotFound)
}

func isInputFailure(err error) bool {
	var invalid errorz.InvalidInput
	return errors.As(err, &invalid) ||
		errors.Is(err, email.ErrInvalidEmail) ||
		errors.Is(err, auth.ErrInvalidPassword)
}

// parseTokenLink reads the {user, token} pair out of an emailed link.
func parseTokenLink(r *http.Request) (uuid.UUID, auth.Token, bool) {
	userID, err := uuid.Parse(r.URL.Query().Get("user"))
	if err != nil {
		return uuid.Nil, auth.Token{}, false
	}

	token, err := auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		return uuid.Nil, auth.Token{}, false
	}

	return userID, token, true
}
