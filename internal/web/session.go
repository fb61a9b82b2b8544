package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/chirpnet/chirp/internal/auth"
	"github.com/chirpnet/chirp/internal/errorz"
)

const (
	// authSessionName is the short-lived session cookie carrying the
	// logged-in user id.
	authSessionName = "chirp_session"
	// rememberSessionName is the long-lived signed cookie carrying the
	// {userID, rememberToken} pair.
	rememberSessionName = "chirp_remember"

	// rememberMaxAge is 20 years, the cookie is effectively permanent.
	rememberMaxAge = 20 * 365 * 24 * 60 * 60
)

// withUser resolves the current user and injects it into the request
// context. The ephemeral session wins; if it carries no identity, the
// remember cookie is consulted and a successful resume re-establishes
// the ephemeral session. Anything that fails to verify leaves the
// request anonymous.
func (s *Server) withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok, err := s.currentUser(w, r)
		if err != nil {
			s.handleError(w, r, err)
			return
		}

		if ok {
			r = r.WithContext(ctxWithUser(r.Context(), user))
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (auth.User, bool, error) {
	// An undecodable cookie still yields a usable new session, so the
	// error itself only means "no existing session".
	sess, _ := s.sessions.Get(r, authSessionName)

	if idStr, ok := sess.Values[sessionUserKey].(string); ok {
		id, err := uuid.Parse(idStr)
		if err == nil {
			user, err := s.deps.Auth.User(r.Context(), id)
			if err == nil {
				return user, true, nil
			}
			if !errors.Is(err, errorz.ErrNotFound) {
				return auth.User{}, false, err
			}
			// The session references a deleted user; fall through.
		}
	}

	return s.resumeFromRememberCookie(w, r, sess)
}

func (s *Server) resumeFromRememberCookie(w http.ResponseWriter, r *http.Request, sess *sessions.Session) (auth.User, bool, error) {
	rem, err := s.sessions.Get(r, rememberSessionName)
	if err != nil || rem.IsNew {
		return auth.User{}, false, nil
	}

	idStr, okID := rem.Values[sessionUserKey].(string)
	tokStr, okTok := rem.Values[sessionTokenKey].(string)
	if !okID || !okTok {
		return auth.User{}, false, nil
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return auth.User{}, false, nil
	}

	token, err := auth.ParseToken(tokStr)
	if err != nil {
		return auth.User{}, false, nil
	}

	user, err := s.deps.Auth.ResumeSession(r.Context(), id, token)
	if err != nil {
		if errors.Is(err, auth.ErrSessionInvalid) {
			return auth.User{}, false, nil
		}
		return auth.User{}, false, err
	}

	// Re-establish the ephemeral session. The remember token itself is
	// not rotated on resumption.
	sess.Values[sessionUserKey] = user.ID.String()
	if err := sess.Save(r, w); err != nil {
		return auth.User{}, false, err
	}

	return user, true, nil
}

const (
	sessionUserKey  = "userID"
	sessionTokenKey = "token"
)

// startSession establishes the session identity after a successful
// login. All values of the pre-login session are discarded first, as a
// defense against session fixation.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	sess, _ := s.sessions.Get(r, authSessionName)

	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Values[sessionUserKey] = userID.String()

	return sess.Save(r, w)
}

// endSession drops the ephemeral session identity. Ending an already
// anonymous session is a no-op.
func (s *Server) endSession(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.sessions.Get(r, authSessionName)
	if sess.IsNew {
		return nil
	}

	// Setting the age in the past deletes the cookie.
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// writeRememberCookie issues the persistent cookie pair for the user.
func (s *Server) writeRememberCookie(w http.ResponseWriter, r *http.Request, userID uuid.UUID, token auth.Token) error {
	rem, _ := s.sessions.Get(r, rememberSessionName)
	rem.Options.MaxAge = rememberMaxAge
	rem.Values[sessionUserKey] = userID.String()
	rem.Values[sessionTokenKey] = token.String()
	return rem.Save(r, w)
}

// clearRememberCookie deletes the persistent cookie if present.
func (s *Server) clearRememberCookie(w http.ResponseWriter, r *http.Request) error {
	rem, _ := s.sessions.Get(r, rememberSessionName)
	if rem.IsNew {
		return nil
	}

	rem.Options.MaxAge = -1
	return rem.Save(r, w)
}

type ctxKey string

const userCtxKey ctxKey = "chirpUser"

func ctxWithUser(ctx context.Context, user auth.User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext returns the authenticated user for this request, if any.
func UserFromContext(ctx context.Context) (auth.User, bool) {
	user, ok := ctx.Value(userCtxKey).(auth.User)
	return user, ok
}
