package web

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/csrf"
	"github.com/gorilla/schema"
	"github.com/gorilla/sessions"

	"github.com/chirpnet/chirp/internal/auth"
	"github.com/chirpnet/chirp/internal/errorz"
)

const (
	csrfTokenField      = "csrf_token"
	csrfTokenCookieName = "chirp_csrf"
)

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger       *slog.Logger
	ViewRenderer ViewRenderer
	Auth         *auth.Service
	SessionStore sessions.Store
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	CSRFKey      []byte
	SecureCookie bool
}

type Server struct {
	deps     *ServerDeps
	sessions sessions.Store
	mux      *http.ServeMux
	decoder  *schema.Decoder
	validate *validator.Validate
	handler  http.Handler
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)

	s := &Server{
		deps:     deps,
		sessions: deps.SessionStore,
		mux:      http.NewServeMux(),
		decoder:  decoder,
		validate: validator.New(),
	}

	// Homepage.
	s.public("GET /{$}", http.HandlerFunc(s.getHome))

	// Registration and activation.
	s.publicOnly("GET /signup", s.viewHandler("signup", nil))
	s.publicOnly("POST /signup", http.HandlerFunc(s.postSignup))
	s.public("GET /activate", http.HandlerFunc(s.getActivate))

	// Login and logout.
	s.publicOnly("GET /login", s.viewHandler("login", nil))
	s.publicOnly("POST /login", http.HandlerFunc(s.postLogin))
	s.public("POST /logout", http.HandlerFunc(s.postLogout))

	// Password reset.
	s.publicOnly("GET /forgot-password", s.viewHandler("forgot-password", nil))
	s.publicOnly("POST /forgot-password", http.HandlerFunc(s.postForgotPassword))
	s.publicOnly("GET /reset-password", http.HandlerFunc(s.getResetPassword))
	s.publicOnly("POST /reset-password", http.HandlerFunc(s.postResetPassword))

	// Profile and admin.
	s.loggedIn("GET /profile", http.HandlerFunc(s.getProfile))
	s.adminOnly("POST /users/{id}/delete", http.HandlerFunc(s.postDeleteUser))

	// Wrap the mux with the global middlewares.
	csrfMW := csrf.Protect(
		cfg.CSRFKey,
		csrf.CookieName(csrfTokenCookieName),
		csrf.FieldName(csrfTokenField),
		csrf.Secure(cfg.SecureCookie),
	)

	middlewares := []func(http.Handler) http.Handler{
		csrfMW,
		s.withUser,
	}
	s.handler = s.mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		s.handler = middlewares[i](s.handler)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) public(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// publicOnly endpoints are hidden from logged-in users.
func (s *Server) publicOnly(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); ok {
			http.Redirect(w, r, "/profile", http.StatusFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

func (s *Server) loggedIn(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

// adminOnly endpoints report not found to everyone else, so their
// existence isn't advertised.
func (s *Server) adminOnly(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin {
			s.handleError(w, r, errorz.ErrNotFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

func (s *Server) viewHandler(name string, data any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.writeView(w, r, name, data); err != nil {
			s.handleError(w, r, err)
		}
	})
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, name string, data any) error {
	sess, _ := s.sessions.Get(r, authSessionName)

	user, loggedIn := UserFromContext(r.Context())

	viewData := struct {
		Global any
		View   any
	}{
		Global: struct {
			CSRFField  template.HTML
			IsLoggedIn bool
			UserID     uuid.UUID
			Flashes    []any
		}{
			CSRFField:  csrf.TemplateField(r),
			IsLoggedIn: loggedIn,
			UserID:     user.ID,
			Flashes:    sess.Flashes(),
		},
		View: data,
	}

	// Reading the flashes mutates the session, save before rendering.
	if err := sess.Save(r, w); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return s.deps.ViewRenderer.Render(w, name, viewData)
}

func (s *Server) flashAndRedirect(w http.ResponseWriter, r *http.Request, msg, url string) {
	sess, _ := s.sessions.Get(r, authSessionName)
	sess.AddFlash(msg)
	if err := sess.Save(r, w); err != nil {
		s.handleError(w, r, err)
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errorz.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.deps.Logger.Error("internal server error", "url", r.URL.String(), "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
