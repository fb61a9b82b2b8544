package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/chirpnet/chirp/assets"
	"github.com/chirpnet/chirp/internal"
	"github.com/chirpnet/chirp/internal/auth"
	authdb "github.com/chirpnet/chirp/internal/auth/db"
	"github.com/chirpnet/chirp/internal/db"
	"github.com/chirpnet/chirp/internal/email"
	"github.com/chirpnet/chirp/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	auth.SetFastHashing(cfg.Auth.FastHashing)

	sqlDB, err := db.OpenSQLite(cfg.DB.File)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return 1
	}
	defer sqlDB.Close()

	if cfg.DB.Migrate {
		logger.Info("attempting to migrate database")
		if err := db.Migrate(ctx, sqlDB); err != nil {
			logger.Error("failed to migrate database", "error", err)
			return 1
		}
	}

	from, err := email.ParseAddress(cfg.Email.From)
	if err != nil {
		logger.Error("invalid EMAIL_FROM address", "error", err)
		return 1
	}

	var sender email.Sender = email.NewLogSender(logger)
	if cfg.Email.SMTPHost != "" {
		sender = email.NewSMTPSender(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUsername, cfg.Email.SMTPPassword)
	}

	emailer := email.NewService(assets.EmailFS, from, sender)

	svc, err := auth.NewService(authdb.New(sqlDB), emailer, func(err error) {
		logger.Error("auth worker error", "error", err)
	}, auth.ServiceConfig{
		WorkerTimeout:    cfg.Auth.WorkerTimeout,
		ResetTokenExpiry: cfg.Auth.ResetTokenExpiry,
		BaseURL:          cfg.HTTP.BaseURL,
	})
	if err != nil {
		logger.Error("failed to create auth service", "error", err)
		return 1
	}

	sessionKey, err := cfg.sessionKey()
	if err != nil {
		logger.Error("invalid session key", "error", err)
		return 1
	}

	csrfKey, err := cfg.csrfKey()
	if err != nil {
		logger.Error("invalid csrf key", "error", err)
		return 1
	}

	sessionStore := sessions.NewCookieStore(sessionKey)
	// The session cookie lives until the browser closes, persistence
	// across restarts is the remember cookie's job.
	sessionStore.Options.MaxAge = 0
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.HTTP.SecureCookie
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	handler := web.NewServer(&web.ServerDeps{
		Logger:       logger,
		ViewRenderer: web.NewFSRenderer(assets.TemplateFS),
		Auth:         svc,
		SessionStore: sessionStore,
	}, web.ServerConfig{
		CSRFKey:      csrfKey,
		SecureCookie: cfg.HTTP.SecureCookie,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Handler:      handler,
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.HTTP.Addr,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()

	// Let any outstanding email workers finish before exiting.
	svc.Wait()

	if err != nil && err != http.ErrServerClosed {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}
