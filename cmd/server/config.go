package main

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// keyLen is the required length of the session and CSRF keys.
const keyLen = 32

// config is the configuration for the server command. Values come from
// the environment; only the two signing keys have no default.
type config struct {
	HTTP struct {
		Addr            string        `env:"HTTP_ADDR" env-default:":8888"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"5s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
		SecureCookie    bool          `env:"HTTP_SECURE_COOKIE" env-default:"true"`
		BaseURL         string        `env:"HTTP_BASE_URL" env-default:"http://localhost:8888"`
	}
	DB struct {
		File    string `env:"DB_FILE" env-default:"chirp.db"`
		Migrate bool   `env:"DB_MIGRATE" env-default:"true"`
	}
	Auth struct {
		// SessionKey and CSRFKey are hex encoded 32 byte keys.
		SessionKey       string        `env:"AUTH_SESSION_KEY" env-required:"true"`
		CSRFKey          string        `env:"AUTH_CSRF_KEY" env-required:"true"`
		FastHashing      bool          `env:"AUTH_FAST_HASHING" env-default:"false"`
		ResetTokenExpiry time.Duration `env:"AUTH_RESET_TOKEN_EXPIRY" env-default:"2h"`
		WorkerTimeout    time.Duration `env:"AUTH_WORKER_TIMEOUT" env-default:"10s"`
	}
	Email struct {
		From         string `env:"EMAIL_FROM" env-default:"no-reply@chirp.example"`
		SMTPHost     string `env:"SMTP_HOST"`
		SMTPPort     int    `env:"SMTP_PORT" env-default:"587"`
		SMTPUsername string `env:"SMTP_USERNAME"`
		SMTPPassword string `env:"SMTP_PASSWORD"`
	}
}

// configFromEnv returns a config with values from the environment. It
// does a best effort to validate provided values, so that mistakes are
// caught ASAP.
func configFromEnv() (config, error) {
	var c config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return c, err
	}

	for name, d := range map[string]time.Duration{
		"HTTP_READ_TIMEOUT":     c.HTTP.ReadTimeout,
		"HTTP_WRITE_TIMEOUT":    c.HTTP.WriteTimeout,
		"HTTP_IDLE_TIMEOUT":     c.HTTP.IdleTimeout,
		"HTTP_SHUTDOWN_TIMEOUT": c.HTTP.ShutdownTimeout,
	} {
		if d < 0 {
			return c, fmt.Errorf("%s must not be negative", name)
		}
	}

	if _, err := c.sessionKey(); err != nil {
		return c, fmt.Errorf("invalid AUTH_SESSION_KEY: %w", err)
	}
	if _, err := c.csrfKey(); err != nil {
		return c, fmt.Errorf("invalid AUTH_CSRF_KEY: %w", err)
	}

	return c, nil
}

func (c config) sessionKey() ([]byte, error) {
	return decodeKey(c.Auth.SessionKey)
}

func (c config) csrfKey() ([]byte, error) {
	return decodeKey(c.Auth.CSRFKey)
}

func decodeKey(raw string) ([]byte, error) {
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, err
	}

	if len(key) != keyLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", keyLen, len(key))
	}

	return key, nil
}
