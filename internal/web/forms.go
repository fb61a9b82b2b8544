package web

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/chirpnet/chirp/internal/errorz"
)

// The form structs mirror the HTML forms in the templates. They are
// decoded with gorilla/schema and checked with validator before any
// values cross into the auth package, where the parse types enforce
// the same constraints again.

type signupForm struct {
	Name                 string `schema:"name" validate:"required,max=50"`
	Email                string `schema:"email" validate:"required,email,max=255"`
	Password             string `schema:"password" validate:"required,min=6"`
	PasswordConfirmation string `schema:"password_confirmation" validate:"required,eqfield=Password"`
}

type loginForm struct {
	Email      string `schema:"email" validate:"required,email"`
	Password   string `schema:"password" validate:"required"`
	RememberMe string `schema:"remember_me"`
}

type forgotPasswordForm struct {
	Email string `schema:"email" validate:"required,email"`
}

type resetPasswordForm struct {
	User                 string `schema:"user" validate:"required,uuid"`
	Token                string `schema:"token" validate:"required"`
	Password             string `schema:"password" validate:"required,min=6"`
	PasswordConfirmation string `schema:"password_confirmation" validate:"required,eqfield=Password"`
}

// decodeForm decodes and validates a form payload into dst.
// Validation failures are returned as errorz.InvalidInput keyed by
// field name so they can be surfaced next to the right input.
func (s *Server) decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}

	// The CSRF token doesn't map to any form struct, drop it before
	// decoding.
	r.PostForm.Del(csrfTokenField)

	if err := s.decoder.Decode(dst, r.PostForm); err != nil {
		return err
	}

	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}

	var invalid errorz.InvalidInput
	for _, e := range valErrs {
		invalid = append(invalid, errorz.Keyed{
			Key: e.Field(),
			Err: errors.New("failed on the " + e.Tag() + " rule"),
		})
	}

	return invalid
}
