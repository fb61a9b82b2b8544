package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
)

// tokenLen is the number of random bytes in a token, 256 bits.
const tokenLen = 32

var ErrInvalidToken = errors.New("invalid token")

// tokenEncoding renders tokens URL-safe so they can be put in emailed
// links and cookies without escaping.
var tokenEncoding = base64.RawURLEncoding

// Token is a random credential that exists only transiently: in an
// emailed link or in a cookie. Only its digest is ever persisted.
// Tokens are confidential and should never be exposed in logs.
type Token [tokenLen]byte

// GenerateToken creates a new random token.
func GenerateToken() (Token, error) {
	var t Token
	if _, err := rand.Read(t[:]); err != nil {
		return Token{}, err
	}
	return t, nil
}

// ParseToken parses a token from its string representation.
func ParseToken(raw string) (Token, error) {
	if len(raw) != tokenEncoding.EncodedLen(tokenLen) {
		return Token{}, ErrInvalidToken
	}

	b, err := tokenEncoding.DecodeString(raw)
	if err != nil {
		return Token{}, ErrInvalidToken
	}

	return Token(b), nil
}

// String returns the string representation of the token.
// As opposed to a Password this is allowed, we need to embed the
// token in emails and cookies.
func (t Token) String() string {
	return tokenEncoding.EncodeToString(t[:])
}

// Hash hashes the token.
func (t Token) Hash() (Digest, error) {
	return digest(t[:])
}

// Match checks if the token matches the given digest.
func (t Token) Match(d Digest) bool {
	return d.match(t[:])
}

// LogValue implements the slog.Valuer interface.
func (t Token) LogValue() slog.Value {
	return slog.StringValue(SecretMarker)
}
