package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordBytes = 6
	// bcrypt only considers the first 72 bytes of its input, so a longer
	// password would silently be truncated. Reject those outright.
	maxPasswordBytes = 72

	// SecretMarker is a string we can look for in logs to see if the app
	// is accidentally exposing secrets.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var ErrInvalidPassword = fmt.Errorf("invalid password")

// hashCost is the process-wide bcrypt cost used for new digests.
// Production uses the bcrypt default; tests lower it via SetFastHashing
// to keep suites fast. Existing digests carry their own cost, so
// changing this never invalidates stored credentials.
var hashCost = bcrypt.DefaultCost

// SetFastHashing switches new digests between the minimum and the
// default bcrypt cost. Only meant for test and CI execution contexts.
func SetFastHashing(fast bool) {
	if fast {
		hashCost = bcrypt.MinCost
		return
	}
	hashCost = bcrypt.DefaultCost
}

// Digest is the persisted one-way hash of a secret or token. Unlike the
// secrets themselves, a Digest is safe to store and log.
type Digest string

func (d Digest) String() string {
	return string(d)
}

// match reports whether plain is the secret this digest was computed
// from. An empty digest matches nothing; it never errors. The
// comparison is delegated to bcrypt, which is resistant to timing
// attacks.
func (d Digest) match(plain []byte) bool {
	if d == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(d), plain) == nil
}

func digest(plain []byte) (Digest, error) {
	h, err := bcrypt.GenerateFromPassword(plain, hashCost)
	if err != nil {
		return "", err
	}
	return Digest(h), nil
}

// Password is a plaintext password.
//
// It should never be persisted, logged or exposed in any other way. To
// protect ourselves from accidentally doing so, the type implements
// several common interfaces that would allow it to be used inappropriately.
type Password struct {
	plain []byte
}

// ParsePassword creates a new Password from a plaintext string.
// It errors if the password is too short or too long.
func ParsePassword(pwd string) (Password, error) {
	if len(pwd) < minPasswordBytes || len(pwd) > maxPasswordBytes {
		return Password{}, ErrInvalidPassword
	}

	return Password{
		plain: []byte(pwd),
	}, nil
}

// Hash hashes the plaintext password.
func (p Password) Hash() (Digest, error) {
	return digest(p.plain)
}

// Match checks if the plaintext password matches the given digest.
func (p Password) Match(d Digest) bool {
	return d.match(p.plain)
}

// Equal reports whether two plaintext passwords are the same, in
// constant time. Used to verify password confirmations.
func (p Password) Equal(other Password) bool {
	return subtle.ConstantTimeCompare(p.plain, other.plain) == 1
}

func (p Password) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (p Password) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}
