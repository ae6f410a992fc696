package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials is returned when a password does not match.
var ErrBadCredentials = errors.New("invalid email or password")

// Hasher bcrypt-hashes passwords keyed with the application secret.
type Hasher struct {
	pepper string
	cost   int
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper, cost: bcrypt.DefaultCost}
}

// NewHasherWithCost is NewHasher with an explicit bcrypt cost; tests use bcrypt.MinCost.
func NewHasherWithCost(pepper string, cost int) *Hasher {
	return &Hasher{pepper: pepper, cost: cost}
}

// Hash returns the bcrypt hash of HMAC-SHA256(pepper, password). The HMAC keeps
// the bcrypt input under its 72-byte limit regardless of secret length.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	out, err := bcrypt.GenerateFromPassword(h.key(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compare reports whether password matches hash.
func (h *Hasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), h.key(password)) == nil
}

func (h *Hasher) key(password string) []byte {
	mac := hmac.New(sha256.New, []byte(h.pepper))
	mac.Write([]byte(password))
	sum := mac.Sum(nil)
	out := make([]byte, base64.RawStdEncoding.EncodedLen(len(sum)))
	base64.RawStdEncoding.Encode(out, sum)
	return out
}
