package utils

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// NewValidationToken returns a fresh opaque token printed on a ticket and
// shown at the door.  Only its hash is stored.
func NewValidationToken() string {
	return uuid.NewString()
}

// HashToken returns the bcrypt hash of a validation token using the given cost.
func HashToken(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyToken safely compares a bcrypt hash and a plain token.
func VerifyToken(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
