package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// ErrWeakPassword is returned for passwords shorter than MinPasswordLength
var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// passwordParams follow the OWASP argon2id minimum
var passwordParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword returns the argon2id PHC hash of password
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := argon2id.CreateHash(password, passwordParams)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword compares password with an argon2id hash. An empty hash
// (account without a password yet) never matches.
func VerifyPassword(password, hash string) (bool, error) {
	if hash == "" || !strings.HasPrefix(hash, "$argon2id$") {
		return false, nil
	}
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		if errors.Is(err, argon2id.ErrInvalidHash) || errors.Is(err, argon2id.ErrIncompatibleVersion) {
			return false, nil
		}
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
	return match, nil
}
