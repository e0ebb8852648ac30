package otp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	codePrefix     = "otp:code:"
	attemptsPrefix = "otp:attempts:"
	resetPrefix    = "otp:reset:"
)

var (
	// errNoCode is returned when no live code exists for an email
	errNoCode = errors.New("no active code")
	// errLocked is returned when a code has used up its attempts
	errLocked = errors.New("attempts exhausted")
)

// Store keeps OTP state in Redis
type Store struct {
	redis *redis.Client
}

// NewStore creates a Store
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// SaveCode stores code for email, replacing any earlier code and its
// attempt counter
func (s *Store) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, codePrefix+email, hashCode(code), ttl)
		pipe.Del(ctx, attemptsPrefix+email)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}
	return nil
}

// checkScript compares a code hash and counts the failure in one step so
// concurrent guesses cannot outrun the attempt limit. A match or the last
// allowed failure deletes the code.
//
// KEYS: code, attempts. ARGV: code hash, max attempts.
// Returns {status, failures}.
var checkScript = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
	return {0, 0}
end
local max = tonumber(ARGV[2])
local failures = tonumber(redis.call('GET', KEYS[2]) or '0')
if failures >= max then
	redis.call('DEL', KEYS[1])
	return {3, failures}
end
if stored == ARGV[1] then
	redis.call('DEL', KEYS[1], KEYS[2])
	return {1, failures}
end
failures = redis.call('INCR', KEYS[2])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 1 then
	ttl = 60000
end
redis.call('PEXPIRE', KEYS[2], ttl)
if failures >= max then
	redis.call('DEL', KEYS[1])
end
return {2, failures}
`)

const (
	checkNoCode int64 = iota
	checkMatch
	checkMismatch
	checkLocked
)

// CheckCode compares code with the stored code for email and consumes the
// code on a match. It returns the number of failed attempts, including this
// one when it fails. Once maxAttempts failures are recorded the code is gone
// and later calls return errNoCode.
func (s *Store) CheckCode(ctx context.Context, email, code string, maxAttempts int) (bool, int, error) {
	res, err := checkScript.Run(ctx, s.redis,
		[]string{codePrefix + email, attemptsPrefix + email},
		hashCode(code), maxAttempts).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check code: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("failed to check code: unexpected reply %v", res)
	}
	status, _ := res[0].(int64)
	failures, _ := res[1].(int64)

	switch status {
	case checkMatch:
		return true, int(failures), nil
	case checkMismatch:
		return false, int(failures), nil
	case checkLocked:
		return false, int(failures), errLocked
	default:
		return false, 0, errNoCode
	}
}

// SaveResetToken stores a reset token for email
func (s *Store) SaveResetToken(ctx context.Context, token, email string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, resetPrefix+token, email, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken returns the email of token and deletes it. The second
// result is false for unknown or expired tokens.
func (s *Store) ConsumeResetToken(ctx context.Context, token string) (string, bool, error) {
	var get *redis.StringCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, resetPrefix+token)
		pipe.Del(ctx, resetPrefix+token)
		return nil
	})
	if err != nil && err != redis.Nil {
		return "", false, fmt.Errorf("failed to read reset token: %w", err)
	}

	email, err := get.Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read reset token: %w", err)
	}
	return email, true, nil
}
