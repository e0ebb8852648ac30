package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
)

// CodeLength is the number of digits in a code
const CodeLength = 6

var (
	// ErrInvalidCode is returned for a wrong, expired or missing code
	ErrInvalidCode = errors.New("invalid or expired code")

	// ErrTooManyAttempts is returned once a code has been guessed wrong too often
	ErrTooManyAttempts = errors.New("too many attempts, request a new code")

	// ErrInvalidResetToken is returned for an unknown, used or expired reset token
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// Config controls code and token lifetimes
type Config struct {
	CodeTTL     time.Duration
	ResetTTL    time.Duration
	MaxAttempts int
}

// DefaultConfig returns a 10 minute code, a 15 minute reset token and 5 attempts
func DefaultConfig() Config {
	return Config{CodeTTL: 10 * time.Minute, ResetTTL: 15 * time.Minute, MaxAttempts: 5}
}

// Sender delivers a code to its owner
type Sender interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}

// PasswordResetter writes a new password hash for the account with email
type PasswordResetter interface {
	SetPasswordHash(ctx context.Context, email, hash string) error
}

// Service runs the reset flow
type Service struct {
	store    *Store
	accounts auth.AccountStore
	sender   Sender
	resetter PasswordResetter
	config   Config
	audit    audit.Logger
	metrics  *observability.Metrics
}

// NewService creates a Service. metrics may be nil.
func NewService(store *Store, accounts auth.AccountStore, sender Sender, resetter PasswordResetter,
	config Config, auditLogger audit.Logger, metrics *observability.Metrics) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		store:    store,
		accounts: accounts,
		sender:   sender,
		resetter: resetter,
		config:   config,
		audit:    auditLogger,
		metrics:  metrics,
	}
}

// Config returns the service configuration
func (s *Service) Config() Config {
	return s.config
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateCode returns CodeLength random decimal digits
func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// RequestCode issues a code for email. Unknown addresses succeed silently.
func (s *Service) RequestCode(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.accounts.AccountByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		s.metrics.RecordOTP("request", "unknown")
		return nil
	}
	if err != nil {
		s.metrics.RecordOTP("request", "error")
		return fmt.Errorf("failed to look up account: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := s.store.SaveCode(ctx, email, code, s.config.CodeTTL); err != nil {
		s.metrics.RecordOTP("request", "error")
		return err
	}
	if err := s.sender.SendCode(ctx, email, code, s.config.CodeTTL); err != nil {
		s.metrics.RecordOTP("request", "error")
		return fmt.Errorf("failed to send code: %w", err)
	}

	s.metrics.RecordOTP("request", "sent")
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeAuthOTPRequest, audit.EventStatusSuccess, account.Actor).
		On(audit.ResourceTypeUser, account.ID))
	return nil
}

// VerifyCode checks code and returns a reset token
func (s *Service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)

	ok, attempts, err := s.store.CheckCode(ctx, email, code, s.config.MaxAttempts)
	if errors.Is(err, errNoCode) {
		s.metrics.RecordOTP("verify", "invalid")
		return "", ErrInvalidCode
	}
	if errors.Is(err, errLocked) {
		s.metrics.RecordOTP("verify", "locked")
		return "", ErrTooManyAttempts
	}
	if err != nil {
		s.metrics.RecordOTP("verify", "error")
		return "", err
	}

	if !ok {
		s.audit.Log(ctx, audit.NewEvent(audit.EventTypeAuthOTPVerify, audit.EventStatusFailure, policy.Actor{Email: email}).
			WithMetadata("attempts", attempts))
		if attempts >= s.config.MaxAttempts {
			s.metrics.RecordOTP("verify", "locked")
			return "", ErrTooManyAttempts
		}
		s.metrics.RecordOTP("verify", "invalid")
		return "", ErrInvalidCode
	}

	token := uuid.NewString()
	if err := s.store.SaveResetToken(ctx, token, email, s.config.ResetTTL); err != nil {
		return "", err
	}

	s.metrics.RecordOTP("verify", "ok")
	return token, nil
}

// ResetPassword consumes token and sets the new password
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			verr := policy.NewValidationError()
			verr.Add("new_password", err.Error())
			return verr
		}
		return err
	}

	email, ok, err := s.store.ConsumeResetToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.RecordOTP("reset", "invalid")
		return ErrInvalidResetToken
	}

	if err := s.resetter.SetPasswordHash(ctx, email, hash); err != nil {
		s.metrics.RecordOTP("reset", "error")
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.metrics.RecordOTP("reset", "ok")
	s.audit.Log(ctx, audit.NewEvent(audit.EventTypeAuthPasswordReset, audit.EventStatusSuccess, policy.Actor{Email: email}).
		On(audit.ResourceTypeUser, 0))
	return nil
}
