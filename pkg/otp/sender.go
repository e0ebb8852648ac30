package otp

import (
	"context"
	"time"

	"github.com/researchportal/pubportal/pkg/observability"
)

// LogSender writes codes to the application log. Delivery by mail is
// handled outside the portal; this sender is for development and for
// deployments that scrape the log.
type LogSender struct {
	logger *observability.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *observability.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendCode logs the code at debug level and the issuance at info level
func (s *LogSender) SendCode(ctx context.Context, email, code string, ttl time.Duration) error {
	logger := s.logger.WithField("email", email).WithField("expires_in", ttl.String())
	logger.WithField("code", code).Debug("otp code")
	logger.Info("otp code issued")
	return nil
}
