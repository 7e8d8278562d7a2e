package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/storefront/identity/internal/pii"
)

// LogSender stands in for a delivery backend that is not configured. It
// records that a message would have been sent, without its content.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) SendEmail(_ context.Context, to, subject, _ string) error {
	l.logger.Warn("email delivery not configured, email not sent",
		zap.String("to", pii.MaskEmail(to)),
		zap.String("subject", subject),
	)
	return nil
}

func (l *LogSender) SendSMS(_ context.Context, to, _ string) error {
	l.logger.Warn("sms delivery not configured, sms not sent", zap.String("to", pii.MaskPhone(to)))
	return nil
}
