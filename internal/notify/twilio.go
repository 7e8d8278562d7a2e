package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/storefront/identity/internal/pii"
)

// twilioHTTPTimeout bounds a single Messages API call; the caller's context
// may end the wait sooner.
const twilioHTTPTimeout = 15 * time.Second

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender sends SMS through the Twilio Messages API
type TwilioSender struct {
	messages    messageCreator
	fromNumber  string
	countryCode string
	logger      *zap.Logger
}

// NewTwilioSender creates a TwilioSender. Local numbers are prefixed with
// countryCode before sending.
func NewTwilioSender(accountSID, authToken, fromNumber, countryCode string, logger *zap.Logger) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	client.SetTimeout(twilioHTTPTimeout)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TwilioSender{
		messages:    client.Api,
		fromNumber:  fromNumber,
		countryCode: countryCode,
		logger:      logger,
	}
}

// SendSMS returns when the message is accepted, the API call fails, or ctx
// ends, whichever comes first.
func (t *TwilioSender) SendSMS(ctx context.Context, to, body string) error {
	to = toE164(t.countryCode, to)

	// If credentials are not configured, log instead of sending
	if t.fromNumber == "" {
		t.logger.Warn("twilio not configured, sms not sent", zap.String("to", pii.MaskPhone(to)))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.fromNumber)
	params.SetBody(body)

	type result struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	// The Twilio client has no context-aware call; the HTTP timeout bounds
	// the request once ctx is abandoned.
	done := make(chan result, 1)
	go func() {
		msg, err := t.messages.CreateMessage(params)
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("failed to send SMS: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to send SMS: %w", res.err)
		}
		if res.msg != nil && res.msg.Sid != nil {
			t.logger.Info("sms sent", zap.String("sid", *res.msg.Sid), zap.String("to", pii.MaskPhone(to)))
		}
		return nil
	}
}

// toE164 prefixes a bare national number with the country code
func toE164(countryCode, number string) string {
	number = strings.TrimSpace(number)
	if strings.HasPrefix(number, "+") || countryCode == "" {
		return number
	}
	if !strings.HasPrefix(countryCode, "+") {
		countryCode = "+" + countryCode
	}
	return countryCode + number
}
