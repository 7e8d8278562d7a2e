package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestToE164(t *testing.T) {
	assert.Equal(t, "+919998887777", toE164("+91", "9998887777"))
	assert.Equal(t, "+919998887777", toE164("91", "9998887777"))
	assert.Equal(t, "+14155550100", toE164("+91", "+14155550100"))
	assert.Equal(t, "9998887777", toE164("", "9998887777"))
}

func TestTwilioSender_unconfiguredLogsInsteadOfSending(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewTwilioSender("", "", "", "+91", zap.New(core))

	require.NoError(t, s.SendSMS(context.Background(), "9998887777", "code 123456"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "+9*********77", entries[0].ContextMap()["to"])
	assert.NotContains(t, entries[0].Message, "123456")
}

type blockingMessages struct {
	release chan struct{}
	calls   chan *twilioApi.CreateMessageParams
}

func (b *blockingMessages) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	b.calls <- params
	<-b.release
	sid := "SM123"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender_respectsContextDeadline(t *testing.T) {
	msgs := &blockingMessages{release: make(chan struct{}), calls: make(chan *twilioApi.CreateMessageParams, 1)}
	defer close(msgs.release)
	s := NewTwilioSender("AC123", "token", "+15005550006", "+91", nil)
	s.messages = msgs

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.SendSMS(ctx, "9998887777", "code 123456")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	params := <-msgs.calls
	require.NotNil(t, params.To)
	assert.Equal(t, "+919998887777", *params.To)
}

type stubMessages struct {
	err error
}

func (s stubMessages) CreateMessage(*twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	sid := "SM456"
	return &twilioApi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender_resultOfCall(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewTwilioSender("AC123", "token", "+15005550006", "+91", zap.New(core))

	s.messages = stubMessages{}
	require.NoError(t, s.SendSMS(context.Background(), "9998887777", "code 123456"))
	require.Equal(t, 1, logs.FilterMessage("sms sent").Len())

	s.messages = stubMessages{err: errors.New("20003 authenticate")}
	err := s.SendSMS(context.Background(), "9998887777", "code 123456")
	assert.ErrorContains(t, err, "20003")
}
