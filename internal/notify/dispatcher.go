// Package notify delivers OTPs and account emails out of band. Delivery is
// at-most-once and best effort: every send runs in its own goroutine and a
// failure is logged, never returned to the request that triggered it.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/identity/internal/pii"
)

const defaultSendTimeout = 15 * time.Second

// SMSSender sends one text message
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// EmailSender sends one HTML email
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) error
}

// Dispatcher fans messages out to background goroutines
type Dispatcher struct {
	sms     SMSSender
	email   EmailSender
	appName string
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Email subjects get " - appName" appended.
func NewDispatcher(sms SMSSender, email EmailSender, appName string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sms:     sms,
		email:   email,
		appName: appName,
		timeout: defaultSendTimeout,
		logger:  logger,
	}
}

func (d *Dispatcher) SendEmail(to, subject, html string) {
	if d.appName != "" {
		subject = subject + " - " + d.appName
	}
	d.goSend("email", zap.String("to", pii.MaskEmail(to)), func(ctx context.Context) error {
		return d.email.SendEmail(ctx, to, subject, html)
	})
}

func (d *Dispatcher) SendSMS(to, body string) {
	d.goSend("sms", zap.String("to", pii.MaskPhone(to)), func(ctx context.Context) error {
		return d.sms.SendSMS(ctx, to, body)
	})
}

func (d *Dispatcher) goSend(kind string, to zap.Field, send func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			d.logger.Error("notification failed", zap.String("kind", kind), to, zap.Error(err))
			return
		}
		d.logger.Debug("notification sent", zap.String("kind", kind), to)
	}()
}

// Wait blocks until in-flight sends finish or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
