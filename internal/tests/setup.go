package tests

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"

	"github.com/storefront/identity/internal/db"
)

// RunMigrations applies the embedded goose migrations.
func RunMigrations(database *sql.DB) error {
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// TruncateAuthTables truncates account and session tables for a clean test state.
func TruncateAuthTables(ctx context.Context, database *sql.DB) error {
	if err := db.Truncate(ctx, database); err != nil {
		return fmt.Errorf("truncate auth tables: %w", err)
	}
	return nil
}

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

// CaptureNotifier records outgoing messages so tests can read the OTP a user
// would receive. It never delivers anything.
type CaptureNotifier struct {
	mu   sync.Mutex
	last map[string]string
	sent int
}

func NewCaptureNotifier() *CaptureNotifier {
	return &CaptureNotifier{last: make(map[string]string)}
}

func (c *CaptureNotifier) SendEmail(to, _, html string) {
	c.record(to, html)
}

func (c *CaptureNotifier) SendSMS(to, body string) {
	c.record(to, body)
}

func (c *CaptureNotifier) record(to, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent++
	if otp := otpPattern.FindString(content); otp != "" {
		c.last[to] = otp
	}
}

// OTP returns the last code sent to recipient, or "" if none
func (c *CaptureNotifier) OTP(recipient string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last[recipient]
}

// Sent returns the number of messages handed to the notifier
func (c *CaptureNotifier) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}
