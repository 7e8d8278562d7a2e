package config

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session store backends
const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	DatabaseURL string
	Port        string
	Environment string
	AppName     string

	JWTSecret       string
	JWTSecretMobile string
	JWTSecretEmail  string
	EncryptKey      []byte
	AccessTokenTTL  time.Duration
	OTPTokenTTL     time.Duration

	GoogleClientIDs []string
	AppleClientID   string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSCountryCode   string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	EmailFrom          string

	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimitPoints int
	RateLimitWindow time.Duration
	TrustedProxies  []netip.Prefix
}

// IsDevelopment reports whether APP_ENV is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           env("PORT", "8080"),
		Environment:    env("APP_ENV", "development"),
		AppName:        env("APP_NAME", "E-Commerce"),
		SMSCountryCode: env("SMS_COUNTRY_CODE", "+91"),
		SessionStore:   strings.ToLower(env("SESSION_STORE", SessionStorePostgres)),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	var err error
	if cfg.JWTSecret, err = required("JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.JWTSecretMobile, err = required("JWT_SECRET_MOBILE"); err != nil {
		return nil, err
	}
	if cfg.JWTSecretEmail, err = required("JWT_SECRET_EMAIL"); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == cfg.JWTSecretMobile || cfg.JWTSecret == cfg.JWTSecretEmail || cfg.JWTSecretMobile == cfg.JWTSecretEmail {
		return nil, fmt.Errorf("JWT_SECRET, JWT_SECRET_MOBILE and JWT_SECRET_EMAIL must be distinct")
	}

	keyHex, err := required("ENCRYPT_TEXT_SECRET_KEY")
	if err != nil {
		return nil, err
	}
	cfg.EncryptKey, err = hex.DecodeString(keyHex)
	if err != nil || len(cfg.EncryptKey) != 32 {
		return nil, fmt.Errorf("ENCRYPT_TEXT_SECRET_KEY must be 64 hex characters (32 bytes)")
	}

	accessMinutes, err := intEnv("JWT_EXPIRY", 60)
	if err != nil {
		return nil, err
	}
	otpMinutes, err := intEnv("JWT_OTP_EXPIRY_TIME", 5)
	if err != nil {
		return nil, err
	}
	if accessMinutes <= 0 || otpMinutes <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRY and JWT_OTP_EXPIRY_TIME must be positive")
	}
	cfg.AccessTokenTTL = time.Duration(accessMinutes) * time.Minute
	cfg.OTPTokenTTL = time.Duration(otpMinutes) * time.Minute

	cfg.GoogleClientIDs = splitList(os.Getenv("GOOGLE_CLIENT_IDS"))
	cfg.AppleClientID = strings.TrimSpace(os.Getenv("APPLE_CLIENT_ID"))

	cfg.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.TwilioFromNumber = os.Getenv("TWILIO_PHONE_NUMBER")

	cfg.AWSRegion = os.Getenv("AWS_REGION")
	cfg.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.AWSSecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")

	switch cfg.SessionStore {
	case SessionStorePostgres, SessionStoreMemory:
	case SessionStoreRedis:
		cfg.RedisAddr = env("REDIS_ADDR", "localhost:6379")
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
		if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("SESSION_STORE must be one of postgres, redis, memory; got %q", cfg.SessionStore)
	}

	if cfg.RateLimitPoints, err = intEnv("RATE_LIMIT_POINTS", 5); err != nil {
		return nil, err
	}
	windowSeconds, err := intEnv("RATE_LIMIT_DURATION", 500)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitPoints <= 0 || windowSeconds <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_POINTS and RATE_LIMIT_DURATION must be positive")
	}
	cfg.RateLimitWindow = time.Duration(windowSeconds) * time.Second

	if cfg.TrustedProxies, err = parseProxies(os.Getenv("TRUSTED_PROXIES")); err != nil {
		return nil, err
	}

	return cfg, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func required(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return v, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseProxies accepts a comma list of CIDRs or bare addresses
func parseProxies(v string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, part := range splitList(v) {
		if p, err := netip.ParsePrefix(part); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("TRUSTED_PROXIES: invalid address or CIDR %q", part)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
