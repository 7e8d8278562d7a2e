package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storefront/identity/internal/auth"
	"github.com/storefront/identity/internal/config"
	"github.com/storefront/identity/internal/db"
	httphandler "github.com/storefront/identity/internal/http"
	"github.com/storefront/identity/internal/http/handlers"
	"github.com/storefront/identity/internal/middleware"
	"github.com/storefront/identity/internal/notify"
	"github.com/storefront/identity/internal/oauth"
	"github.com/storefront/identity/internal/repo"
	"github.com/storefront/identity/internal/repo/memrepo"
)

func main() {
	// Env vars already set take precedence over .env
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg, database, logger)
	if err != nil {
		logger.Fatal("failed to set up session store", zap.Error(err))
	}
	defer closeSessions()

	keys, err := auth.NewKeyStore(cfg.JWTSecret, cfg.JWTSecretMobile, cfg.JWTSecretEmail)
	if err != nil {
		logger.Fatal("invalid signing secrets", zap.Error(err))
	}
	cipher, err := auth.NewCipher(cfg.EncryptKey)
	if err != nil {
		logger.Fatal("invalid encryption key", zap.Error(err))
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.Fatal("failed to parse email templates", zap.Error(err))
	}
	dispatcher, err := newDispatcher(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up notifications", zap.Error(err))
	}

	authService := auth.NewAuthService(
		repo.NewAccountRepo(database),
		sessions,
		keys,
		auth.NewChallengeEncoder(cipher),
		auth.NewTokenIssuer(keys, cfg.AccessTokenTTL),
		dispatcher,
		renderer,
		logger,
		auth.Options{
			OTPTTL:  cfg.OTPTokenTTL,
			AppName: cfg.AppName,
			Verifiers: map[string]auth.IdentityVerifier{
				"google": oauth.NewVerifier(oauth.Google(cfg.GoogleClientIDs), nil),
				"apple":  oauth.NewVerifier(oauth.Apple(cfg.AppleClientID), nil),
			},
		},
	)

	limiter := middleware.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitPoints)
	defer limiter.Stop()

	router := httphandler.NewRouter(
		handlers.NewAccountHandler(authService, logger),
		handlers.NewHealthHandler(database),
		authService,
		limiter,
		cfg.TrustedProxies,
		logger,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Environment), zap.String("session_store", cfg.SessionStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	// Let in-flight OTP and welcome messages finish before exiting
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("pending notifications abandoned", zap.Error(err))
	}

	logger.Info("server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newSessionStore(ctx context.Context, cfg *config.Config, database *sql.DB, logger *zap.Logger) (repo.SessionRepo, func(), error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Info("sessions stored in redis", zap.String("addr", cfg.RedisAddr))
		return repo.NewRedisSessionRepo(client), func() { client.Close() }, nil
	case config.SessionStoreMemory:
		logger.Warn("sessions stored in memory; they are lost on restart")
		return memrepo.NewSessions(), func() {}, nil
	default:
		return repo.NewSessionRepo(database), func() {}, nil
	}
}

func newDispatcher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*notify.Dispatcher, error) {
	sms := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, cfg.SMSCountryCode, logger)

	var email notify.EmailSender = notify.NewLogSender(logger)
	if cfg.AWSRegion != "" && cfg.EmailFrom != "" {
		client, err := notify.NewSESClient(ctx, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
		if err != nil {
			return nil, err
		}
		email = notify.NewSESSender(client, cfg.EmailFrom)
	} else {
		logger.Warn("AWS_REGION or EMAIL_FROM not set; emails are logged, not sent")
	}

	return notify.NewDispatcher(sms, email, cfg.AppName, logger), nil
}
