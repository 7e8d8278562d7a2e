package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/identity/internal/model"
	"github.com/storefront/identity/internal/oauth"
	"github.com/storefront/identity/internal/pii"
	"github.com/storefront/identity/internal/repo"
)

const (
	TemplateOTPEmail = "otp-email"
	TemplateRegister = "register"
	TemplateWelcome  = "welcome"
)

// Notifier delivers messages out of band. Both calls return immediately;
// delivery is best effort and failures never reach the caller.
type Notifier interface {
	SendEmail(to, subject, html string)
	SendSMS(to, body string)
}

// Renderer renders a named notification template to HTML
type Renderer interface {
	Render(name string, data any) (string, error)
}

// IdentityVerifier verifies an external provider's ID token
type IdentityVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oauth.Claims, error)
}

// Options carries the tunables of AuthService
type Options struct {
	OTPTTL    time.Duration
	AppName   string
	Verifiers map[string]IdentityVerifier
}

// AuthService orchestrates authentication operations
type AuthService struct {
	accounts   repo.AccountRepo
	sessions   repo.SessionRepo
	keys       *KeyStore
	challenges *ChallengeEncoder
	tokens     *TokenIssuer
	notifier   Notifier
	renderer   Renderer
	verifiers  map[string]IdentityVerifier
	otpTTL     time.Duration
	appName    string
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	accounts repo.AccountRepo,
	sessions repo.SessionRepo,
	keys *KeyStore,
	challenges *ChallengeEncoder,
	tokens *TokenIssuer,
	notifier Notifier,
	renderer Renderer,
	logger *zap.Logger,
	opts Options,
) *AuthService {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   accounts,
		sessions:   sessions,
		keys:       keys,
		challenges: challenges,
		tokens:     tokens,
		notifier:   notifier,
		renderer:   renderer,
		verifiers:  opts.Verifiers,
		otpTTL:     opts.OTPTTL,
		appName:    opts.AppName,
		logger:     logger,
		now:        time.Now,
	}
}

// OTPRequest asks for a challenge on one channel. Email challenges also need
// the mobile of the account the email will be attached to.
type OTPRequest struct {
	Action model.Channel
	Mobile string
	Email  string
}

// OTPChallenge is returned to the client; the OTP itself is only sent out of band
type OTPChallenge struct {
	Token     string
	ExpiresAt time.Time
}

// VerifyOTPRequest answers a challenge
type VerifyOTPRequest struct {
	Action model.Channel
	Mobile string
	Email  string
	OTP    string
	Token  string
}

// Session is an account together with freshly minted tokens. Tokens is nil
// when the operation did not start a session.
type Session struct {
	Account model.Account
	Tokens  *TokenPair
}

// SignupRequest creates an account with a password
type SignupRequest struct {
	Name     string
	Email    string
	Mobile   string
	Password string
	Role     model.Role
}

// LoginRequest identifies the account by email or mobile
type LoginRequest struct {
	Email    string
	Mobile   string
	Password string
}

// RequestOTP issues a challenge token and sends the OTP to the mobile or email.
// Identifiers that are already verified are rejected before anything is sent.
func (s *AuthService) RequestOTP(ctx context.Context, req OTPRequest) (*OTPChallenge, error) {
	var (
		mobile, email string
		err           error
	)
	switch req.Action {
	case model.ChannelMobile:
		if mobile, err = NormalizeMobile(req.Mobile); err != nil {
			return nil, err
		}
		taken, err := s.accounts.ExistsByMobile(ctx, mobile, true)
		if err != nil {
			return nil, fmt.Errorf("check mobile: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("%w: mobile is already verified", ErrConflict)
		}

	case model.ChannelEmail:
		if email, err = NormalizeEmail(req.Email); err != nil {
			return nil, err
		}
		if mobile, err = NormalizeMobile(req.Mobile); err != nil {
			return nil, err
		}
		if _, err := s.mobileVerifiedAccount(ctx, mobile); err != nil {
			return nil, err
		}
		taken, err := s.accounts.ExistsByEmail(ctx, email, true)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("%w: email is already verified", ErrConflict)
		}

	default:
		return nil, fmt.Errorf("%w: action must be mobile or email", ErrValidation)
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, err
	}
	secret, err := s.keys.ChannelSecret(req.Action)
	if err != nil {
		return nil, err
	}

	var html string
	if req.Action == model.ChannelEmail {
		html, err = s.renderer.Render(TemplateOTPEmail, map[string]any{"OTP": otp, "AppName": s.appName})
		if err != nil {
			return nil, fmt.Errorf("render otp email: %w", err)
		}
	}

	token, expiresAt, err := s.challenges.Issue(string(req.Action), req.Action, challengeTarget(req.Action, mobile, email), otp, secret, s.otpTTL)
	if err != nil {
		return nil, err
	}

	if req.Action == model.ChannelMobile {
		s.notifier.SendSMS(mobile, s.smsBody(otp))
		s.logger.Info("otp sent", zap.String("channel", "mobile"), zap.String("mobile", pii.MaskPhone(mobile)))
	} else {
		s.notifier.SendEmail(email, "Your OTP Code", html)
		s.logger.Info("otp sent", zap.String("channel", "email"), zap.String("email", pii.MaskEmail(email)))
	}

	return &OTPChallenge{Token: token, ExpiresAt: expiresAt}, nil
}

// VerifyOTP checks the presented OTP against the challenge token and advances
// the account's verification state. A verified mobile starts a session; a
// verified email is attached to the account owning the mobile.
func (s *AuthService) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (*Session, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: action must be mobile or email", ErrValidation)
	}
	mobile, err := NormalizeMobile(req.Mobile)
	if err != nil {
		return nil, err
	}
	var email string
	if req.Action == model.ChannelEmail {
		if email, err = NormalizeEmail(req.Email); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(req.Token) == "" || strings.TrimSpace(req.OTP) == "" {
		return nil, fmt.Errorf("%w: otp and token are required", ErrValidation)
	}

	secret, err := s.keys.ChannelSecret(req.Action)
	if err != nil {
		return nil, err
	}
	expected, claims, err := s.challenges.Verify(req.Token, secret)
	if err != nil {
		return nil, err
	}
	if claims.Action != string(req.Action) || claims.DeviceID != req.Action {
		return nil, fmt.Errorf("%w: challenge was issued for %s", ErrInvalidOrExpiredChallenge, claims.DeviceID)
	}
	if claims.Target() != challengeTarget(req.Action, mobile, email) {
		return nil, fmt.Errorf("%w: challenge was issued for a different recipient", ErrInvalidOrExpiredChallenge)
	}
	if !otpMatches(expected, req.OTP) {
		return nil, ErrIncorrectOtp
	}

	if req.Action == model.ChannelMobile {
		return s.verifyMobile(ctx, mobile)
	}
	return s.verifyEmail(ctx, mobile, email)
}

func (s *AuthService) verifyMobile(ctx context.Context, mobile string) (*Session, error) {
	account, err := s.accounts.FindByMobile(ctx, mobile)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		account = model.Account{
			Mobile:           &mobile,
			Role:             model.RoleUser,
			IsMobileVerified: true,
			IsActive:         true,
		}
		if err := s.accounts.Create(ctx, &account); err != nil {
			return nil, s.storeError("create account", err)
		}
		s.logger.Info("account created", zap.Int64("account_id", account.ID), zap.String("mobile", pii.MaskPhone(mobile)))

	case err != nil:
		return nil, fmt.Errorf("find account by mobile: %w", err)

	default:
		if !account.IsActive {
			return nil, ErrAccountDisabled
		}
		if !account.IsMobileVerified {
			account.IsMobileVerified = true
			if err := s.accounts.Update(ctx, &account); err != nil {
				return nil, s.storeError("update account", err)
			}
		}
	}

	return s.issueSession(ctx, account)
}

func (s *AuthService) verifyEmail(ctx context.Context, mobile, email string) (*Session, error) {
	account, err := s.mobileVerifiedAccount(ctx, mobile)
	if err != nil {
		return nil, err
	}

	holder, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil && holder.ID != account.ID:
		return nil, fmt.Errorf("%w: email belongs to another account", ErrConflict)
	case err != nil && !errors.Is(err, repo.ErrNotFound):
		return nil, fmt.Errorf("find account by email: %w", err)
	}

	account.Email = &email
	account.IsEmailVerified = true
	if err := s.accounts.Update(ctx, &account); err != nil {
		return nil, s.storeError("update account", err)
	}
	s.logger.Info("email verified", zap.Int64("account_id", account.ID), zap.String("email", pii.MaskEmail(email)))

	return &Session{Account: account}, nil
}

// mobileVerifiedAccount gates the email channel behind mobile verification
func (s *AuthService) mobileVerifiedAccount(ctx context.Context, mobile string) (model.Account, error) {
	account, err := s.accounts.FindByMobile(ctx, mobile)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Account{}, fmt.Errorf("%w: verify the mobile number first", ErrPreconditionFailed)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("find account by mobile: %w", err)
	}
	if !account.IsMobileVerified {
		return model.Account{}, fmt.Errorf("%w: verify the mobile number first", ErrPreconditionFailed)
	}
	if !account.IsActive {
		return model.Account{}, ErrAccountDisabled
	}
	return account, nil
}

// Signup creates a verified account with a password and starts a session
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	mobile, err := NormalizeMobile(req.Mobile)
	if err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if err := ValidatePassword(req.Password, email); err != nil {
		return nil, err
	}

	if taken, err := s.accounts.ExistsByEmail(ctx, email, false); err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	} else if taken {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	if taken, err := s.accounts.ExistsByMobile(ctx, mobile, false); err != nil {
		return nil, fmt.Errorf("check mobile: %w", err)
	} else if taken {
		return nil, fmt.Errorf("%w: mobile already registered", ErrConflict)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	account := model.Account{
		Name:             name,
		Email:            &email,
		Mobile:           &mobile,
		PasswordHash:     &hash,
		Role:             role,
		IsMobileVerified: true,
		IsEmailVerified:  true,
		IsActive:         true,
	}
	if err := s.accounts.Create(ctx, &account); err != nil {
		return nil, s.storeError("create account", err)
	}
	s.logger.Info("account registered", zap.Int64("account_id", account.ID), zap.String("email", pii.MaskEmail(email)))

	s.sendTemplate(email, "Successfully Registered", TemplateRegister, map[string]any{"Name": name, "AppName": s.appName})

	return s.issueSession(ctx, account)
}

// Login checks a password for the account identified by email or mobile
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	var (
		account model.Account
		err     error
	)
	switch {
	case strings.TrimSpace(req.Email) != "":
		email, verr := NormalizeEmail(req.Email)
		if verr != nil {
			return nil, verr
		}
		account, err = s.accounts.FindByEmail(ctx, email)
	case strings.TrimSpace(req.Mobile) != "":
		mobile, verr := NormalizeMobile(req.Mobile)
		if verr != nil {
			return nil, verr
		}
		account, err = s.accounts.FindByMobile(ctx, mobile)
	default:
		return nil, fmt.Errorf("%w: email or mobile is required", ErrValidation)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	if account.PasswordHash == nil || !CheckPassword(*account.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	return s.issueSession(ctx, account)
}

// OAuthLogin signs in with a provider ID token, creating the account on first
// use with its email already verified.
func (s *AuthService) OAuthLogin(ctx context.Context, provider, idToken string) (*Session, error) {
	verifier, ok := s.verifiers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrValidation, provider)
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("%w: idToken is required", ErrValidation)
	}

	claims, err := verifier.Verify(ctx, idToken)
	if err != nil {
		s.logger.Warn("external token rejected", zap.String("provider", provider), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidExternalToken, err)
	}
	if claims.Email == "" || !claims.EmailVerified {
		return nil, fmt.Errorf("%w: token carries no verified email", ErrInvalidExternalToken)
	}

	account, err := s.accounts.FindByEmail(ctx, claims.Email)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		email := claims.Email
		account = model.Account{
			Name:            claims.Name,
			Email:           &email,
			Role:            model.RoleUser,
			IsEmailVerified: true,
			IsActive:        true,
		}
		if err := s.accounts.Create(ctx, &account); err != nil {
			return nil, s.storeError("create account", err)
		}
		s.logger.Info("account created",
			zap.Int64("account_id", account.ID),
			zap.String("provider", provider),
			zap.String("email", pii.MaskEmail(email)),
		)
		s.sendTemplate(email, "Welcome", TemplateWelcome, map[string]any{"Name": claims.Name, "AppName": s.appName})

	case err != nil:
		return nil, fmt.Errorf("find account by email: %w", err)

	default:
		if !account.IsActive {
			return nil, ErrAccountDisabled
		}
		if !account.IsEmailVerified {
			account.IsEmailVerified = true
			if err := s.accounts.Update(ctx, &account); err != nil {
				return nil, s.storeError("update account", err)
			}
		}
	}

	return s.issueSession(ctx, account)
}

// Refresh exchanges a refresh token for a new pair. The account must still
// hold a session marker.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	exists, err := s.sessions.Exists(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
	}

	account, err := s.accounts.GetByID(ctx, claims.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if !account.IsActive {
		return nil, ErrAccountDisabled
	}

	return s.issueSession(ctx, account)
}

// Authenticate validates a bearer access token and requires it to be the
// account's current session token.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*TokenClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	current, err := s.sessions.Token(ctx, claims.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: logged out", ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if current != accessToken {
		return nil, fmt.Errorf("%w: session replaced", ErrUnauthorized)
	}
	return claims, nil
}

// Me returns the account behind an authenticated request
func (s *AuthService) Me(ctx context.Context, accountID int64) (*model.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// Logout deletes the caller's own session marker
func (s *AuthService) Logout(ctx context.Context, accountID int64) error {
	if err := s.sessions.Delete(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("logged out", zap.Int64("account_id", accountID))
	return nil
}

// RevokeSession deletes another account's session marker, invalidating its
// access token immediately.
func (s *AuthService) RevokeSession(ctx context.Context, accountID int64) error {
	if _, err := s.accounts.GetByID(ctx, accountID); errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if err := s.sessions.Delete(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info("session revoked", zap.Int64("account_id", accountID))
	return nil
}

// issueSession mints tokens, replaces the session marker with the new access
// token and records the login time.
func (s *AuthService) issueSession(ctx context.Context, account model.Account) (*Session, error) {
	pair, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Upsert(ctx, account.ID, pair.AccessToken); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.Int64("account_id", account.ID), zap.Error(err))
	} else {
		account.LastLoggedInAt = &now
	}

	return &Session{Account: account, Tokens: pair}, nil
}

// challengeTarget is the recipient a challenge is bound to. Email challenges
// carry the anchoring mobile as well.
func challengeTarget(action model.Channel, mobile, email string) ChallengeTarget {
	if action == model.ChannelEmail {
		return ChallengeTarget{ChannelID: email, Mobile: mobile}
	}
	return ChallengeTarget{ChannelID: mobile}
}

func (s *AuthService) sendTemplate(to, subject, name string, data map[string]any) {
	html, err := s.renderer.Render(name, data)
	if err != nil {
		s.logger.Error("failed to render email", zap.String("template", name), zap.Error(err))
		return
	}
	s.notifier.SendEmail(to, subject, html)
}

func (s *AuthService) smsBody(otp string) string {
	if s.appName == "" {
		return fmt.Sprintf("Your verification code is %s", otp)
	}
	return fmt.Sprintf("Your %s verification code is %s", s.appName, otp)
}

// storeError maps a unique violation from a racing writer to ErrConflict
func (s *AuthService) storeError(op string, err error) error {
	if errors.Is(err, repo.ErrConflict) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
