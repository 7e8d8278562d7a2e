package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/identity/internal/model"
	"github.com/storefront/identity/internal/oauth"
	"github.com/storefront/identity/internal/repo"
	"github.com/storefront/identity/internal/repo/memrepo"
)

const (
	testMobile = "9998887777"
	testEmail  = "user@example.com"
)

type sentMessage struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu     sync.Mutex
	emails []sentMessage
	sms    []sentMessage
}

func (n *fakeNotifier) SendEmail(to, subject, html string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emails = append(n.emails, sentMessage{to: to, subject: subject, body: html})
}

func (n *fakeNotifier) SendSMS(to, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sms = append(n.sms, sentMessage{to: to, body: body})
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.emails) + len(n.sms)
}

func (n *fakeNotifier) lastSMSCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sms, "no sms sent")
	body := n.sms[len(n.sms)-1].body
	return body[len(body)-otpLength:]
}

func (n *fakeNotifier) lastEmail(t *testing.T) sentMessage {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.emails, "no email sent")
	return n.emails[len(n.emails)-1]
}

// fakeRenderer renders "<template>|<OTP>|<Name>"
type fakeRenderer struct{}

func (fakeRenderer) Render(name string, data any) (string, error) {
	m, _ := data.(map[string]any)
	return fmt.Sprintf("%s|%v|%v", name, m["OTP"], m["Name"]), nil
}

type fakeVerifier struct {
	claims *oauth.Claims
	err    error
}

func (v *fakeVerifier) Verify(context.Context, string) (*oauth.Claims, error) {
	return v.claims, v.err
}

type serviceEnv struct {
	svc      *AuthService
	accounts *memrepo.Accounts
	sessions *memrepo.Sessions
	notifier *fakeNotifier
	google   *fakeVerifier
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	keys := newTestKeys(t)
	env := &serviceEnv{
		accounts: memrepo.NewAccounts(),
		sessions: memrepo.NewSessions(),
		notifier: &fakeNotifier{},
		google:   &fakeVerifier{},
	}
	env.svc = NewAuthService(
		env.accounts,
		env.sessions,
		keys,
		NewChallengeEncoder(newTestCipher(t)),
		NewTokenIssuer(keys, time.Hour),
		env.notifier,
		fakeRenderer{},
		nil,
		Options{
			OTPTTL:    5 * time.Minute,
			AppName:   "Storefront",
			Verifiers: map[string]IdentityVerifier{"google": env.google},
		},
	)
	return env
}

// verifiedMobile runs the mobile OTP flow end to end
func (e *serviceEnv) verifiedMobile(t *testing.T, mobile string) *Session {
	t.Helper()
	ctx := context.Background()
	ch, err := e.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: mobile})
	require.NoError(t, err)
	s, err := e.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelMobile, Mobile: mobile, OTP: e.notifier.lastSMSCode(t), Token: ch.Token,
	})
	require.NoError(t, err)
	return s
}

func strPtr(s string) *string { return &s }

func TestMobileOTP_newNumberCreatesVerifiedAccount(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: testMobile})
	require.NoError(t, err)
	assert.NotEmpty(t, ch.Token)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), ch.ExpiresAt, 2*time.Second)

	require.Len(t, env.notifier.sms, 1)
	assert.Equal(t, testMobile, env.notifier.sms[0].to)
	code := env.notifier.lastSMSCode(t)
	assert.NotContains(t, ch.Token, code)

	s, err := env.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelMobile, Mobile: testMobile, OTP: code, Token: ch.Token,
	})
	require.NoError(t, err)
	assert.NotZero(t, s.Account.ID)
	assert.Equal(t, testMobile, s.Account.MobileValue())
	assert.True(t, s.Account.IsMobileVerified)
	assert.False(t, s.Account.IsEmailVerified)
	assert.Nil(t, s.Account.PasswordHash)
	require.NotNil(t, s.Tokens)
	assert.NotNil(t, s.Account.LastLoggedInAt)

	marker, err := env.sessions.Token(ctx, s.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Tokens.AccessToken, marker)
}

func TestEmailOTP_afterMobileAttachesEmail(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	mobile := env.verifiedMobile(t, testMobile)

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail})
	require.NoError(t, err)

	sent := env.notifier.lastEmail(t)
	assert.Equal(t, testEmail, sent.to)
	assert.Equal(t, "Your OTP Code", sent.subject)
	parts := strings.Split(sent.body, "|")
	require.Len(t, parts, 3)
	assert.Equal(t, TemplateOTPEmail, parts[0])

	s, err := env.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail, OTP: parts[1], Token: ch.Token,
	})
	require.NoError(t, err)
	assert.Equal(t, mobile.Account.ID, s.Account.ID)
	assert.Equal(t, testEmail, s.Account.EmailValue())
	assert.True(t, s.Account.IsEmailVerified)
	assert.True(t, s.Account.IsMobileVerified)
	assert.Nil(t, s.Tokens)

	stored, err := env.accounts.GetByID(ctx, s.Account.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmailVerified)
}

func TestEmailOTP_beforeMobileVerification(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	_, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail})
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	env.accounts.Put(model.Account{Mobile: strPtr(testMobile), Role: model.RoleUser, IsActive: true})
	_, err = env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail})
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	assert.Zero(t, env.notifier.count())
}

func TestRequestOTP_alreadyVerifiedIsConflictWithoutDispatch(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	env.accounts.Put(model.Account{
		Mobile: strPtr(testMobile), Email: strPtr(testEmail), Role: model.RoleUser,
		IsMobileVerified: true, IsEmailVerified: true, IsActive: true,
	})
	env.accounts.Put(model.Account{Mobile: strPtr("8887776666"), Role: model.RoleUser, IsMobileVerified: true, IsActive: true})

	_, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: testMobile})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelEmail, Mobile: "8887776666", Email: testEmail})
	assert.ErrorIs(t, err, ErrConflict)

	assert.Zero(t, env.notifier.count())
}

func TestRequestOTP_validation(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	for _, req := range []OTPRequest{
		{Action: "fax", Mobile: testMobile},
		{Action: model.ChannelMobile},
		{Action: model.ChannelMobile, Mobile: "12345"},
		{Action: model.ChannelEmail, Mobile: testMobile},
		{Action: model.ChannelEmail, Email: testEmail},
	} {
		_, err := env.svc.RequestOTP(ctx, req)
		assert.ErrorIs(t, err, ErrValidation, "%+v", req)
	}
	assert.Zero(t, env.notifier.count())
}

func TestVerifyOTP_incorrectOtpLeavesStateUnchanged(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: testMobile})
	require.NoError(t, err)
	code := env.notifier.lastSMSCode(t)
	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}

	_, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{Action: model.ChannelMobile, Mobile: testMobile, OTP: wrong, Token: ch.Token})
	assert.ErrorIs(t, err, ErrIncorrectOtp)

	_, err = env.accounts.FindByMobile(ctx, testMobile)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Zero(t, env.sessions.Len())
}

func TestVerifyOTP_expiredOrForeignChallenge(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: testMobile})
	require.NoError(t, err)
	code := env.notifier.lastSMSCode(t)

	// mobile challenge presented on the email channel
	_, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail, OTP: code, Token: ch.Token,
	})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	env.svc.challenges.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	_, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{Action: model.ChannelMobile, Mobile: testMobile, OTP: code, Token: ch.Token})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)

	_, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{Action: model.ChannelMobile, Mobile: testMobile, OTP: code, Token: "garbage"})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
}

func TestVerifyOTP_mobileChallengeIsBoundToNumber(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	const other = "9876543210"
	victim := env.accounts.Put(model.Account{Mobile: strPtr(other), Role: model.RoleUser, IsMobileVerified: true, IsActive: true})

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: testMobile})
	require.NoError(t, err)
	code := env.notifier.lastSMSCode(t)

	s, err := env.svc.VerifyOTP(ctx, VerifyOTPRequest{Action: model.ChannelMobile, Mobile: other, OTP: code, Token: ch.Token})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
	assert.Nil(t, s)
	assert.Zero(t, env.sessions.Len())
	ok, err := env.sessions.Exists(ctx, victim.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// the challenge still works for the number it was sent to
	s, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{Action: model.ChannelMobile, Mobile: testMobile, OTP: code, Token: ch.Token})
	require.NoError(t, err)
	assert.NotEqual(t, victim.ID, s.Account.ID)
	assert.Equal(t, testMobile, s.Account.MobileValue())
}

func TestVerifyOTP_emailChallengeIsBoundToAddressAndMobile(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	const (
		otherMobile = "9876543210"
		otherEmail  = "owner@example.com"
	)
	own := env.verifiedMobile(t, testMobile)
	other := env.accounts.Put(model.Account{Mobile: strPtr(otherMobile), Role: model.RoleUser, IsMobileVerified: true, IsActive: true})

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail})
	require.NoError(t, err)
	code := strings.Split(env.notifier.lastEmail(t).body, "|")[1]

	tests := []struct {
		name          string
		mobile, email string
	}{
		{name: "different address", mobile: testMobile, email: otherEmail},
		{name: "different anchoring mobile", mobile: otherMobile, email: testEmail},
		{name: "both different", mobile: otherMobile, email: otherEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.VerifyOTP(ctx, VerifyOTPRequest{
				Action: model.ChannelEmail, Mobile: tt.mobile, Email: tt.email, OTP: code, Token: ch.Token,
			})
			assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
		})
	}

	_, err = env.accounts.FindByEmail(ctx, otherEmail)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	stored, err := env.accounts.GetByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Email)
	assert.False(t, stored.IsEmailVerified)

	s, err := env.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail, OTP: code, Token: ch.Token,
	})
	require.NoError(t, err)
	assert.Equal(t, own.Account.ID, s.Account.ID)
	assert.True(t, s.Account.IsEmailVerified)
}

func TestVerifyOTP_disabledAccount(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	env.accounts.Put(model.Account{Mobile: strPtr(testMobile), Role: model.RoleUser, IsMobileVerified: true})

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: testMobile})
	require.NoError(t, err)

	_, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelMobile, Mobile: testMobile, OTP: env.notifier.lastSMSCode(t), Token: ch.Token,
	})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestVerifyOTP_emailHeldByAnotherAccount(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	env.verifiedMobile(t, testMobile)

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail})
	require.NoError(t, err)
	code := strings.Split(env.notifier.lastEmail(t).body, "|")[1]

	// another account claims the email, unverified, before the OTP comes back
	env.accounts.Put(model.Account{Email: strPtr(testEmail), Role: model.RoleUser, IsActive: true})

	_, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelEmail, Mobile: testMobile, Email: testEmail, OTP: code, Token: ch.Token,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

type racingAccounts struct {
	*memrepo.Accounts
}

func (racingAccounts) Create(context.Context, *model.Account) error {
	return repo.ErrConflict
}

func TestVerifyOTP_uniqueViolationIsConflict(t *testing.T) {
	env := newServiceEnv(t)
	env.svc.accounts = racingAccounts{env.accounts}
	ctx := context.Background()

	ch, err := env.svc.RequestOTP(ctx, OTPRequest{Action: model.ChannelMobile, Mobile: testMobile})
	require.NoError(t, err)

	_, err = env.svc.VerifyOTP(ctx, VerifyOTPRequest{
		Action: model.ChannelMobile, Mobile: testMobile, OTP: env.notifier.lastSMSCode(t), Token: ch.Token,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func validSignup() SignupRequest {
	return SignupRequest{Name: "Asha", Email: testEmail, Mobile: testMobile, Password: "Str0ng!Pass12"}
}

func TestSignup(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	s, err := env.svc.Signup(ctx, validSignup())
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, s.Account.Role)
	assert.True(t, s.Account.IsEmailVerified)
	assert.True(t, s.Account.IsMobileVerified)
	require.NotNil(t, s.Tokens)
	require.NotNil(t, s.Account.PasswordHash)
	assert.True(t, CheckPassword(*s.Account.PasswordHash, "Str0ng!Pass12"))

	sent := env.notifier.lastEmail(t)
	assert.Equal(t, testEmail, sent.to)
	assert.True(t, strings.HasPrefix(sent.body, TemplateRegister+"|"))

	_, err = env.svc.Signup(ctx, validSignup())
	assert.ErrorIs(t, err, ErrConflict)

	other := validSignup()
	other.Email = "other@example.com"
	_, err = env.svc.Signup(ctx, other)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSignup_validationBeforeSideEffects(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	bad := []func(*SignupRequest){
		func(r *SignupRequest) { r.Name = "A" },
		func(r *SignupRequest) { r.Email = "nope" },
		func(r *SignupRequest) { r.Mobile = "123" },
		func(r *SignupRequest) { r.Password = "weak" },
		func(r *SignupRequest) { r.Role = "root" },
	}
	for _, mutate := range bad {
		req := validSignup()
		mutate(&req)
		_, err := env.svc.Signup(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Zero(t, env.notifier.count())
	assert.Zero(t, env.sessions.Len())
}

func TestLogin(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	_, err := env.svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	s, err := env.svc.Login(ctx, LoginRequest{Email: "USER@example.com", Password: "Str0ng!Pass12"})
	require.NoError(t, err)
	assert.NotNil(t, s.Tokens)

	s, err = env.svc.Login(ctx, LoginRequest{Mobile: testMobile, Password: "Str0ng!Pass12"})
	require.NoError(t, err)
	assert.NotNil(t, s.Tokens)

	_, err = env.svc.Login(ctx, LoginRequest{Email: testEmail, Password: "Wrong!Pass12"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "Str0ng!Pass12"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.svc.Login(ctx, LoginRequest{Password: "Str0ng!Pass12"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin_disabledAndPasswordless(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	hash, err := HashPassword("Str0ng!Pass12")
	require.NoError(t, err)
	env.accounts.Put(model.Account{Email: strPtr(testEmail), PasswordHash: &hash, Role: model.RoleUser})
	env.accounts.Put(model.Account{Email: strPtr("oauth@example.com"), Role: model.RoleUser, IsActive: true})

	_, err = env.svc.Login(ctx, LoginRequest{Email: testEmail, Password: "Str0ng!Pass12"})
	assert.ErrorIs(t, err, ErrAccountDisabled)

	_, err = env.svc.Login(ctx, LoginRequest{Email: "oauth@example.com", Password: "anything"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestOAuthLogin_newEmailCreatesVerifiedAccount(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	env.google.claims = &oauth.Claims{Provider: "google", Subject: "g-1", Email: "new@example.com", EmailVerified: true, Name: "New User"}

	s, err := env.svc.OAuthLogin(ctx, "google", "id-token")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", s.Account.EmailValue())
	assert.Equal(t, "New User", s.Account.Name)
	assert.True(t, s.Account.IsEmailVerified)
	assert.False(t, s.Account.IsMobileVerified)
	require.NotNil(t, s.Tokens)

	welcome := env.notifier.lastEmail(t)
	assert.Equal(t, "new@example.com", welcome.to)
	assert.True(t, strings.HasPrefix(welcome.body, TemplateWelcome+"|"))

	// second login reuses the account and sends nothing new
	again, err := env.svc.OAuthLogin(ctx, "google", "id-token")
	require.NoError(t, err)
	assert.Equal(t, s.Account.ID, again.Account.ID)
	assert.Equal(t, 1, env.notifier.count())
}

func TestOAuthLogin_failures(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()

	env.google.err = errors.New("bad signature")
	_, err := env.svc.OAuthLogin(ctx, "google", "id-token")
	assert.ErrorIs(t, err, ErrInvalidExternalToken)

	env.google.err = nil
	env.google.claims = &oauth.Claims{Email: "x@example.com", EmailVerified: false}
	_, err = env.svc.OAuthLogin(ctx, "google", "id-token")
	assert.ErrorIs(t, err, ErrInvalidExternalToken)

	_, err = env.svc.OAuthLogin(ctx, "myspace", "id-token")
	assert.ErrorIs(t, err, ErrValidation)

	env.accounts.Put(model.Account{Email: strPtr("off@example.com"), Role: model.RoleUser, IsEmailVerified: true})
	env.google.claims = &oauth.Claims{Email: "off@example.com", EmailVerified: true}
	_, err = env.svc.OAuthLogin(ctx, "google", "id-token")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestSessionMarker_latestTokenWins(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	first, err := env.svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	claims, err := env.svc.Authenticate(ctx, first.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, first.Account.ID, claims.UserID)

	second, err := env.svc.Login(ctx, LoginRequest{Email: testEmail, Password: "Str0ng!Pass12"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.sessions.Len())

	marker, err := env.sessions.Token(ctx, first.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, second.Tokens.AccessToken, marker)

	_, err = env.svc.Authenticate(ctx, first.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.svc.Authenticate(ctx, second.Tokens.AccessToken)
	assert.NoError(t, err)
}

func TestLogoutAndRevoke(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	s, err := env.svc.Signup(ctx, validSignup())
	require.NoError(t, err)

	require.NoError(t, env.svc.Logout(ctx, s.Account.ID))
	_, err = env.svc.Authenticate(ctx, s.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.svc.Refresh(ctx, s.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	s, err = env.svc.Login(ctx, LoginRequest{Mobile: testMobile, Password: "Str0ng!Pass12"})
	require.NoError(t, err)
	require.NoError(t, env.svc.RevokeSession(ctx, s.Account.ID))
	_, err = env.svc.Authenticate(ctx, s.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.ErrorIs(t, env.svc.RevokeSession(ctx, 999), ErrNotFound)
}

func TestRefresh(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	s := env.verifiedMobile(t, testMobile)

	next, err := env.svc.Refresh(ctx, s.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.Tokens.AccessToken, next.Tokens.AccessToken)

	_, err = env.svc.Authenticate(ctx, next.Tokens.AccessToken)
	assert.NoError(t, err)
	_, err = env.svc.Authenticate(ctx, s.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.svc.Refresh(ctx, next.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMe(t *testing.T) {
	env := newServiceEnv(t)
	ctx := context.Background()
	s := env.verifiedMobile(t, testMobile)

	a, err := env.svc.Me(ctx, s.Account.ID)
	require.NoError(t, err)
	assert.Equal(t, testMobile, a.MobileValue())

	_, err = env.svc.Me(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
