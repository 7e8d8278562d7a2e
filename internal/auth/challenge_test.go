package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/identity/internal/model"
)

var (
	mobileSecret = []byte("mobile-otp-secret")
	emailSecret  = []byte("email-otp-secret")

	mobileTarget = ChallengeTarget{ChannelID: "9998887777"}
	emailTarget  = ChallengeTarget{ChannelID: "user@example.com", Mobile: "9998887777"}
)

func newTestEncoder(t *testing.T, now time.Time) *ChallengeEncoder {
	t.Helper()
	e := NewChallengeEncoder(newTestCipher(t))
	e.now = func() time.Time { return now }
	return e
}

func TestChallenge_issueVerifyRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := newTestEncoder(t, now)

	token, expiresAt, err := e.Issue("mobile", model.ChannelMobile, mobileTarget, "482913", mobileSecret, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(5*time.Minute), expiresAt)

	otp, claims, err := e.Verify(token, mobileSecret)
	require.NoError(t, err)
	assert.Equal(t, "482913", otp)
	assert.Equal(t, "mobile", claims.Action)
	assert.Equal(t, model.ChannelMobile, claims.DeviceID)
	assert.Equal(t, mobileTarget, claims.Target())
	assert.Equal(t, expiresAt, claims.ExpiresAt.Time.UTC())
}

func TestChallenge_emailTargetCarriesAnchoringMobile(t *testing.T) {
	e := newTestEncoder(t, time.Now())

	token, _, err := e.Issue("email", model.ChannelEmail, emailTarget, "111222", emailSecret, time.Minute)
	require.NoError(t, err)

	_, claims, err := e.Verify(token, emailSecret)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", claims.ChannelID)
	assert.Equal(t, "9998887777", claims.Mobile)
}

func TestChallenge_emptyTarget(t *testing.T) {
	e := newTestEncoder(t, time.Now())
	_, _, err := e.Issue("mobile", model.ChannelMobile, ChallengeTarget{}, "482913", mobileSecret, time.Minute)
	assert.Error(t, err)
}

func TestChallenge_expiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e := newTestEncoder(t, now)

	token, _, err := e.Issue("email", model.ChannelEmail, emailTarget, "111222", emailSecret, 5*time.Minute)
	require.NoError(t, err)

	e.now = func() time.Time { return now.Add(4*time.Minute + 59*time.Second) }
	_, _, err = e.Verify(token, emailSecret)
	require.NoError(t, err)

	e.now = func() time.Time { return now.Add(5*time.Minute + time.Second) }
	_, _, err = e.Verify(token, emailSecret)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
}

func TestChallenge_wrongChannelSecret(t *testing.T) {
	e := newTestEncoder(t, time.Now())

	token, _, err := e.Issue("mobile", model.ChannelMobile, mobileTarget, "482913", mobileSecret, time.Minute)
	require.NoError(t, err)

	_, _, err = e.Verify(token, emailSecret)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
}

func TestChallenge_malformedAndTampered(t *testing.T) {
	e := newTestEncoder(t, time.Now())

	token, _, err := e.Issue("mobile", model.ChannelMobile, mobileTarget, "482913", mobileSecret, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	for _, bad := range []string{"", "not-a-token", "a.b.c", tampered} {
		_, _, err := e.Verify(bad, mobileSecret)
		assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge, bad)
	}
}

func TestChallenge_otpIsNotReadableFromClaims(t *testing.T) {
	e := newTestEncoder(t, time.Now())

	token, _, err := e.Issue("mobile", model.ChannelMobile, mobileTarget, "482913", mobileSecret, time.Minute)
	require.NoError(t, err)

	claims := &ChallengeClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	assert.NotContains(t, claims.OTP, "482913")
	assert.Contains(t, claims.OTP, ":")
	assert.NotContains(t, token, "482913")
}

func TestChallenge_requiresExpiry(t *testing.T) {
	e := newTestEncoder(t, time.Now())

	encrypted, err := e.cipher.Encrypt("482913")
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &ChallengeClaims{
		Action: "mobile", DeviceID: model.ChannelMobile, OTP: encrypted,
	}).SignedString(mobileSecret)
	require.NoError(t, err)

	_, _, err = e.Verify(noExp, mobileSecret)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
}

func TestChallenge_undecryptableOTP(t *testing.T) {
	e := newTestEncoder(t, time.Now())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &ChallengeClaims{
		Action: "mobile", DeviceID: model.ChannelMobile, OTP: "482913",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	}).SignedString(mobileSecret)
	require.NoError(t, err)

	_, _, err = e.Verify(token, mobileSecret)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredChallenge)
}

func TestChallenge_emptySecret(t *testing.T) {
	e := newTestEncoder(t, time.Now())
	_, _, err := e.Issue("mobile", model.ChannelMobile, mobileTarget, "482913", nil, time.Minute)
	assert.Error(t, err)
}
