package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/identity/internal/model"
)

func newTestKeys(t *testing.T) *KeyStore {
	t.Helper()
	keys, err := NewKeyStore("access-secret", string(mobileSecret), string(emailSecret))
	require.NoError(t, err)
	return keys
}

func TestTokenIssuer_issueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(newTestKeys(t), time.Hour)
	issuer.now = func() time.Time { return now }

	pair, err := issuer.Issue(42, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), pair.ExpiresAt)

	claims, err := issuer.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)

	refresh, err := issuer.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, int64(42), refresh.UserID)
	assert.Empty(t, refresh.Role)
	assert.Nil(t, refresh.ExpiresAt)
}

func TestTokenIssuer_tokenTypesAreNotInterchangeable(t *testing.T) {
	issuer := NewTokenIssuer(newTestKeys(t), time.Hour)
	pair, err := issuer.Issue(1, model.RoleUser)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = issuer.VerifyRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTokenIssuer_expiredAccessToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(newTestKeys(t), time.Minute)
	issuer.now = func() time.Time { return now }

	pair, err := issuer.Issue(1, model.RoleUser)
	require.NoError(t, err)

	issuer.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = issuer.VerifyAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// refresh tokens carry no exp
	_, err = issuer.VerifyRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenIssuer_rejectsForeignSignatures(t *testing.T) {
	issuer := NewTokenIssuer(newTestKeys(t), time.Hour)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &TokenClaims{
		UserID: 1, Role: model.RoleAdmin, Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(mobileSecret)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(forged)
	assert.ErrorIs(t, err, ErrUnauthorized)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &TokenClaims{
		UserID: 1, Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(unsigned)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestTokenIssuer_sameSecondTokensDiffer(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer(newTestKeys(t), time.Hour)
	issuer.now = func() time.Time { return now }

	a, err := issuer.Issue(7, model.RoleUser)
	require.NoError(t, err)
	b, err := issuer.Issue(7, model.RoleUser)
	require.NoError(t, err)
	assert.NotEqual(t, a.AccessToken, b.AccessToken)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
}
