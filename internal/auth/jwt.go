package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/storefront/identity/internal/model"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenClaims represents the JWT claims of access and refresh tokens.
// Refresh tokens carry no role and no exp.
type TokenClaims struct {
	UserID int64      `json:"userId"`
	Role   model.Role `json:"role,omitempty"`
	Type   string     `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is the session material handed to a client
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenIssuer mints and verifies access/refresh tokens
type TokenIssuer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with the key store's access secret
func NewTokenIssuer(keys *KeyStore, accessTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:    keys.AccessSecret(),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// Issue creates an access token (accountID, role, exp) and a refresh token (accountID)
func (s *TokenIssuer) Issue(accountID int64, role model.Role) (*TokenPair, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL).Truncate(time.Second)

	access := &TokenClaims{
		UserID: accountID,
		Role:   role,
		Type:   tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := &TokenClaims{
		UserID: accountID,
		Type:   tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: expiresAt}, nil
}

// VerifyAccessToken verifies signature, expiry and token type
func (s *TokenIssuer) VerifyAccessToken(tokenString string) (*TokenClaims, error) {
	claims, err := s.parse(tokenString, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrUnauthorized)
	}
	return claims, nil
}

// VerifyRefreshToken verifies signature and token type. Refresh tokens do not expire.
func (s *TokenIssuer) VerifyRefreshToken(tokenString string) (*TokenClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrUnauthorized)
	}
	return claims, nil
}

func (s *TokenIssuer) parse(tokenString string, opts ...jwt.ParserOption) (*TokenClaims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	return claims, nil
}
