package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storefront/identity/internal/model"
)

// ChallengeTarget is the recipient a challenge was issued for. ChannelID is
// the normalized mobile or email the OTP was sent to; Mobile anchors an email
// challenge to the account the address will be attached to.
type ChallengeTarget struct {
	ChannelID string
	Mobile    string
}

// ChallengeClaims is the payload of an OTP challenge token. OTP holds the
// Cipher output, never the plaintext code.
type ChallengeClaims struct {
	Action    string        `json:"action"`
	DeviceID  model.Channel `json:"deviceId"`
	ChannelID string        `json:"channelId"`
	Mobile    string        `json:"mobile,omitempty"`
	OTP       string        `json:"otp"`
	jwt.RegisteredClaims
}

// Target returns the recipient recorded in the claims
func (c *ChallengeClaims) Target() ChallengeTarget {
	return ChallengeTarget{ChannelID: c.ChannelID, Mobile: c.Mobile}
}

// ChallengeEncoder issues and verifies self-contained OTP challenge tokens.
// Nothing is stored server side; expiry is checked when the token comes back.
type ChallengeEncoder struct {
	cipher *Cipher
	now    func() time.Time
}

// NewChallengeEncoder creates a ChallengeEncoder
func NewChallengeEncoder(c *Cipher) *ChallengeEncoder {
	return &ChallengeEncoder{cipher: c, now: time.Now}
}

// Issue encrypts otp and signs it together with action, channel and target
// under secret. The token expires ttl from now.
func (e *ChallengeEncoder) Issue(action string, channel model.Channel, target ChallengeTarget, otp string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, fmt.Errorf("challenge signing secret is empty")
	}
	if target.ChannelID == "" {
		return "", time.Time{}, fmt.Errorf("challenge target is empty")
	}
	encrypted, err := e.cipher.Encrypt(otp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encrypt otp: %w", err)
	}

	now := e.now()
	// JWT exp has second precision; report the instant that is actually enforced.
	expiresAt := now.Add(ttl).Truncate(time.Second)
	claims := &ChallengeClaims{
		Action:    action,
		DeviceID:  channel,
		ChannelID: target.ChannelID,
		Mobile:    target.Mobile,
		OTP:       encrypted,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign challenge: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature and expiry with secret and returns the decrypted OTP.
// Every failure is reported as ErrInvalidOrExpiredChallenge.
func (e *ChallengeEncoder) Verify(tokenString string, secret []byte) (string, *ChallengeClaims, error) {
	claims := &ChallengeClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(e.now),
	)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidOrExpiredChallenge, err)
	}
	if !token.Valid {
		return "", nil, ErrInvalidOrExpiredChallenge
	}

	otp, err := e.cipher.Decrypt(claims.OTP)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidOrExpiredChallenge, err)
	}
	return otp, claims, nil
}
