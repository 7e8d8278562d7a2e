package auth

import (
	"bytes"
	"fmt"

	"github.com/storefront/identity/internal/model"
)

// KeyStore holds the signing secrets. It is built once at startup and never
// mutated; accessors hand out copies.
type KeyStore struct {
	access []byte
	mobile []byte
	email  []byte
}

// NewKeyStore validates that all three secrets are present and distinct
func NewKeyStore(access, mobile, email string) (*KeyStore, error) {
	if access == "" || mobile == "" || email == "" {
		return nil, fmt.Errorf("signing secrets must not be empty")
	}
	k := &KeyStore{access: []byte(access), mobile: []byte(mobile), email: []byte(email)}
	if bytes.Equal(k.access, k.mobile) || bytes.Equal(k.access, k.email) || bytes.Equal(k.mobile, k.email) {
		return nil, fmt.Errorf("signing secrets must be distinct")
	}
	return k, nil
}

// AccessSecret signs access and refresh tokens
func (k *KeyStore) AccessSecret() []byte {
	return bytes.Clone(k.access)
}

// ChannelSecret returns the OTP challenge secret for a channel
func (k *KeyStore) ChannelSecret(ch model.Channel) ([]byte, error) {
	switch ch {
	case model.ChannelMobile:
		return bytes.Clone(k.mobile), nil
	case model.ChannelEmail:
		return bytes.Clone(k.email), nil
	}
	return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, ch)
}
