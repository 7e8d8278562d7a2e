package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!Pass12")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!Pass12", hash)
	assert.True(t, CheckPassword(hash, "Str0ng!Pass12"))
	assert.False(t, CheckPassword(hash, "str0ng!Pass12"))
	assert.False(t, CheckPassword("not-a-hash", "Str0ng!Pass12"))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		email    string
		ok       bool
	}{
		{"valid", "Str0ng!Pass12", "user@example.com", true},
		{"too short", "S0!a1", "user@example.com", false},
		{"no upper", "str0ng!pass12", "user@example.com", false},
		{"no lower", "STR0NG!PASS12", "user@example.com", false},
		{"one digit", "Strong!Pass1", "user@example.com", false},
		{"no symbol", "Str0ngPass12", "user@example.com", false},
		{"space", "Str0ng! Pass12", "user@example.com", false},
		{"equals local part", "Ab12!cdef", "ab12!cdef@example.com", false},
		{"equals domain label", "Sh0p!x9yz", "user@sh0p!x9yz.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.email)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}
