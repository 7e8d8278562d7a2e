package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 100
	bcryptCost        = 10
)

// HashPassword returns the bcrypt hash of password
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether password matches hash
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the account password policy: 8 to 100 characters,
// upper and lower case, at least two digits and one symbol, no spaces, and not
// equal to the email's local part or first domain label.
func ValidatePassword(password, email string) error {
	n := len([]rune(password))
	if n < minPasswordLength || n > maxPasswordLength {
		return fmt.Errorf("%w: password must be %d to %d characters", ErrValidation, minPasswordLength, maxPasswordLength)
	}

	var upper, lower, digits, symbols int
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			return fmt.Errorf("%w: password must not contain spaces", ErrValidation)
		case unicode.IsUpper(r):
			upper++
		case unicode.IsLower(r):
			lower++
		case unicode.IsDigit(r):
			digits++
		default:
			symbols++
		}
	}
	if upper == 0 || lower == 0 || digits < 2 || symbols == 0 {
		return fmt.Errorf("%w: password needs upper and lower case letters, two digits and a symbol", ErrValidation)
	}

	local, domain, _ := strings.Cut(email, "@")
	label, _, _ := strings.Cut(domain, ".")
	for _, banned := range []string{local, label} {
		if banned != "" && strings.EqualFold(password, banned) {
			return fmt.Errorf("%w: password must not match the email address", ErrValidation)
		}
	}
	return nil
}
