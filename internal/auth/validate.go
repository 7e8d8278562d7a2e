package auth

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	minMobile     = 6000000000
	maxMobile     = 9999999999
	minNameLength = 2
	maxNameLength = 100
)

// NormalizeMobile trims s and checks it is a 10 digit number in the accepted range
func NormalizeMobile(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: mobile is required", ErrValidation)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || len(s) != 10 || n < minMobile || n > maxMobile {
		return "", fmt.Errorf("%w: mobile must be a 10 digit number between %d and %d", ErrValidation, int64(minMobile), int64(maxMobile))
	}
	return s, nil
}

// NormalizeEmail trims and lowercases s and checks it is a bare address
func NormalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	_, domain, _ := strings.Cut(s, "@")
	if !strings.Contains(domain, ".") {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	return s, nil
}

func normalizeName(s string) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < minNameLength || n > maxNameLength {
		return "", fmt.Errorf("%w: name must be %d to %d characters", ErrValidation, minNameLength, maxNameLength)
	}
	return s, nil
}
