package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const otpLength = 6

var (
	otpMin   = int64(100000)
	otpRange = big.NewInt(900000)
)

// generateOTP returns a random 6-digit code in [100000, 999999]
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// otpMatches compares two codes numerically ("012345" equals "12345") in
// constant time over the normalized digits.
func otpMatches(expected, presented string) bool {
	a, err := strconv.ParseUint(strings.TrimSpace(expected), 10, 64)
	if err != nil {
		return false
	}
	b, err := strconv.ParseUint(strings.TrimSpace(presented), 10, 64)
	if err != nil {
		return false
	}
	as := fmt.Sprintf("%0*d", otpLength, a)
	bs := fmt.Sprintf("%0*d", otpLength, b)
	return subtle.ConstantTimeCompare([]byte(as), []byte(bs)) == 1
}
