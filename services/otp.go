package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const otpDigits = 6

var otpUpperBound = big.NewInt(1_000_000)

// generateOTP returns a uniformly random 6 digit code, zero padded
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpUpperBound)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// otpMatches compares a submitted code with the stored one in constant time
func otpMatches(stored, submitted string) bool {
	if stored == "" || len(submitted) != len(stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}
