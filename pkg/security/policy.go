package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode"
)

// PasswordPolicyMessage describes the strength rules enforced by ValidatePasswordStrength.
const PasswordPolicyMessage = "Password must be at least 8 characters and include an uppercase letter, a lowercase letter, a number, and a special character."

// ValidatePasswordStrength requires 8+ characters with a lowercase letter, an uppercase
// letter, a digit and a punctuation or symbol character.
func ValidatePasswordStrength(password string) bool {
	var count int
	var lower, upper, digit, special bool
	for _, r := range password {
		count++
		lower = lower || unicode.IsLower(r)
		upper = upper || unicode.IsUpper(r)
		digit = digit || unicode.IsDigit(r)
		special = special || unicode.IsPunct(r) || unicode.IsSymbol(r)
	}
	return count >= 8 && lower && upper && digit && special
}

// GenerateToken returns n random bytes as unpadded URL-safe base64.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
