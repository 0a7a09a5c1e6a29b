package helpers

import (
	"crypto/rand"
	"encoding/base64"
)

// ResetTokenBytes is the entropy of a password-reset token.
const ResetTokenBytes = 32

// NewResetToken returns a URL-safe token with n random bytes of entropy.
func NewResetToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
