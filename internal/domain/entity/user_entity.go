package entity

import (
	"time"
)

// User is the aggregate root for the credential domain.
// PasswordHash holds a bcrypt hash; plaintext is never persisted.
//
// ResetToken and ResetTokenExpiry are set together while a password reset
// is outstanding and cleared together when the reset is consumed.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	ResetToken       *string
	ResetTokenExpiry *time.Time
	CreatedAt        time.Time
	LastLoginAt      *time.Time
}

// HasPendingReset reports whether a reset request is currently outstanding.
func (u *User) HasPendingReset() bool {
	return u.ResetToken != nil && u.ResetTokenExpiry != nil
}
