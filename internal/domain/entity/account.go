package entity

import (
	"time"

	"github.com/google/uuid"
)

// Account is the identity of a marketplace participant.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Phone        string // E.164
	PasswordHash string
	Role         Role

	Confirmed     bool // set by the first successful PIN or email confirmation
	EmailVerified bool

	Pin           *TransientSecret
	EmailConfirm  *TransientSecret
	PasswordReset *TransientSecret

	PasswordChangedAt *time.Time

	Active        bool // false once soft-deleted
	DeactivatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Secret returns the stored secret for the purpose, nil when none is set.
func (a *Account) Secret(purpose SecretPurpose) *TransientSecret {
	switch purpose {
	case SecretPurposePin:
		return a.Pin
	case SecretPurposeEmailConfirm:
		return a.EmailConfirm
	case SecretPurposePasswordReset:
		return a.PasswordReset
	default:
		return nil
	}
}

// SetSecret replaces the stored secret for the purpose. A nil secret clears it.
func (a *Account) SetSecret(purpose SecretPurpose, secret *TransientSecret) {
	switch purpose {
	case SecretPurposePin:
		a.Pin = secret
	case SecretPurposeEmailConfirm:
		a.EmailConfirm = secret
	case SecretPurposePasswordReset:
		a.PasswordReset = secret
	}
}

// ChangedPasswordAfter reports whether the password was changed after a token issued at issuedAt.
// Tokens carry second precision, so the comparison is done in whole seconds.
func (a *Account) ChangedPasswordAfter(issuedAt time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}

	return a.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// CanAuthenticate reports whether the account may hold a session.
func (a *Account) CanAuthenticate() bool {
	return a.Active && a.Confirmed
}

// HasRole reports whether the account has one of the given roles.
func (a *Account) HasRole(roles ...Role) bool {
	return Roles(roles).Contains(a.Role)
}
