package entity

import "time"

// SecretPurpose names the flow a transient secret belongs to.
type SecretPurpose string

const (
	SecretPurposePin           SecretPurpose = "pin"
	SecretPurposeEmailConfirm  SecretPurpose = "email_confirm"
	SecretPurposePasswordReset SecretPurpose = "password_reset"
)

// IsValid checks if the purpose is one of the known flows.
func (p SecretPurpose) IsValid() bool {
	switch p {
	case SecretPurposePin, SecretPurposeEmailConfirm, SecretPurposePasswordReset:
		return true
	default:
		return false
	}
}

// TransientSecret is the stored half of a single-use credential: a one-way hash and its absolute expiry.
type TransientSecret struct {
	Hash      string
	ExpiresAt time.Time
	// FailedAttempts counts wrong candidates. Only PINs track it.
	FailedAttempts int
}

// IsZero reports whether no secret is stored.
func (s *TransientSecret) IsZero() bool {
	return s == nil || s.Hash == ""
}

// ActiveAt reports whether the secret can still be consumed at the given instant.
func (s *TransientSecret) ActiveAt(now time.Time) bool {
	return !s.IsZero() && s.ExpiresAt.After(now)
}
