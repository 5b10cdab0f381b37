// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"parkshare/config"
	"parkshare/internal/domain/service"
)

const minBcryptCost = 10

// bcryptHasher is a concrete implementation of the PasswordHasher interface using bcrypt.
type bcryptHasher struct {
	cost   int
	policy config.PasswordStrengthConfig
}

// NewBcryptHasher is the constructor for bcryptHasher.
// It returns the implementation as a service.PasswordHasher interface.
func NewBcryptHasher(cfg *config.Config) service.PasswordHasher {
	hasher := &bcryptHasher{cost: minBcryptCost}
	if cfg.Auth != nil && cfg.Auth.BcryptCost > minBcryptCost {
		hasher.cost = cfg.Auth.BcryptCost
	}
	if cfg.PasswordStrength != nil {
		hasher.policy = *cfg.PasswordStrength
	}

	return hasher
}

// Hash generates a salted hash from a plaintext password using bcrypt.
// bcrypt automatically handles salt generation.
func (h *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)

	return string(bytes), err
}

// Check compares a plaintext password with a bcrypt hash.
func (h *bcryptHasher) Check(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	// err is nil if the password and hash match.
	return err == nil
}

// ValidatePasswordStrength lists every rule of the configured policy the password breaks.
func (h *bcryptHasher) ValidatePasswordStrength(password string) []string {
	var violations []string

	length := utf8.RuneCountInString(password)
	if h.policy.MinLength > 0 && length < h.policy.MinLength {
		violations = append(violations, "must be at least "+strconv.Itoa(h.policy.MinLength)+" characters long")
	}
	if h.policy.MaxLength > 0 && length > h.policy.MaxLength {
		violations = append(violations, "must be at most "+strconv.Itoa(h.policy.MaxLength)+" characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial, hasSpace bool
	for _, r := range password {
		switch {
		case unicode.IsSpace(r):
			hasSpace = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if h.policy.RequireUppercase && !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if h.policy.RequireLowercase && !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if h.policy.RequireNumbers && !hasDigit {
		violations = append(violations, "must contain a number")
	}
	if h.policy.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain a special character")
	}
	if hasSpace {
		violations = append(violations, "must not contain whitespace")
	}

	return violations
}
