// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"parkshare/internal/domain/entity"
)

// CreateAccountInput defines the data required to create an account.
// PasswordConfirm is only compared, never stored.
type CreateAccountInput struct {
	Username        string
	Email           string
	Phone           string
	Password        string
	PasswordConfirm string
	Role            entity.Role
}

// CredentialUsecase owns account creation, password checks and transient secrets.
type CredentialUsecase interface {
	// CreateAccount validates the input, hashes the password and persists an unconfirmed account.
	CreateAccount(ctx context.Context, input *CreateAccountInput) (*entity.Account, error)
	// VerifyPassword reports whether the candidate matches the stored hash.
	VerifyPassword(candidate, hash string) bool
	// IssueSecret stores a fresh secret of the purpose and returns its plaintext.
	IssueSecret(ctx context.Context, purpose entity.SecretPurpose, account *entity.Account) (string, error)
	// ConsumeSecret clears the secret if candidate matches and has not expired.
	ConsumeSecret(ctx context.Context, purpose entity.SecretPurpose, account *entity.Account, candidate string) error
	// ConsumeSecretByToken locates the account holding the token and consumes it.
	ConsumeSecretByToken(ctx context.Context, purpose entity.SecretPurpose, token string) (*entity.Account, error)
	// LookupSecretByToken returns the account holding a still valid token without consuming it.
	LookupSecretByToken(ctx context.Context, purpose entity.SecretPurpose, token string) (*entity.Account, error)
	// ClearSecret drops the secret of the purpose.
	ClearSecret(ctx context.Context, purpose entity.SecretPurpose, account *entity.Account) error
	// CheckPasswordPolicy reports every policy violation of a new password and its confirmation.
	CheckPasswordPolicy(password, passwordConfirm string) error
	// SetPassword applies the password policy and stores the new hash.
	SetPassword(ctx context.Context, account *entity.Account, password, passwordConfirm string) error
}
