package usecase

import (
	"context"
	"time"

	"parkshare/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// SignupInput defines the data required to sign up.
type SignupInput struct {
	Username        string
	Email           string
	Phone           string
	Password        string
	PasswordConfirm string
	Role            entity.Role
}

// SigninInput defines the first authentication step. Identifier is an email or a username.
type SigninInput struct {
	Identifier string
	Password   string
}

// ConfirmPinInput defines the second authentication step.
type ConfirmPinInput struct {
	Identifier string
	Pin        string
}

// ResetPasswordInput carries the new password chosen through a reset link.
type ResetPasswordInput struct {
	Password        string
	PasswordConfirm string
}

// ChangePasswordInput carries the current and new password of a logged in account.
type ChangePasswordInput struct {
	CurrentPassword string
	Password        string
	PasswordConfirm string
}

// --- Output DTOs ---

// MessageOutput is a generic confirmation returned when no token is issued.
type MessageOutput struct {
	Message string
}

// SessionOutput returns the issued session token.
type SessionOutput struct {
	Token     string
	ExpiresAt time.Time
	Account   *entity.Account
}

// AuthUsecase defines the two-step authentication and account session flows.
type AuthUsecase interface {
	Signup(ctx context.Context, input *SignupInput) (*MessageOutput, error)
	Signin(ctx context.Context, input *SigninInput) (*MessageOutput, error)
	ConfirmPin(ctx context.Context, input *ConfirmPinInput) (*SessionOutput, error)

	SendConfirmationEmail(ctx context.Context, account *entity.Account) (*MessageOutput, error)
	ConfirmEmail(ctx context.Context, token string) (*MessageOutput, error)

	ForgotPassword(ctx context.Context, email string) (*MessageOutput, error)
	CheckResetToken(ctx context.Context, token string) (bool, error)
	ResetPassword(ctx context.Context, token string, input *ResetPasswordInput) (*SessionOutput, error)
	ChangePassword(ctx context.Context, account *entity.Account, input *ChangePasswordInput) (*SessionOutput, error)

	// Authenticate resolves a session token to its account.
	Authenticate(ctx context.Context, token string) (*entity.Account, error)

	DeactivateMe(ctx context.Context, account *entity.Account) error
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
}
