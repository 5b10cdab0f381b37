// Package repository defines the persistence contracts of the domain.
package repository

import (
	"context"
	"time"

	"parkshare/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrAccountNotFound is returned when an account cannot be found.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSecretMismatch is returned when a transient secret is wrong, expired or already used.
	ErrSecretMismatch = errors.New("secret does not match or has expired")

	// ErrStateConflict is returned when a conditional update finds the row in another state.
	ErrStateConflict = errors.New("entity is not in the expected state")
)

// AccountRepository defines the interface for account data persistence.
type AccountRepository interface {
	// Create persists a new account and fills its generated ID and timestamps.
	// A uniqueness violation is reported as a DuplicateKeyError naming the field.
	Create(ctx context.Context, account *entity.Account) error

	// FindByID retrieves an account by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// LockByID retrieves an account and locks its row until the surrounding transaction ends.
	// Outside a transaction it behaves like FindByID.
	LockByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByIdentifier retrieves an account by email when the identifier contains '@', else by username.
	FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error)

	// FindByEmail retrieves an account by email.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// FindBySecretHash retrieves the account holding the given secret hash for the purpose.
	FindBySecretHash(ctx context.Context, purpose entity.SecretPurpose, hash string) (*entity.Account, error)

	// FindTakenFields returns which of username, email and phone are already used by another account.
	FindTakenFields(ctx context.Context, username, email, phone string) ([]string, error)

	// StoreSecret overwrites the secret of the purpose. A nil secret clears it.
	StoreSecret(ctx context.Context, id uuid.UUID, purpose entity.SecretPurpose, secret *entity.TransientSecret) error

	// ConsumeSecret atomically clears the secret of the purpose if it matches hash and is not expired at now.
	// It returns ErrSecretMismatch when no row qualifies.
	ConsumeSecret(ctx context.Context, id uuid.UUID, purpose entity.SecretPurpose, hash string, now time.Time) error

	// RegisterPinFailure counts a wrong PIN against the current PIN. When the count reaches
	// maxAttempts the PIN is cleared. It reports whether the PIN was cleared by this call.
	RegisterPinFailure(ctx context.Context, id uuid.UUID, maxAttempts int) (bool, error)

	// MarkConfirmed sets the confirmation flag and, when emailVerified is true, the email flag.
	// It reports whether the account was unconfirmed before the call.
	MarkConfirmed(ctx context.Context, id uuid.UUID, emailVerified bool) (bool, error)

	// UpdatePassword stores a new password hash and its change timestamp.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error

	// Deactivate soft-deletes an active account.
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error

	// Reactivate clears the soft-delete flag. It reports whether the account was inactive.
	Reactivate(ctx context.Context, id uuid.UUID) (bool, error)

	// Delete removes the account together with its parkings and occupations.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteIfUnconfirmed removes the account and its relations only if it is still unconfirmed.
	// It reports whether a row was deleted.
	DeleteIfUnconfirmed(ctx context.Context, id uuid.UUID) (bool, error)

	// DeleteIfInactive removes the account and its relations only if it is still soft-deleted.
	DeleteIfInactive(ctx context.Context, id uuid.UUID) (bool, error)

	// ListUnconfirmedBefore returns IDs of unconfirmed accounts created before the cutoff.
	ListUnconfirmedBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)

	// ListInactiveBefore returns IDs of soft-deleted accounts deactivated before the cutoff.
	ListInactiveBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}
