package usecase

import (
	"context"

	"github.com/google/uuid"
)

// SweepResult counts the entities cleaned by one expiry sweep.
type SweepResult struct {
	UnconfirmedAccounts int
	PurgedAccounts      int
	ExpiredOccupations  int
}

// ExpiryUsecase removes entities whose confirmation window elapsed.
type ExpiryUsecase interface {
	// ExpireUnconfirmedAccount deletes the account if it is still unconfirmed.
	ExpireUnconfirmedAccount(ctx context.Context, accountID uuid.UUID) (bool, error)
	// PurgeInactiveAccount deletes the account if it is still soft-deleted.
	PurgeInactiveAccount(ctx context.Context, accountID uuid.UUID) (bool, error)
	// Sweep re-derives overdue cleanups from the database.
	Sweep(ctx context.Context) (*SweepResult, error)
}
