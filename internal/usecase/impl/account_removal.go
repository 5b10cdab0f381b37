package impl

import (
	"context"

	"parkshare/internal/domain/entity"
	"parkshare/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// errAccountKept rolls back a removal whose conditional delete matched no row.
var errAccountKept = errors.New("account no longer qualifies for removal")

// accountDeleter deletes the account through the transaction-bound repository and reports
// whether a row was removed.
type accountDeleter func(ctx context.Context, accounts repository.AccountRepository, id uuid.UUID) (bool, error)

// removedAccount describes what a removal released.
type removedAccount struct {
	deleted     bool
	occupations []*entity.Occupation
}

// removeAccount deletes an account in one transaction, first freeing every parking held by
// its open occupations since the cascade drops those rows. The account row stays locked
// for the whole transaction so no reservation can be opened in between.
func removeAccount(ctx context.Context, txManager repository.TransactionManager, accountID uuid.UUID, deleteFn accountDeleter) (*removedAccount, error) {
	removed := &removedAccount{}

	err := txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		removed.occupations = nil
		accounts := repoFactory.NewAccountRepository()

		if _, err := accounts.LockByID(ctx, accountID); err != nil {
			return err
		}

		open, err := repoFactory.NewOccupationRepository().ListOpenByRenter(ctx, accountID)
		if err != nil {
			return errors.Wrap(err, "failed to list open occupations")
		}

		parkings := repoFactory.NewParkingRepository()
		for _, occupation := range open {
			from := entity.OccupancyOccupied
			if occupation.State == entity.OccupationPendingConfirmation {
				from = entity.OccupancyPendingConfirmation
			}

			err := parkings.TransitionOccupancy(ctx, occupation.ParkingID, from, entity.OccupancyFree)
			if err != nil && !errors.Is(err, repository.ErrStateConflict) {
				return errors.Wrap(err, "failed to free parking")
			}
		}

		deleted, err := deleteFn(ctx, accounts, accountID)
		if err != nil {
			return err
		}
		if !deleted {
			return errAccountKept
		}
		removed.occupations = open

		return nil
	})
	if errors.Is(err, errAccountKept) {
		return &removedAccount{}, nil
	}
	if err != nil {
		return nil, err
	}
	removed.deleted = true

	return removed, nil
}

func deleteAny(ctx context.Context, accounts repository.AccountRepository, id uuid.UUID) (bool, error) {
	if err := accounts.Delete(ctx, id); err != nil {
		return false, err
	}

	return true, nil
}

func deleteIfUnconfirmed(ctx context.Context, accounts repository.AccountRepository, id uuid.UUID) (bool, error) {
	return accounts.DeleteIfUnconfirmed(ctx, id)
}

func deleteIfInactive(ctx context.Context, accounts repository.AccountRepository, id uuid.UUID) (bool, error) {
	return accounts.DeleteIfInactive(ctx, id)
}
