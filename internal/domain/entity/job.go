package entity

import (
	"time"

	"github.com/google/uuid"
)

// JobKind selects the handler of a scheduled job.
type JobKind string

const (
	// JobAccountUnconfirmedExpiry deletes an account that never confirmed.
	JobAccountUnconfirmedExpiry JobKind = "account.unconfirmed_expiry"
	// JobAccountPurge deletes a soft-deleted account that was not reactivated.
	JobAccountPurge JobKind = "account.purge"
	// JobOccupationConfirmationTimeout reverts a reservation whose device never confirmed.
	JobOccupationConfirmationTimeout JobKind = "occupation.confirmation_timeout"
)

// Job is a deferred one-shot task keyed by the entity it cleans up.
type Job struct {
	Key      string    `json:"key"`
	Kind     JobKind   `json:"kind"`
	EntityID uuid.UUID `json:"entity_id"`
	RunAt    time.Time `json:"run_at"`
	Attempts int       `json:"attempts"`
}

// AccountExpiryKey is the job key of the unconfirmed-account cleanup.
func AccountExpiryKey(accountID uuid.UUID) string {
	return "account-expiry:" + accountID.String()
}

// AccountPurgeKey is the job key of the soft-deleted account purge.
func AccountPurgeKey(accountID uuid.UUID) string {
	return "account-purge:" + accountID.String()
}

// OccupationConfirmationKey is the job key of the device confirmation timeout.
func OccupationConfirmationKey(occupationID uuid.UUID) string {
	return "occupation-confirmation:" + occupationID.String()
}
