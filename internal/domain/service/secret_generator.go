package service

import "parkshare/internal/domain/entity"

// SecretGenerator produces one-time secrets and their stored digests.
type SecretGenerator interface {
	// Generate returns a fresh plaintext secret for the purpose.
	Generate(purpose entity.SecretPurpose) (string, error)

	// Digest returns the value persisted in place of the plaintext.
	Digest(plaintext string) string
}
