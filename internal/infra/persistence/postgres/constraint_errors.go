package postgres

import (
	"strings"

	"parkshare/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// uniqueFields maps unique index names to the account field they protect.
var uniqueFields = map[string]string{
	model.IndexAccountsUsername: "username",
	model.IndexAccountsEmail:    "email",
	model.IndexAccountsPhone:    "phone",
}

// Helper functions for PostgreSQL error checking
func isUniqueConstraintViolation(err error) bool {
	// Check for GORM's duplicate key error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "23505") || strings.Contains(errMsg, "duplicate key")
}

// uniqueFieldFromError extracts the field from the constraint name in an untranslated driver error.
func uniqueFieldFromError(err error) (string, bool) {
	errMsg := err.Error()
	for index, field := range uniqueFields {
		if strings.Contains(errMsg, index) {
			return field, true
		}
	}

	return "", false
}

func isForeignKeyConstraintViolation(err error) bool {
	// Check for GORM's foreign key violation error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	return strings.Contains(err.Error(), "23503")
}

func isNotNullConstraintViolation(err error) bool {
	// Check error message for PostgreSQL-specific not null constraint violation patterns
	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "null value") ||
		strings.Contains(errMsg, "not null") ||
		strings.Contains(errMsg, "23502") // PostgreSQL not_null_violation error code
}
