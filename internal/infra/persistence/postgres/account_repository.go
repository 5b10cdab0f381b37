// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountRepository implements the repository.AccountRepository interface using GORM.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository is the constructor for accountRepository.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// secretColumns returns the hash and expiry columns of a secret purpose.
func secretColumns(purpose entity.SecretPurpose) (hashCol, expiresCol string, err error) {
	switch purpose {
	case entity.SecretPurposePin:
		return "pin_hash", "pin_expires_at", nil
	case entity.SecretPurposeEmailConfirm:
		return "email_confirm_hash", "email_confirm_expires_at", nil
	case entity.SecretPurposePasswordReset:
		return "password_reset_hash", "password_reset_expires_at", nil
	default:
		return "", "", errors.Errorf("unknown secret purpose %q", purpose)
	}
}

// Create persists a new account.
func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	accountM := fromAccountDomain(account)

	if err := repo.db.WithContext(ctx).Omit(clause.Associations).Create(accountM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.NewDuplicateKeyError(repo.duplicateField(ctx, err, account))
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required account information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create account")
	}

	account.ID = accountM.ID
	account.CreatedAt = accountM.CreatedAt
	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

// duplicateField resolves which unique field a failed insert collided on.
func (repo *accountRepository) duplicateField(ctx context.Context, err error, account *entity.Account) string {
	if field, ok := uniqueFieldFromError(err); ok {
		return field
	}

	taken, lookupErr := repo.FindTakenFields(ctx, account.Username, account.Email, account.Phone)
	if lookupErr == nil && len(taken) > 0 {
		return taken[0]
	}

	return "username"
}

// FindByID retrieves an account by its ID.
func (repo *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return repo.findOne(ctx, "id = ?", id)
}

// LockByID retrieves an account with SELECT ... FOR UPDATE.
func (repo *accountRepository) LockByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	var accountM model.AccountModel
	err := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to lock account")
	}

	return toAccountDomain(&accountM), nil
}

// FindByIdentifier looks an identifier containing '@' up as an email and anything else as a
// username. Usernames are alphanumeric, so the two never overlap.
func (repo *accountRepository) FindByIdentifier(ctx context.Context, identifier string) (*entity.Account, error) {
	if strings.Contains(identifier, "@") {
		return repo.FindByEmail(ctx, identifier)
	}

	return repo.findOne(ctx, "username = ?", identifier)
}

// FindByEmail retrieves an account by email.
func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return repo.findOne(ctx, "email = ?", strings.ToLower(email))
}

// FindBySecretHash retrieves the account holding the secret digest.
func (repo *accountRepository) FindBySecretHash(ctx context.Context, purpose entity.SecretPurpose, hash string) (*entity.Account, error) {
	hashCol, _, err := secretColumns(purpose)
	if err != nil {
		return nil, err
	}

	return repo.findOne(ctx, hashCol+" = ?", hash)
}

func (repo *accountRepository) findOne(ctx context.Context, query string, args ...any) (*entity.Account, error) {
	var accountM model.AccountModel
	if err := repo.db.WithContext(ctx).Where(query, args...).Take(&accountM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find account")
	}

	return toAccountDomain(&accountM), nil
}

// FindTakenFields returns the unique fields already used by an account.
func (repo *accountRepository) FindTakenFields(ctx context.Context, username, email, phone string) ([]string, error) {
	var rows []model.AccountModel
	err := repo.db.WithContext(ctx).
		Select("username", "email", "phone").
		Where("username = ? OR email = ? OR phone = ?", username, strings.ToLower(email), phone).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up taken fields")
	}

	var taken []string
	seen := map[string]bool{}
	mark := func(field string) {
		if !seen[field] {
			seen[field] = true
			taken = append(taken, field)
		}
	}
	for _, row := range rows {
		if row.Username == username {
			mark("username")
		}
		if strings.EqualFold(row.Email, email) {
			mark("email")
		}
		if row.Phone == phone {
			mark("phone")
		}
	}

	return taken, nil
}

// StoreSecret overwrites the hash and expiry pair of the purpose.
func (repo *accountRepository) StoreSecret(ctx context.Context, id uuid.UUID, purpose entity.SecretPurpose, secret *entity.TransientSecret) error {
	hashCol, expiresCol, err := secretColumns(purpose)
	if err != nil {
		return err
	}

	updates := map[string]any{hashCol: nil, expiresCol: nil}
	if purpose == entity.SecretPurposePin {
		updates["pin_attempts"] = 0
	}
	if !secret.IsZero() {
		updates[hashCol] = secret.Hash
		updates[expiresCol] = secret.ExpiresAt
	}

	return repo.updateByID(ctx, id, updates, "failed to store secret")
}

// ConsumeSecret clears the secret only when the stored digest matches and has not expired.
func (repo *accountRepository) ConsumeSecret(ctx context.Context, id uuid.UUID, purpose entity.SecretPurpose, hash string, now time.Time) error {
	hashCol, expiresCol, err := secretColumns(purpose)
	if err != nil {
		return err
	}

	updates := map[string]any{hashCol: nil, expiresCol: nil}
	if purpose == entity.SecretPurposePin {
		updates["pin_attempts"] = 0
	}

	result := repo.db.WithContext(ctx).Model(&model.AccountModel{}).
		Where("id = ? AND "+hashCol+" = ? AND "+expiresCol+" > ?", id, hash, now).
		Updates(updates)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to consume secret")
	}
	if result.RowsAffected == 0 {
		return repository.ErrSecretMismatch
	}

	return nil
}

// RegisterPinFailure increments the PIN attempt counter and clears the PIN once it reaches
// maxAttempts, in a single statement so concurrent guesses cannot overshoot the limit.
func (repo *accountRepository) RegisterPinFailure(ctx context.Context, id uuid.UUID, maxAttempts int) (bool, error) {
	var accountM model.AccountModel
	result := repo.db.WithContext(ctx).Model(&accountM).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "pin_attempts"}, {Name: "pin_hash"}}}).
		Where("id = ? AND pin_hash IS NOT NULL", id).
		Updates(pinFailureUpdates(maxAttempts))
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to record pin failure")
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	return accountM.PinHash == nil, nil
}

func pinFailureUpdates(maxAttempts int) map[string]any {
	exhausted := "CASE WHEN pin_attempts + 1 >= ? THEN NULL ELSE %s END"

	return map[string]any{
		"pin_attempts":   gorm.Expr("pin_attempts + 1"),
		"pin_hash":       gorm.Expr(fmt.Sprintf(exhausted, "pin_hash"), maxAttempts),
		"pin_expires_at": gorm.Expr(fmt.Sprintf(exhausted, "pin_expires_at"), maxAttempts),
	}
}

// MarkConfirmed flips the confirmation flags and reports whether the account was unconfirmed.
func (repo *accountRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, emailVerified bool) (bool, error) {
	db := repo.db.WithContext(ctx)

	result := db.Model(&model.AccountModel{}).
		Where("id = ? AND confirmed = ?", id, false).
		Update("confirmed", true)
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to confirm account")
	}
	flipped := result.RowsAffected > 0

	if emailVerified {
		if err := db.Model(&model.AccountModel{}).Where("id = ?", id).Update("email_verified", true).Error; err != nil {
			return flipped, domainerrors.NewDatabaseExecuteError(err, "failed to verify email")
		}
	}

	return flipped, nil
}

// UpdatePassword stores a new password hash.
func (repo *accountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	return repo.updateByID(ctx, id, map[string]any{
		"password_hash":       passwordHash,
		"password_changed_at": changedAt,
	}, "failed to update password")
}

// Deactivate soft-deletes an active account.
func (repo *accountRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := repo.db.WithContext(ctx).Model(&model.AccountModel{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{"active": false, "deactivated_at": at})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to deactivate account")
	}
	if result.RowsAffected == 0 {
		return repository.ErrStateConflict
	}

	return nil
}

// Reactivate clears the soft-delete flag of an inactive account.
func (repo *accountRepository) Reactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	result := repo.db.WithContext(ctx).Model(&model.AccountModel{}).
		Where("id = ? AND active = ?", id, false).
		Updates(map[string]any{"active": true, "deactivated_at": nil})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to reactivate account")
	}

	return result.RowsAffected > 0, nil
}

// Delete removes the account. Parkings and occupations go with it through ON DELETE CASCADE.
func (repo *accountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := repo.deleteWhere(ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if !deleted {
		return repository.ErrAccountNotFound
	}

	return nil
}

// DeleteIfUnconfirmed removes the account only while it is unconfirmed.
func (repo *accountRepository) DeleteIfUnconfirmed(ctx context.Context, id uuid.UUID) (bool, error) {
	return repo.deleteWhere(ctx, "id = ? AND confirmed = ?", id, false)
}

// DeleteIfInactive removes the account only while it is soft-deleted.
func (repo *accountRepository) DeleteIfInactive(ctx context.Context, id uuid.UUID) (bool, error) {
	return repo.deleteWhere(ctx, "id = ? AND active = ?", id, false)
}

func (repo *accountRepository) deleteWhere(ctx context.Context, query string, args ...any) (bool, error) {
	result := repo.db.WithContext(ctx).Where(query, args...).Delete(&model.AccountModel{})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete account")
	}

	return result.RowsAffected > 0, nil
}

// ListUnconfirmedBefore returns unconfirmed accounts created before the cutoff.
func (repo *accountRepository) ListUnconfirmedBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return repo.listIDs(ctx, limit, "confirmed = ? AND created_at < ?", false, cutoff)
}

// ListInactiveBefore returns soft-deleted accounts deactivated before the cutoff.
func (repo *accountRepository) ListInactiveBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return repo.listIDs(ctx, limit, "active = ? AND deactivated_at < ?", false, cutoff)
}

func (repo *accountRepository) listIDs(ctx context.Context, limit int, query string, args ...any) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := repo.db.WithContext(ctx).Model(&model.AccountModel{}).
		Where(query, args...).
		Order("created_at").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list accounts")
	}

	return ids, nil
}

func (repo *accountRepository) updateByID(ctx context.Context, id uuid.UUID, updates map[string]any, msg string) error {
	result := repo.db.WithContext(ctx).Model(&model.AccountModel{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, msg)
	}
	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

// --- Mapper Functions ---

// toAccountDomain converts a GORM AccountModel to a domain Account entity.
func toAccountDomain(data *model.AccountModel) *entity.Account {
	if data == nil {
		return nil
	}

	return &entity.Account{
		ID:                data.ID,
		Username:          data.Username,
		Email:             data.Email,
		Phone:             data.Phone,
		PasswordHash:      data.PasswordHash,
		Role:              entity.Role(data.Role),
		Confirmed:         data.Confirmed,
		EmailVerified:     data.EmailVerified,
		Pin:               toPinSecret(data),
		EmailConfirm:      toSecret(data.EmailConfirmHash, data.EmailConfirmExpiresAt),
		PasswordReset:     toSecret(data.PasswordResetHash, data.PasswordResetExpiresAt),
		PasswordChangedAt: data.PasswordChangedAt,
		Active:            data.Active,
		DeactivatedAt:     data.DeactivatedAt,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}

// fromAccountDomain converts a domain Account entity to a GORM AccountModel for persistence.
func fromAccountDomain(data *entity.Account) *model.AccountModel {
	if data == nil {
		return nil
	}

	accountM := &model.AccountModel{
		ID:                data.ID,
		Username:          data.Username,
		Email:             strings.ToLower(data.Email),
		Phone:             data.Phone,
		PasswordHash:      data.PasswordHash,
		Role:              data.Role.String(),
		Confirmed:         data.Confirmed,
		EmailVerified:     data.EmailVerified,
		PasswordChangedAt: data.PasswordChangedAt,
		Active:            data.Active,
		DeactivatedAt:     data.DeactivatedAt,
	}
	accountM.PinHash, accountM.PinExpiresAt = fromSecret(data.Pin)
	if data.Pin != nil {
		accountM.PinAttempts = data.Pin.FailedAttempts
	}
	accountM.EmailConfirmHash, accountM.EmailConfirmExpiresAt = fromSecret(data.EmailConfirm)
	accountM.PasswordResetHash, accountM.PasswordResetExpiresAt = fromSecret(data.PasswordReset)

	return accountM
}

func toSecret(hash *string, expiresAt *time.Time) *entity.TransientSecret {
	if hash == nil || *hash == "" || expiresAt == nil {
		return nil
	}

	return &entity.TransientSecret{Hash: *hash, ExpiresAt: *expiresAt}
}

func toPinSecret(data *model.AccountModel) *entity.TransientSecret {
	secret := toSecret(data.PinHash, data.PinExpiresAt)
	if secret != nil {
		secret.FailedAttempts = data.PinAttempts
	}

	return secret
}

func fromSecret(secret *entity.TransientSecret) (*string, *time.Time) {
	if secret.IsZero() {
		return nil, nil
	}
	hash := secret.Hash
	expiresAt := secret.ExpiresAt

	return &hash, &expiresAt
}
