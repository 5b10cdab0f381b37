// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"parkshare/config"
	deliverycontext "parkshare/internal/delivery/context"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/domain/service"
	"parkshare/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const defaultPinMaxAttempts = 5

// credentialService implements the CredentialUsecase interface.
type credentialService struct {
	accountRepo repository.AccountRepository
	hasher      service.PasswordHasher
	secrets     service.SecretGenerator
	ttl         map[entity.SecretPurpose]time.Duration
	maxPinTries int
	now         func() time.Time
	logger      *slog.Logger
}

// CredentialServiceParams holds dependencies for CredentialService, injected by Fx.
type CredentialServiceParams struct {
	fx.In

	AccountRepo repository.AccountRepository
	Hasher      service.PasswordHasher
	Secrets     service.SecretGenerator
	Config      *config.Config
	Logger      *slog.Logger
}

// NewCredentialService is the constructor for credentialService.
func NewCredentialService(params CredentialServiceParams) usecase.CredentialUsecase {
	ttl := map[entity.SecretPurpose]time.Duration{
		entity.SecretPurposePin:           5 * time.Minute,
		entity.SecretPurposeEmailConfirm:  24 * time.Hour,
		entity.SecretPurposePasswordReset: 10 * time.Minute,
	}
	maxPinTries := defaultPinMaxAttempts
	if cfg := params.Config.Secrets; cfg != nil {
		if cfg.PinMaxAttempts > 0 {
			maxPinTries = cfg.PinMaxAttempts
		}
		setPositive(ttl, entity.SecretPurposePin, cfg.PinTTL)
		setPositive(ttl, entity.SecretPurposeEmailConfirm, cfg.EmailConfirmTTL)
		setPositive(ttl, entity.SecretPurposePasswordReset, cfg.PasswordResetTTL)
	}

	return &credentialService{
		accountRepo: params.AccountRepo,
		hasher:      params.Hasher,
		secrets:     params.Secrets,
		ttl:         ttl,
		maxPinTries: maxPinTries,
		now:         time.Now,
		logger:      params.Logger,
	}
}

func setPositive(ttl map[entity.SecretPurpose]time.Duration, purpose entity.SecretPurpose, d time.Duration) {
	if d > 0 {
		ttl[purpose] = d
	}
}

func (srv *credentialService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// CreateAccount validates the input, checks uniqueness and stores an unconfirmed account.
func (srv *credentialService) CreateAccount(ctx context.Context, input *usecase.CreateAccountInput) (*entity.Account, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	phone := strings.TrimSpace(input.Phone)

	role := input.Role
	if role == "" {
		role = entity.RoleClient
	}

	fields := srv.passwordViolations(input.Password, input.PasswordConfirm)
	if !role.IsSelfAssignable() {
		fields["role"] = "must be client or provider"
	}
	if len(fields) > 0 {
		return nil, domainerrors.NewValidationError(fields)
	}

	taken, err := srv.accountRepo.FindTakenFields(ctx, username, email, phone)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check account uniqueness")
	}
	if len(taken) > 0 {
		return nil, domainerrors.NewDuplicateKeyError(taken[0])
	}

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	account := &entity.Account{
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hashedPassword,
		Role:         role,
		Active:       true,
	}
	if err := srv.accountRepo.Create(ctx, account); err != nil {
		return nil, errors.Wrap(err, "failed to create account")
	}

	srv.log(ctx).Debug("Account created", slog.Any("accountID", account.ID), slog.String("role", role.String()))

	return account, nil
}

// VerifyPassword reports whether candidate matches hash.
func (srv *credentialService) VerifyPassword(candidate, hash string) bool {
	return srv.hasher.Check(candidate, hash)
}

// IssueSecret generates a secret, stores its digest and returns the plaintext.
// Any previous secret of the same purpose stops being valid.
func (srv *credentialService) IssueSecret(ctx context.Context, purpose entity.SecretPurpose, account *entity.Account) (string, error) {
	ttl, ok := srv.ttl[purpose]
	if !ok {
		return "", errors.Errorf("unknown secret purpose %q", purpose)
	}

	plaintext, err := srv.secrets.Generate(purpose)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate secret")
	}

	secret := &entity.TransientSecret{
		Hash:      srv.secrets.Digest(plaintext),
		ExpiresAt: srv.now().Add(ttl),
	}
	if err := srv.accountRepo.StoreSecret(ctx, account.ID, purpose, secret); err != nil {
		return "", errors.Wrap(err, "failed to store secret")
	}
	account.SetSecret(purpose, secret)

	return plaintext, nil
}

// ConsumeSecret clears the secret when candidate matches and is not expired.
// Wrong PINs are counted and the PIN is discarded once the limit is reached.
func (srv *credentialService) ConsumeSecret(ctx context.Context, purpose entity.SecretPurpose, account *entity.Account, candidate string) error {
	if candidate == "" {
		srv.registerFailure(ctx, purpose, account)

		return secretError(purpose)
	}

	err := srv.accountRepo.ConsumeSecret(ctx, account.ID, purpose, srv.secrets.Digest(candidate), srv.now())
	if errors.Is(err, repository.ErrSecretMismatch) {
		srv.registerFailure(ctx, purpose, account)

		return secretError(purpose)
	}
	if err != nil {
		return errors.Wrap(err, "failed to consume secret")
	}
	account.SetSecret(purpose, nil)

	return nil
}

func (srv *credentialService) registerFailure(ctx context.Context, purpose entity.SecretPurpose, account *entity.Account) {
	if purpose != entity.SecretPurposePin {
		return
	}

	cleared, err := srv.accountRepo.RegisterPinFailure(ctx, account.ID, srv.maxPinTries)
	if err != nil {
		srv.log(ctx).Error("Failed to record wrong PIN", slog.Any("accountID", account.ID), slog.Any("error", err))

		return
	}
	if cleared {
		account.Pin = nil
		srv.log(ctx).Warn("PIN discarded after too many wrong attempts", slog.Any("accountID", account.ID))
	}
}

// ConsumeSecretByToken finds the account holding token and consumes it.
func (srv *credentialService) ConsumeSecretByToken(ctx context.Context, purpose entity.SecretPurpose, token string) (*entity.Account, error) {
	account, err := srv.findByToken(ctx, purpose, token)
	if err != nil {
		return nil, err
	}

	if err := srv.ConsumeSecret(ctx, purpose, account, token); err != nil {
		return nil, err
	}

	return account, nil
}

// LookupSecretByToken returns the account holding an unexpired token, leaving it in place.
func (srv *credentialService) LookupSecretByToken(ctx context.Context, purpose entity.SecretPurpose, token string) (*entity.Account, error) {
	account, err := srv.findByToken(ctx, purpose, token)
	if err != nil {
		return nil, err
	}

	if !account.Secret(purpose).ActiveAt(srv.now()) {
		return nil, secretError(purpose)
	}

	return account, nil
}

func (srv *credentialService) findByToken(ctx context.Context, purpose entity.SecretPurpose, token string) (*entity.Account, error) {
	if token == "" {
		return nil, secretError(purpose)
	}

	account, err := srv.accountRepo.FindBySecretHash(ctx, purpose, srv.secrets.Digest(token))
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, secretError(purpose)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account by secret")
	}

	return account, nil
}

// ClearSecret removes the secret of the purpose, used when its delivery failed.
func (srv *credentialService) ClearSecret(ctx context.Context, purpose entity.SecretPurpose, account *entity.Account) error {
	if err := srv.accountRepo.StoreSecret(ctx, account.ID, purpose, nil); err != nil {
		return errors.Wrap(err, "failed to clear secret")
	}
	account.SetSecret(purpose, nil)

	return nil
}

// CheckPasswordPolicy returns a ValidationError listing every violation.
func (srv *credentialService) CheckPasswordPolicy(password, passwordConfirm string) error {
	if fields := srv.passwordViolations(password, passwordConfirm); len(fields) > 0 {
		return domainerrors.NewValidationError(fields)
	}

	return nil
}

// SetPassword validates and stores a new password. The change is stamped one second
// in the past so a token issued right after it is still accepted.
func (srv *credentialService) SetPassword(ctx context.Context, account *entity.Account, password, passwordConfirm string) error {
	if err := srv.CheckPasswordPolicy(password, passwordConfirm); err != nil {
		return err
	}

	hashedPassword, err := srv.hasher.Hash(password)
	if err != nil {
		return errors.Wrap(err, "failed to hash password")
	}

	changedAt := srv.now().Add(-time.Second)
	if err := srv.accountRepo.UpdatePassword(ctx, account.ID, hashedPassword, changedAt); err != nil {
		return errors.Wrap(err, "failed to update password")
	}

	account.PasswordHash = hashedPassword
	account.PasswordChangedAt = &changedAt

	return nil
}

func (srv *credentialService) passwordViolations(password, passwordConfirm string) map[string]string {
	fields := map[string]string{}
	if violations := srv.hasher.ValidatePasswordStrength(password); len(violations) > 0 {
		fields["password"] = "Password " + strings.Join(violations, ", ")
	}
	if password != passwordConfirm {
		fields["passwordConfirm"] = "Passwords are not the same"
	}

	return fields
}

// secretError maps a rejected secret to the error of its flow.
// Wrong, expired and already used secrets are reported the same way.
func secretError(purpose entity.SecretPurpose) error {
	switch purpose {
	case entity.SecretPurposePin:
		return domainerrors.ErrInvalidPin
	case entity.SecretPurposeEmailConfirm:
		return domainerrors.ErrConfirmationLinkInvalid
	default:
		return domainerrors.ErrResetTokenInvalid
	}
}
