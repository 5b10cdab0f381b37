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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	msgPinSent          = "A PIN code has been sent to your phone, please confirm it to continue"
	msgEmailSent        = "A confirmation link has been sent to your email address"
	msgEmailConfirmed   = "Your email address has been confirmed"
	msgResetLinkSent    = "If an account exists for this email, a reset link has been sent"
	defaultConfirmDelay = 240 * time.Hour
	defaultPurgeDelay   = 720 * time.Hour
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager     repository.TransactionManager
	accountRepo   repository.AccountRepository
	credentials   usecase.CredentialUsecase
	tokenService  service.TokenService
	notifier      service.Notifier
	scheduler     service.Scheduler
	confirmDelay  time.Duration
	purgeDelay    time.Duration
	publicBaseURL string
	pinTTL        time.Duration
	linkTTL       map[entity.SecretPurpose]time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	AccountRepo  repository.AccountRepository
	Credentials  usecase.CredentialUsecase
	TokenService service.TokenService
	Notifier     service.Notifier
	Scheduler    service.Scheduler
	Config       *config.Config
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	srv := &authService{
		txManager:    params.TxManager,
		accountRepo:  params.AccountRepo,
		credentials:  params.Credentials,
		tokenService: params.TokenService,
		notifier:     params.Notifier,
		scheduler:    params.Scheduler,
		confirmDelay: defaultConfirmDelay,
		purgeDelay:   defaultPurgeDelay,
		pinTTL:       5 * time.Minute,
		linkTTL: map[entity.SecretPurpose]time.Duration{
			entity.SecretPurposeEmailConfirm:  24 * time.Hour,
			entity.SecretPurposePasswordReset: 10 * time.Minute,
		},
		now:    time.Now,
		logger: params.Logger,
	}

	cfg := params.Config
	if cfg.Account != nil {
		if cfg.Account.ConfirmationDelay > 0 {
			srv.confirmDelay = cfg.Account.ConfirmationDelay
		}
		if cfg.Account.PurgeDelay > 0 {
			srv.purgeDelay = cfg.Account.PurgeDelay
		}
	}
	if cfg.Secrets != nil {
		if cfg.Secrets.PinTTL > 0 {
			srv.pinTTL = cfg.Secrets.PinTTL
		}
		setPositive(srv.linkTTL, entity.SecretPurposeEmailConfirm, cfg.Secrets.EmailConfirmTTL)
		setPositive(srv.linkTTL, entity.SecretPurposePasswordReset, cfg.Secrets.PasswordResetTTL)
	}
	if cfg.Notification != nil {
		srv.publicBaseURL = strings.TrimRight(cfg.Notification.PublicBaseURL, "/")
	}

	return srv
}

func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Signup creates an unconfirmed account and sends its first PIN.
// A failed delivery removes the account again.
func (srv *authService) Signup(ctx context.Context, input *usecase.SignupInput) (*usecase.MessageOutput, error) {
	account, err := srv.credentials.CreateAccount(ctx, &usecase.CreateAccountInput{
		Username:        input.Username,
		Email:           input.Email,
		Phone:           input.Phone,
		Password:        input.Password,
		PasswordConfirm: input.PasswordConfirm,
		Role:            input.Role,
	})
	if err != nil {
		return nil, err
	}

	if err := srv.sendPin(ctx, account); err != nil {
		if delErr := srv.accountRepo.Delete(ctx, account.ID); delErr != nil {
			srv.log(ctx).Error("Failed to roll back account after PIN delivery failure",
				slog.Any("accountID", account.ID), slog.Any("error", delErr))
		}

		return nil, err
	}

	job := entity.Job{
		Key:      entity.AccountExpiryKey(account.ID),
		Kind:     entity.JobAccountUnconfirmedExpiry,
		EntityID: account.ID,
		RunAt:    srv.now().Add(srv.confirmDelay),
	}
	if err := srv.scheduler.Schedule(ctx, job); err != nil {
		// the expiry sweeper still removes the account
		srv.log(ctx).Warn("Failed to schedule unconfirmed account expiry", slog.Any("accountID", account.ID), slog.Any("error", err))
	}

	srv.log(ctx).Info("Account signed up", slog.Any("accountID", account.ID))

	return &usecase.MessageOutput{Message: msgPinSent}, nil
}

// Signin checks the credentials and sends a fresh PIN. It never issues a token.
func (srv *authService) Signin(ctx context.Context, input *usecase.SigninInput) (*usecase.MessageOutput, error) {
	account, err := srv.accountRepo.FindByIdentifier(ctx, normalizeIdentifier(input.Identifier))
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, domainerrors.ErrIncorrectCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}

	if !srv.credentials.VerifyPassword(input.Password, account.PasswordHash) || !account.Confirmed {
		srv.log(ctx).Debug("Signin rejected", slog.Any("accountID", account.ID))

		return nil, domainerrors.ErrIncorrectCredentials
	}

	if err := srv.sendPin(ctx, account); err != nil {
		if clearErr := srv.credentials.ClearSecret(ctx, entity.SecretPurposePin, account); clearErr != nil {
			srv.log(ctx).Error("Failed to clear PIN after delivery failure", slog.Any("accountID", account.ID), slog.Any("error", clearErr))
		}

		return nil, err
	}

	return &usecase.MessageOutput{Message: msgPinSent}, nil
}

func (srv *authService) sendPin(ctx context.Context, account *entity.Account) error {
	pin, err := srv.credentials.IssueSecret(ctx, entity.SecretPurposePin, account)
	if err != nil {
		return err
	}

	notification := &entity.Notification{
		Channel:   entity.ChannelSMS,
		Recipient: account.Phone,
		Template:  entity.TemplatePinCode,
		Params:    map[string]string{"pin": pin, "ttl": srv.pinTTL.String()},
	}
	if err := srv.notifier.Send(ctx, notification); err != nil {
		srv.log(ctx).Error("Failed to deliver PIN", slog.Any("accountID", account.ID), slog.Any("error", err))

		return domainerrors.ErrNotificationDelivery.WrapMessage(err.Error())
	}

	return nil
}

// ConfirmPin consumes the PIN and opens a session. The first confirmation marks the
// account confirmed, a confirmation on a soft-deleted account reactivates it.
func (srv *authService) ConfirmPin(ctx context.Context, input *usecase.ConfirmPinInput) (*usecase.SessionOutput, error) {
	account, err := srv.accountRepo.FindByIdentifier(ctx, normalizeIdentifier(input.Identifier))
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, domainerrors.ErrInvalidPin
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}

	if err := srv.credentials.ConsumeSecret(ctx, entity.SecretPurposePin, account, strings.TrimSpace(input.Pin)); err != nil {
		return nil, err
	}

	if err := srv.markConfirmed(ctx, account, false); err != nil {
		return nil, err
	}

	if !account.Active {
		reactivated, err := srv.accountRepo.Reactivate(ctx, account.ID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to reactivate account")
		}
		if reactivated {
			srv.cancelJob(ctx, entity.AccountPurgeKey(account.ID))
			srv.log(ctx).Info("Account reactivated", slog.Any("accountID", account.ID))
		}
		account.Active = true
		account.DeactivatedAt = nil
	}

	return srv.issueSession(account)
}

// markConfirmed flags the account and, when this is its first confirmation,
// cancels the pending expiry and welcomes the user.
func (srv *authService) markConfirmed(ctx context.Context, account *entity.Account, emailVerified bool) error {
	flipped, err := srv.accountRepo.MarkConfirmed(ctx, account.ID, emailVerified)
	if err != nil {
		return errors.Wrap(err, "failed to confirm account")
	}
	account.Confirmed = true
	if emailVerified {
		account.EmailVerified = true
	}
	if !flipped {
		return nil
	}

	srv.cancelJob(ctx, entity.AccountExpiryKey(account.ID))

	welcome := &entity.Notification{
		Channel:   entity.ChannelEmail,
		Recipient: account.Email,
		Template:  entity.TemplateWelcome,
		Params:    map[string]string{"username": account.Username},
	}
	if err := srv.notifier.Send(ctx, welcome); err != nil {
		srv.log(ctx).Warn("Failed to send welcome email", slog.Any("accountID", account.ID), slog.Any("error", err))
	}

	return nil
}

func (srv *authService) cancelJob(ctx context.Context, key string) {
	if err := srv.scheduler.Cancel(ctx, key); err != nil {
		srv.log(ctx).Warn("Failed to cancel scheduled job", slog.String("key", key), slog.Any("error", err))
	}
}

func (srv *authService) issueSession(account *entity.Account) (*usecase.SessionOutput, error) {
	token, expiresAt, err := srv.tokenService.GenerateToken(account.ID, account.Role.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate session token")
	}

	return &usecase.SessionOutput{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// SendConfirmationEmail emails a link that confirms the address.
func (srv *authService) SendConfirmationEmail(ctx context.Context, account *entity.Account) (*usecase.MessageOutput, error) {
	if account.EmailVerified {
		return nil, domainerrors.ErrEmailAlreadyVerified
	}

	if err := srv.sendLink(ctx, account, entity.SecretPurposeEmailConfirm, entity.TemplateEmailConfirmation, "/confirm-email/"); err != nil {
		return nil, err
	}

	return &usecase.MessageOutput{Message: msgEmailSent}, nil
}

// ConfirmEmail consumes the emailed token.
func (srv *authService) ConfirmEmail(ctx context.Context, token string) (*usecase.MessageOutput, error) {
	account, err := srv.credentials.ConsumeSecretByToken(ctx, entity.SecretPurposeEmailConfirm, token)
	if err != nil {
		return nil, err
	}

	if err := srv.markConfirmed(ctx, account, true); err != nil {
		return nil, err
	}

	return &usecase.MessageOutput{Message: msgEmailConfirmed}, nil
}

// ForgotPassword emails a reset link. Unknown and deactivated addresses get the same answer.
func (srv *authService) ForgotPassword(ctx context.Context, email string) (*usecase.MessageOutput, error) {
	account, err := srv.accountRepo.FindByEmail(ctx, normalizeIdentifier(email))
	if errors.Is(err, repository.ErrAccountNotFound) {
		return &usecase.MessageOutput{Message: msgResetLinkSent}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}
	if !account.Active {
		return &usecase.MessageOutput{Message: msgResetLinkSent}, nil
	}

	if err := srv.sendLink(ctx, account, entity.SecretPurposePasswordReset, entity.TemplatePasswordReset, "/reset-password/"); err != nil {
		return nil, err
	}

	return &usecase.MessageOutput{Message: msgResetLinkSent}, nil
}

func (srv *authService) sendLink(ctx context.Context, account *entity.Account, purpose entity.SecretPurpose, template entity.NotificationTemplate, path string) error {
	token, err := srv.credentials.IssueSecret(ctx, purpose, account)
	if err != nil {
		return err
	}

	notification := &entity.Notification{
		Channel:   entity.ChannelEmail,
		Recipient: account.Email,
		Template:  template,
		Params: map[string]string{
			"username": account.Username,
			"link":     srv.publicBaseURL + path + token,
			"ttl":      srv.linkTTL[purpose].String(),
		},
	}
	if err := srv.notifier.Send(ctx, notification); err != nil {
		srv.log(ctx).Error("Failed to deliver link", slog.String("purpose", string(purpose)), slog.Any("accountID", account.ID), slog.Any("error", err))
		if clearErr := srv.credentials.ClearSecret(ctx, purpose, account); clearErr != nil {
			srv.log(ctx).Error("Failed to clear secret after delivery failure", slog.Any("error", clearErr))
		}

		return domainerrors.ErrNotificationDelivery.WrapMessage(err.Error())
	}

	return nil
}

// CheckResetToken reports whether a reset token can still be used.
func (srv *authService) CheckResetToken(ctx context.Context, token string) (bool, error) {
	if _, err := srv.credentials.LookupSecretByToken(ctx, entity.SecretPurposePasswordReset, token); err != nil {
		return false, err
	}

	return true, nil
}

// ResetPassword sets a new password through a reset token and opens a session.
// The policy is checked first so a rejected password does not burn the token.
func (srv *authService) ResetPassword(ctx context.Context, token string, input *usecase.ResetPasswordInput) (*usecase.SessionOutput, error) {
	if err := srv.credentials.CheckPasswordPolicy(input.Password, input.PasswordConfirm); err != nil {
		return nil, err
	}

	account, err := srv.credentials.ConsumeSecretByToken(ctx, entity.SecretPurposePasswordReset, token)
	if err != nil {
		return nil, err
	}

	if err := srv.credentials.SetPassword(ctx, account, input.Password, input.PasswordConfirm); err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Password reset", slog.Any("accountID", account.ID))

	return srv.issueSession(account)
}

// ChangePassword replaces the password of a logged in account.
func (srv *authService) ChangePassword(ctx context.Context, account *entity.Account, input *usecase.ChangePasswordInput) (*usecase.SessionOutput, error) {
	if !srv.credentials.VerifyPassword(input.CurrentPassword, account.PasswordHash) {
		return nil, domainerrors.ErrIncorrectCurrentPassword
	}

	if err := srv.credentials.SetPassword(ctx, account, input.Password, input.PasswordConfirm); err != nil {
		return nil, err
	}

	return srv.issueSession(account)
}

// Authenticate resolves a session token. Tokens issued before the last password change are refused.
func (srv *authService) Authenticate(ctx context.Context, token string) (*entity.Account, error) {
	if token == "" {
		return nil, domainerrors.ErrNotAuthenticated
	}

	claims, err := srv.tokenService.ValidateToken(token)
	if errors.Is(err, service.ErrTokenExpired) {
		return nil, domainerrors.ErrTokenExpired
	}
	if err != nil {
		return nil, domainerrors.ErrInvalidToken
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return nil, domainerrors.ErrInvalidToken
	}

	account, err := srv.accountRepo.FindByID(ctx, accountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, domainerrors.ErrAccountGone
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session account")
	}
	if !account.Active {
		return nil, domainerrors.ErrAccountGone
	}

	if account.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, domainerrors.ErrPasswordChangedSince
	}

	return account, nil
}

// DeactivateMe soft-deletes the account and schedules its purge.
func (srv *authService) DeactivateMe(ctx context.Context, account *entity.Account) error {
	now := srv.now()
	err := srv.accountRepo.Deactivate(ctx, account.ID, now)
	if errors.Is(err, repository.ErrStateConflict) {
		return domainerrors.ErrAccountGone
	}
	if err != nil {
		return errors.Wrap(err, "failed to deactivate account")
	}
	account.Active = false
	account.DeactivatedAt = &now

	job := entity.Job{
		Key:      entity.AccountPurgeKey(account.ID),
		Kind:     entity.JobAccountPurge,
		EntityID: account.ID,
		RunAt:    now.Add(srv.purgeDelay),
	}
	if err := srv.scheduler.Schedule(ctx, job); err != nil {
		srv.log(ctx).Warn("Failed to schedule account purge", slog.Any("accountID", account.ID), slog.Any("error", err))
	}

	srv.log(ctx).Info("Account deactivated", slog.Any("accountID", account.ID))

	return nil
}

// DeleteAccount removes an account with its parkings and reservations. Parkings the
// account was renting are freed first.
func (srv *authService) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	removed, err := removeAccount(ctx, srv.txManager, accountID, deleteAny)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return domainerrors.ErrAccountNotFound
	}
	if err != nil {
		return errors.Wrap(err, "failed to delete account")
	}

	srv.cancelJob(ctx, entity.AccountExpiryKey(accountID))
	srv.cancelJob(ctx, entity.AccountPurgeKey(accountID))
	for _, occupation := range removed.occupations {
		if occupation.State == entity.OccupationPendingConfirmation {
			srv.cancelJob(ctx, entity.OccupationConfirmationKey(occupation.ID))
		}
	}

	srv.log(ctx).Info("Account deleted", slog.Any("accountID", accountID))

	return nil
}

func normalizeIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier)
	}

	return identifier
}
