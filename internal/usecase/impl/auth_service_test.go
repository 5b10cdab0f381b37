package impl

import (
	"context"
	"strings"
	"testing"
	"time"

	"parkshare/config"
	"parkshare/internal/domain/entity"
	domainerrors "parkshare/internal/domain/errors"
	"parkshare/internal/domain/repository"
	"parkshare/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signupInput() *usecase.SignupInput {
	return &usecase.SignupInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Phone:           "+15550000001",
		Password:        "Password1!",
		PasswordConfirm: "Password1!",
	}
}

func lastPin(t *testing.T, env *testEnv) string {
	t.Helper()

	sms := env.notifier.last(entity.TemplatePinCode)
	require.NotNil(t, sms)

	return sms.Params["pin"]
}

func linkToken(t *testing.T, env *testEnv, template entity.NotificationTemplate) string {
	t.Helper()

	email := env.notifier.last(template)
	require.NotNil(t, email)
	link := email.Params["link"]

	return link[strings.LastIndex(link, "/")+1:]
}

func TestAuthService_SignupConfirmPin_PinIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.auth.Signup(ctx, signupInput())
	require.NoError(t, err)
	assert.NotEmpty(t, out.Message)

	account, err := env.accounts.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, account.Confirmed)
	assert.True(t, env.scheduler.has(entity.AccountExpiryKey(account.ID)))

	sms := env.notifier.last(entity.TemplatePinCode)
	require.NotNil(t, sms)
	assert.Equal(t, entity.ChannelSMS, sms.Channel)
	assert.Equal(t, "+15550000001", sms.Recipient)

	session, err := env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "alice", Pin: sms.Params["pin"]})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.True(t, session.Account.Confirmed)
	assert.False(t, env.scheduler.has(entity.AccountExpiryKey(account.ID)))
	assert.Equal(t, 1, env.notifier.count(entity.TemplateWelcome))

	_, err = env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "alice", Pin: sms.Params["pin"]})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidPin)

	authenticated, err := env.auth.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, authenticated.ID)
}

func TestAuthService_Signup_DeliveryFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.notifier.fail[entity.TemplatePinCode] = assert.AnError

	_, err := env.auth.Signup(ctx, signupInput())

	assert.ErrorIs(t, err, domainerrors.ErrNotificationDelivery)
	_, err = env.accounts.FindByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
	assert.Empty(t, env.scheduler.jobs)
}

func TestAuthService_Signin_GenericRejection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "bob", entity.RoleClient)
	unconfirmed := env.seedAccount(t, "carl", entity.RoleClient)
	env.store.accounts[unconfirmed.ID].Confirmed = false

	tests := []struct {
		name  string
		input *usecase.SigninInput
	}{
		{name: "unknown account", input: &usecase.SigninInput{Identifier: "nobody", Password: "Password1!"}},
		{name: "wrong password", input: &usecase.SigninInput{Identifier: "bob", Password: "Password2!"}},
		{name: "unconfirmed", input: &usecase.SigninInput{Identifier: "carl", Password: "Password1!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Signin(ctx, tt.input)
			assert.ErrorIs(t, err, domainerrors.ErrIncorrectCredentials)
		})
	}
	assert.Zero(t, env.notifier.count(entity.TemplatePinCode))
}

func TestAuthService_Signin_ByEmailSendsFreshPin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "bob", entity.RoleClient)

	_, err := env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "BOB@example.com", Password: "Password1!"})
	require.NoError(t, err)
	first := lastPin(t, env)

	_, err = env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "Password1!"})
	require.NoError(t, err)
	second := lastPin(t, env)

	_, err = env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "bob", Pin: first})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidPin)

	_, err = env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "bob@example.com", Pin: second})
	assert.NoError(t, err)
}

func TestAuthService_Signin_DeliveryFailureClearsPin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "bob", entity.RoleClient)
	env.notifier.fail[entity.TemplatePinCode] = assert.AnError

	_, err := env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "Password1!"})

	assert.ErrorIs(t, err, domainerrors.ErrNotificationDelivery)
	stored, err := env.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Pin)
}

func TestAuthService_ConfirmPin_ExpiredPin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "bob", entity.RoleClient)

	_, err := env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "Password1!"})
	require.NoError(t, err)
	pin := lastPin(t, env)

	env.credentials.(*credentialService).now = func() time.Time { return time.Now().Add(5*time.Minute + time.Second) }

	_, err = env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "bob", Pin: pin})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidPin)
}

func TestAuthService_ConfirmPin_RepeatedWrongPinsDiscardPin(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Secrets.PinMaxAttempts = 3 })
	ctx := context.Background()
	env.seedAccount(t, "bob", entity.RoleClient)

	_, err := env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "Password1!"})
	require.NoError(t, err)
	pin := lastPin(t, env)

	for _, guess := range []string{"000001", "000002", "000003"} {
		_, err := env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "bob", Pin: guess})
		require.ErrorIs(t, err, domainerrors.ErrInvalidPin)
	}

	_, err = env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "bob", Pin: pin})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidPin)

	_, err = env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "Password1!"})
	require.NoError(t, err)
	session, err := env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "bob", Pin: lastPin(t, env)})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestAuthService_ConfirmPin_UnknownIdentifier(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.auth.ConfirmPin(context.Background(), &usecase.ConfirmPinInput{Identifier: "ghost", Pin: "123456"})

	assert.ErrorIs(t, err, domainerrors.ErrInvalidPin)
}

func TestAuthService_DeactivateThenPinReactivates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "bob", entity.RoleClient)

	token, _, err := env.tokens.GenerateToken(account.ID, account.Role.String())
	require.NoError(t, err)

	require.NoError(t, env.auth.DeactivateMe(ctx, account))
	assert.True(t, env.scheduler.has(entity.AccountPurgeKey(account.ID)))

	_, err = env.auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domainerrors.ErrAccountGone)

	_, err = env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "Password1!"})
	require.NoError(t, err)

	session, err := env.auth.ConfirmPin(ctx, &usecase.ConfirmPinInput{Identifier: "bob", Pin: lastPin(t, env)})
	require.NoError(t, err)
	assert.True(t, session.Account.Active)
	assert.False(t, env.scheduler.has(entity.AccountPurgeKey(account.ID)))

	_, err = env.auth.Authenticate(ctx, session.Token)
	assert.NoError(t, err)
}

func TestAuthService_EmailConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "bob", entity.RoleClient)

	_, err := env.auth.SendConfirmationEmail(ctx, account)
	require.NoError(t, err)

	email := env.notifier.last(entity.TemplateEmailConfirmation)
	require.NotNil(t, email)
	assert.True(t, strings.HasPrefix(email.Params["link"], "https://parkshare.test/confirm-email/"))

	token := linkToken(t, env, entity.TemplateEmailConfirmation)
	_, err = env.auth.ConfirmEmail(ctx, token)
	require.NoError(t, err)

	stored, err := env.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	_, err = env.auth.ConfirmEmail(ctx, token)
	assert.ErrorIs(t, err, domainerrors.ErrConfirmationLinkInvalid)

	_, err = env.auth.SendConfirmationEmail(ctx, stored)
	assert.ErrorIs(t, err, domainerrors.ErrEmailAlreadyVerified)
}

func TestAuthService_ConfirmEmail_ConfirmsPendingAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Signup(ctx, signupInput())
	require.NoError(t, err)
	account, err := env.accounts.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)

	_, err = env.auth.SendConfirmationEmail(ctx, account)
	require.NoError(t, err)
	_, err = env.auth.ConfirmEmail(ctx, linkToken(t, env, entity.TemplateEmailConfirmation))
	require.NoError(t, err)

	assert.False(t, env.scheduler.has(entity.AccountExpiryKey(account.ID)))
}

func TestAuthService_SendConfirmationEmail_DeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "bob", entity.RoleClient)
	env.notifier.fail[entity.TemplateEmailConfirmation] = assert.AnError

	_, err := env.auth.SendConfirmationEmail(ctx, account)

	assert.ErrorIs(t, err, domainerrors.ErrNotificationDelivery)
	stored, err := env.accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EmailConfirm)
}

func TestAuthService_ForgotPassword_UnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.auth.ForgotPassword(context.Background(), "ghost@example.com")

	require.NoError(t, err)
	assert.Equal(t, msgResetLinkSent, out.Message)
	assert.Zero(t, env.notifier.count(entity.TemplatePasswordReset))
}

func TestAuthService_ResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "bob", entity.RoleClient)

	_, err := env.auth.ForgotPassword(ctx, "bob@example.com")
	require.NoError(t, err)
	token := linkToken(t, env, entity.TemplatePasswordReset)

	valid, err := env.auth.CheckResetToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, valid)

	_, err = env.auth.ResetPassword(ctx, token, &usecase.ResetPasswordInput{Password: "weak", PasswordConfirm: "weak"})
	assert.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	valid, err = env.auth.CheckResetToken(ctx, token)
	require.NoError(t, err)
	assert.True(t, valid)

	session, err := env.auth.ResetPassword(ctx, token, &usecase.ResetPasswordInput{Password: "NewPassword1!", PasswordConfirm: "NewPassword1!"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = env.auth.CheckResetToken(ctx, token)
	assert.ErrorIs(t, err, domainerrors.ErrResetTokenInvalid)

	_, err = env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "Password1!"})
	assert.ErrorIs(t, err, domainerrors.ErrIncorrectCredentials)
	_, err = env.auth.Signin(ctx, &usecase.SigninInput{Identifier: "bob", Password: "NewPassword1!"})
	assert.NoError(t, err)
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "bob", entity.RoleClient)

	oldToken, _, err := env.tokens.GenerateToken(account.ID, account.Role.String())
	require.NoError(t, err)

	_, err = env.auth.ChangePassword(ctx, account, &usecase.ChangePasswordInput{
		CurrentPassword: "wrong", Password: "NewPassword1!", PasswordConfirm: "NewPassword1!",
	})
	assert.ErrorIs(t, err, domainerrors.ErrIncorrectCurrentPassword)

	// simulate the change happening well after the old token was issued
	env.credentials.(*credentialService).now = func() time.Time { return time.Now().Add(time.Hour) }

	session, err := env.auth.ChangePassword(ctx, account, &usecase.ChangePasswordInput{
		CurrentPassword: "Password1!", Password: "NewPassword1!", PasswordConfirm: "NewPassword1!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, err = env.auth.Authenticate(ctx, oldToken)
	assert.ErrorIs(t, err, domainerrors.ErrPasswordChangedSince)
}

func TestAuthService_Authenticate_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "bob", entity.RoleClient)

	token, _, err := env.tokens.GenerateToken(account.ID, account.Role.String())
	require.NoError(t, err)
	require.NoError(t, env.auth.DeleteAccount(ctx, account.ID))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "missing", token: "", want: domainerrors.ErrNotAuthenticated},
		{name: "garbage", token: "not.a.jwt", want: domainerrors.ErrInvalidToken},
		{name: "deleted account", token: token, want: domainerrors.ErrAccountGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Authenticate(ctx, tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAuthService_DeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedAccount(t, "owner", entity.RoleProvider)
	parking := env.seedParking(t, owner, 200)

	require.NoError(t, env.auth.DeleteAccount(ctx, owner.ID))

	_, err := env.parkings.FindByID(ctx, parking.ID)
	assert.ErrorIs(t, err, repository.ErrParkingNotFound)
	assert.Contains(t, env.scheduler.cancelled, entity.AccountPurgeKey(owner.ID))

	assert.ErrorIs(t, env.auth.DeleteAccount(ctx, owner.ID), domainerrors.ErrAccountNotFound)
}

func TestAuthService_DeleteAccount_FreesRentedParking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedAccount(t, "owner", entity.RoleProvider)
	renter := env.seedAccount(t, "renter", entity.RoleClient)
	next := env.seedAccount(t, "next", entity.RoleClient)
	parking := env.seedParking(t, owner, 200)

	_, err := env.reservations.StartReservation(ctx, parking.ID, renter)
	require.NoError(t, err)
	require.Equal(t, entity.OccupancyOccupied, env.parkingState(t, parking.ID))

	require.NoError(t, env.auth.DeleteAccount(ctx, renter.ID))

	assert.Equal(t, entity.OccupancyFree, env.parkingState(t, parking.ID))
	_, err = env.occupations.FindOpenByParking(ctx, parking.ID)
	assert.ErrorIs(t, err, repository.ErrOccupationNotFound)

	occupation, err := env.reservations.StartReservation(ctx, parking.ID, next)
	require.NoError(t, err)
	assert.Equal(t, next.ID, occupation.RenterID)
}

func TestAuthService_DeleteAccount_CancelsPendingConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.seedAccount(t, "owner", entity.RoleProvider)
	renter := env.seedAccount(t, "renter", entity.RoleClient)
	parking := env.seedParking(t, owner, 200)
	env.store.parkings[parking.ID].Occupancy = entity.OccupancyPendingConfirmation
	pending := &entity.Occupation{
		ParkingID:        parking.ID,
		RenterID:         renter.ID,
		State:            entity.OccupationPendingConfirmation,
		HourlyPriceCents: 200,
		StartedAt:        time.Now(),
	}
	require.NoError(t, env.occupations.Create(ctx, pending))

	require.NoError(t, env.auth.DeleteAccount(ctx, renter.ID))

	assert.Equal(t, entity.OccupancyFree, env.parkingState(t, parking.ID))
	assert.Contains(t, env.scheduler.cancelled, entity.OccupationConfirmationKey(pending.ID))
}
