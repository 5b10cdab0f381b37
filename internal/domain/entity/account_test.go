package entity

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestAccount_ChangedPasswordAfter(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	account := &Account{}
	assert.False(t, account.ChangedPasswordAfter(issuedAt), "never changed")

	before := issuedAt.Add(-time.Second)
	account.PasswordChangedAt = &before
	assert.False(t, account.ChangedPasswordAfter(issuedAt))

	sameSecond := issuedAt.Add(500 * time.Millisecond)
	account.PasswordChangedAt = &sameSecond
	assert.False(t, account.ChangedPasswordAfter(issuedAt), "sub-second changes do not invalidate")

	after := issuedAt.Add(2 * time.Second)
	account.PasswordChangedAt = &after
	assert.True(t, account.ChangedPasswordAfter(issuedAt))
}

func TestAccount_SecretAccessors(t *testing.T) {
	account := &Account{}
	pin := &TransientSecret{Hash: "abc", ExpiresAt: time.Now().Add(time.Minute)}

	account.SetSecret(SecretPurposePin, pin)

	assert.Same(t, pin, account.Secret(SecretPurposePin))
	assert.Nil(t, account.Secret(SecretPurposePasswordReset))
	assert.Nil(t, account.Secret(SecretPurposeEmailConfirm))

	account.SetSecret(SecretPurposePin, nil)
	assert.Nil(t, account.Secret(SecretPurposePin))
}

func TestTransientSecret_ActiveAt(t *testing.T) {
	now := time.Now()

	var missing *TransientSecret
	assert.False(t, missing.ActiveAt(now))
	assert.True(t, (&TransientSecret{Hash: "h", ExpiresAt: now.Add(time.Second)}).ActiveAt(now))
	assert.False(t, (&TransientSecret{Hash: "h", ExpiresAt: now}).ActiveAt(now))
	assert.False(t, (&TransientSecret{ExpiresAt: now.Add(time.Hour)}).ActiveAt(now))
}

func TestRole_IsSelfAssignable(t *testing.T) {
	assert.True(t, RoleClient.IsSelfAssignable())
	assert.True(t, RoleProvider.IsSelfAssignable())
	assert.False(t, RoleAdmin.IsSelfAssignable())
	assert.False(t, Role("owner").IsValid())
}

func TestLocation_IsValid(t *testing.T) {
	assert.True(t, Location{Point: orb.Point{6.63, 46.52}}.IsValid())
	assert.False(t, Location{Point: orb.Point{200, 46.52}}.IsValid())
	assert.False(t, Location{Point: orb.Point{6.63, -91}}.IsValid())
}
