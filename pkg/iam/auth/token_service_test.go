package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentsift/sift/pkg/kernel"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewTokenService("test-secret", "sift", time.Hour)

	token, err := svc.GenerateAccessToken(kernel.NewAccountID("acc-1"), "owner@acme.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, kernel.NewAccountID("acc-1"), claims.AccountID)
	assert.Equal(t, kernel.Email("owner@acme.com"), claims.Email)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", "sift", time.Hour)
	verifier := NewTokenService("secret-b", "sift", time.Hour)

	token, err := issuer.GenerateAccessToken(kernel.NewAccountID("acc-1"), "owner@acme.com")
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService("test-secret", "sift", -time.Minute)

	token, err := svc.GenerateAccessToken(kernel.NewAccountID("acc-1"), "owner@acme.com")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-secret", "sift", time.Hour)

	_, err := svc.ValidateAccessToken("not-a-token")
	assert.Error(t, err)
}
