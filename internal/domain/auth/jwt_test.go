package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTokenRoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret", "stockcore"))

	token, _, err := svc.GenerateAccessToken(
		"user-1", "clerk@example.com",
		[]string{"clerk"},
		[]string{"stock.read", "inventory.adjust.write"},
		[]string{"store-1"},
		false,
	)
	require.NoError(t, err)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.UserID)
	assert.Equal(t, []string{"stock.read", "inventory.adjust.write"}, user.Permissions)
	assert.Equal(t, []string{"store-1"}, user.StoreIDs)
	assert.False(t, user.IsAdmin)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	issuer := NewJWTService(DefaultJWTConfig("secret-a", ""))
	verifier := NewJWTService(DefaultJWTConfig("secret-b", ""))

	token, _, err := issuer.GenerateAccessToken("user-1", "", nil, nil, nil, false)
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret", ""))
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}
