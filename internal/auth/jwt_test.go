package auth_test

import (
	"testing"

	"github.com/kiranshivaraju/trainhub/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateToken_RoundTrip(t *testing.T) {
	v := auth.NewValidator("test-secret")

	token, err := v.GenerateToken(7, "dev@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "dev@example.com", claims.Email)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	issuer := auth.NewValidator("secret-a")
	verifier := auth.NewValidator("secret-b")

	token, err := issuer.GenerateToken(1, "a@example.com")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	v := auth.NewValidator("test-secret")

	_, err := v.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
