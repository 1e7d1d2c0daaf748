package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndValidate(t *testing.T) {
	svc := NewHMACService("secret", "hospital")

	token, err := svc.Sign("u-1", "Ana", []string{"approver"}, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "Ana", claims.Name)
	assert.Equal(t, []string{"approver"}, claims.Roles)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	svc := NewHMACService("secret", "hospital")

	other, err := NewHMACService("other", "hospital").Sign("u-1", "Ana", nil, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := svc.Sign("u-1", "Ana", nil, -time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewHMACService("secret", "elsewhere").Sign("u-1", "Ana", nil, time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
