package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClaims(expiresIn time.Duration) Claims {
	now := time.Now()
	return Claims{
		AccountID: "acc-1",
		SessionID: "sess-1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "test-issuer",
			Audience:  jwt.ClaimStrings{"test-issuer"},
		},
	}
}

func TestJWTRoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("test-issuer", "test-issuer")

	tok, err := a.GenerateToken(newClaims(time.Hour), "secret")
	require.NoError(t, err)

	claims, err := a.ValidateToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "sess-1", claims.SessionID)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	a := NewJWTAuthenticator("test-issuer", "test-issuer")

	tok, err := a.GenerateToken(newClaims(time.Hour), "secret")
	require.NoError(t, err)

	_, err = a.ValidateToken(tok, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	a := NewJWTAuthenticator("test-issuer", "test-issuer")

	tok, err := a.GenerateToken(newClaims(-time.Minute), "secret")
	require.NoError(t, err)

	_, err = a.ValidateToken(tok, "secret")
	assert.Error(t, err)
}
