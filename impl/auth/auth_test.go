package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgaccess/entity"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, c claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestIdentityByToken(t *testing.T) {
	a := New(testSecret)
	token := signToken(t, testSecret, claims{
		Email: "user@example.com",
		Role:  entity.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	identity, err := a.IdentityByToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.Id)
	assert.Equal(t, "user@example.com", identity.Email)
	assert.True(t, identity.IsAdmin())
}

func TestIdentityByTokenWrongSecret(t *testing.T) {
	a := New(testSecret)
	token := signToken(t, "other-secret", claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
	})

	_, err := a.IdentityByToken(token)
	assert.Error(t, err)
}

func TestIdentityByTokenExpired(t *testing.T) {
	a := New(testSecret)
	token := signToken(t, testSecret, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := a.IdentityByToken(token)
	assert.Error(t, err)
}

func TestIdentityByTokenNoSubject(t *testing.T) {
	a := New(testSecret)
	token := signToken(t, testSecret, claims{Email: "user@example.com"})

	_, err := a.IdentityByToken(token)
	assert.Error(t, err)
}

func TestIdentityByTokenNoSecretConfigured(t *testing.T) {
	a := New("")

	_, err := a.IdentityByToken("whatever")
	assert.Error(t, err)
}

func TestIdentityByTokenGarbage(t *testing.T) {
	a := New(testSecret)

	_, err := a.IdentityByToken("not-a-jwt")
	assert.Error(t, err)
}
