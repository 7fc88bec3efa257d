package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, secret string, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "ana@example.com",
		Roles: []string{"editor"},
	}
}

func TestValidateToken(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("s3cret"))

	user, err := svc.ValidateToken(sign(t, jwt.SigningMethodHS256, "s3cret", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.UserID)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.False(t, user.IsAdmin)
}

func TestValidateToken_AdminRole(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("s3cret"))
	c := validClaims()
	c.Roles = []string{RoleAdmin}

	user, err := svc.ValidateToken(sign(t, jwt.SigningMethodHS256, "s3cret", c))
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := NewJWTService(JWTConfig{Secret: "s3cret", Issuer: "idp"})

	expired := validClaims()
	expired.Issuer = "idp"
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExp := validClaims()
	noExp.Issuer = "idp"
	noExp.ExpiresAt = nil

	wrongIss := validClaims()
	wrongIss.Issuer = "other"

	good := validClaims()
	good.Issuer = "idp"

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, "nope", good)},
		{"expired", sign(t, jwt.SigningMethodHS256, "s3cret", expired)},
		{"no expiry", sign(t, jwt.SigningMethodHS256, "s3cret", noExp)},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, "s3cret", wrongIss)},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestValidateToken_NoSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{}).ValidateToken("x")
	assert.Error(t, err)
}
