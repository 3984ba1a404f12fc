package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxeaccount/luxeaccount-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret: "test-secret",
		Issuer: "luxeaccount-auth",
	}
}

func mintToken(t *testing.T, cfg config.JWTConfig, claims SessionClaims) string {
	t.Helper()
	if claims.Issuer == "" {
		claims.Issuer = cfg.Issuer
	}
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	return signed
}

func TestParseSessionTokenRoundTrip(t *testing.T) {
	cfg := testJWTConfig()
	signed := mintToken(t, cfg, SessionClaims{
		UserID: "user_123",
		Email:  "agent@luxeaccount.dev",
		Name:   "Ada",
	})

	claims, err := ParseSessionToken(cfg, signed)
	require.NoError(t, err)
	assert.Equal(t, "user_123", claims.PrincipalID())
	assert.Equal(t, "agent@luxeaccount.dev", claims.Email)
}

func TestParseSessionTokenFallsBackToSubject(t *testing.T) {
	cfg := testJWTConfig()
	signed := mintToken(t, cfg, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub_42"},
	})

	claims, err := ParseSessionToken(cfg, signed)
	require.NoError(t, err)
	assert.Equal(t, "sub_42", claims.PrincipalID())
}

func TestParseSessionTokenRejectsWrongSecret(t *testing.T) {
	cfg := testJWTConfig()
	signed := mintToken(t, cfg, SessionClaims{UserID: "user_123"})

	other := cfg
	other.Secret = "different-secret"
	_, err := ParseSessionToken(other, signed)
	assert.Error(t, err)
}

func TestParseSessionTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	signed := mintToken(t, cfg, SessionClaims{
		UserID: "user_123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})

	_, err := ParseSessionToken(cfg, signed)
	assert.Error(t, err)
}

func TestParseSessionTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	signed := mintToken(t, cfg, SessionClaims{
		UserID:           "user_123",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
	})

	_, err := ParseSessionToken(cfg, signed)
	assert.Error(t, err)
}

func TestParseSessionTokenRejectsMissingIdentity(t *testing.T) {
	cfg := testJWTConfig()
	signed := mintToken(t, cfg, SessionClaims{})

	_, err := ParseSessionToken(cfg, signed)
	assert.Error(t, err)
}

func TestParseSessionTokenRejectsUnsignedToken(t *testing.T) {
	cfg := testJWTConfig()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{
		UserID: "user_123",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseSessionToken(cfg, signed)
	assert.Error(t, err)
}
