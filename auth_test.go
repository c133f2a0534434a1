package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)
	require.True(t, comparePassword(hash, "hunter2"))
	require.False(t, comparePassword(hash, "hunter3"))
	require.False(t, comparePassword("not-a-hash", "hunter2"))
}

func TestTokenIssueVerify(t *testing.T) {
	svc := NewTokenService("secret", 30*time.Minute)

	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.Subject)
	require.NotEmpty(t, claims.ID, "jti must be set for revocation")
	require.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, time.Minute)

	// every token carries a distinct jti
	token2, err := svc.Issue("user-123")
	require.NoError(t, err)
	claims2, err := svc.Verify(token2)
	require.NoError(t, err)
	require.NotEqual(t, claims.ID, claims2.ID)
}

func TestTokenExpiry(t *testing.T) {
	svc := NewTokenService("secret", -time.Minute)
	token, err := svc.Issue("user-123")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenWrongSecret(t *testing.T) {
	issued, err := NewTokenService("secret-a", time.Hour).Issue("user-123")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Verify(issued)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRejectsUnsignedAlgorithm(t *testing.T) {
	// an alg=none token must never pass, whatever its claims say
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenService("secret", time.Hour).Verify(raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExpiredTokenRejectedByMiddleware(t *testing.T) {
	app := newTestApp()
	app.Tokens = NewTokenService("test-secret", -time.Minute)
	_, token := registerUser(t, app, "a@x.com", "pw", "A")

	rec := doRequest(t, app, "GET", "/todos", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, CodeUnauthenticated, errorCode(t, rec))
}
