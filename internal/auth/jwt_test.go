package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return tok
}

func TestVerifyHS256(t *testing.T) {
	v, err := NewJWTValidator("HS256", testSecret, "")
	require.NoError(t, err)

	token := signHS256(t, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestVerifyClaimFallback(t *testing.T) {
	v, err := NewJWTValidator("HS256", testSecret, "")
	require.NoError(t, err)

	userID, err := v.Verify(signHS256(t, jwt.MapClaims{"userId": "u1"}))
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	userID, err = v.Verify(signHS256(t, jwt.MapClaims{"id": "u2"}))
	require.NoError(t, err)
	assert.Equal(t, "u2", userID)

	_, err = v.Verify(signHS256(t, jwt.MapClaims{"name": "no id here"}))
	assert.Error(t, err)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v, err := NewJWTValidator("HS256", testSecret, "")
	require.NoError(t, err)

	// wrong secret
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("other"))
	require.NoError(t, err)
	_, err = v.Verify(tok)
	assert.Error(t, err)

	// expired
	_, err = v.Verify(signHS256(t, jwt.MapClaims{
		"sub": "x",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}))
	assert.Error(t, err)

	// alg none is never acceptable
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "x"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Verify(none)
	assert.Error(t, err)

	_, err = v.Verify("not.a.token")
	assert.Error(t, err)
}

func TestNewValidatorConfigErrors(t *testing.T) {
	_, err := NewJWTValidator("HS256", "", "")
	assert.Error(t, err)

	_, err = NewJWTValidator("ES256", "", "")
	assert.Error(t, err)

	_, err = NewJWTValidator("RS256", "", "/nonexistent/key.pem")
	assert.Error(t, err)
}
