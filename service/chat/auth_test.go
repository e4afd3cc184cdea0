package chat

import (
	"TransitChat/tools/errs"
	"TransitChat/tools/security"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testToken(t *testing.T, secret []byte, userID string) string {
	t.Helper()
	token, _, err := security.Generate(security.DefaultOptions(secret), userID, userID+"@example.com", "rider")
	require.NoError(t, err)
	return token
}

func TestAuthenticateCredentialSources(t *testing.T) {
	secret := []byte("test-secret")
	a := NewAuthenticator(security.NewVerifier(security.DefaultOptions(secret)))
	token := testToken(t, secret, "rider-1")

	t.Run("cookie", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Cookie", accessTokenCookie+"="+token)
		claims, err := a.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "rider-1", claims.UserID)
	})

	t.Run("query param", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws?token="+token, nil)
		claims, err := a.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "rider-1", claims.UserID)
	})

	t.Run("authorization header", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		claims, err := a.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "rider-1", claims.UserID)
	})

	t.Run("cookie wins over header", func(t *testing.T) {
		other := testToken(t, secret, "driver-9")
		r := httptest.NewRequest("GET", "/ws", nil)
		r.Header.Set("Cookie", accessTokenCookie+"="+token)
		r.Header.Set("Authorization", "Bearer "+other)
		claims, err := a.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "rider-1", claims.UserID)
	})
}

func TestAuthenticateMissingCredential(t *testing.T) {
	a := NewAuthenticator(security.NewVerifier(security.DefaultOptions([]byte("test-secret"))))

	r := httptest.NewRequest("GET", "/ws", nil)
	_, err := a.Authenticate(r)
	assert.ErrorIs(t, err, errs.ErrAuthentication)
}

func TestAuthenticateBadToken(t *testing.T) {
	a := NewAuthenticator(security.NewVerifier(security.DefaultOptions([]byte("test-secret"))))

	r := httptest.NewRequest("GET", "/ws?token=not-a-jwt", nil)
	_, err := a.Authenticate(r)
	assert.ErrorIs(t, err, errs.ErrAuthentication)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	token := testToken(t, []byte("secret-a"), "rider-1")
	a := NewAuthenticator(security.NewVerifier(security.DefaultOptions([]byte("secret-b"))))

	r := httptest.NewRequest("GET", "/ws?token="+token, nil)
	_, err := a.Authenticate(r)
	assert.ErrorIs(t, err, errs.ErrAuthentication)
}
