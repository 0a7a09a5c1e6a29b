package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWT() *JWTManager {
	return NewJWTManager("access-secret", "refresh-secret", time.Hour, 24*time.Hour)
}

func TestGenerateAndParseAccessToken(t *testing.T) {
	m := newTestJWT()

	tok, exp, err := m.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := m.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.SessionID)
}

func TestParseTokenWrongSecret(t *testing.T) {
	m := newTestJWT()

	tok, _, err := m.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)

	// Refresh secret must not validate an access token.
	_, err = m.ParseRefreshToken(tok)
	assert.Error(t, err)
}

func TestParseExpiredToken(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", -time.Minute, time.Hour)

	tok, _, err := m.GenerateAccessToken("u1", "s1")
	require.NoError(t, err)

	_, err = m.ParseAccessToken(tok)
	assert.Error(t, err)
}

func TestParseGarbageToken(t *testing.T) {
	m := newTestJWT()
	_, err := m.ParseAccessToken("not.a.jwt")
	assert.Error(t, err)
}
