package helpers

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResetToken(t *testing.T) {
	tok, err := NewResetToken(ResetTokenBytes)
	require.NoError(t, err)

	b, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)
	assert.Len(t, b, ResetTokenBytes)
}

func TestNewResetTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewResetToken(ResetTokenBytes)
		require.NoError(t, err)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
