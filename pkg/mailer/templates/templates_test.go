package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasbm92/go-auth-service/config"
)

func testConfig() *config.Config {
	return &config.Config{
		AppName:     "go-auth-service",
		CompanyName: "Acme",
		SupportURL:  "https://example.com/support",
	}
}

func TestRenderResetPassword(t *testing.T) {
	expires := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	data := NewResetPasswordData(testConfig(), "alice", "alice@example.com",
		"http://localhost:8080/reset-password?token=abc123", expires)

	subject, text, html, err := Render(ResetPassword, data)
	require.NoError(t, err)

	assert.Equal(t, "Password Reset Request", subject)
	assert.Contains(t, text, "Hi alice,")
	assert.Contains(t, text, "http://localhost:8080/reset-password?token=abc123")
	assert.Contains(t, text, "expire in 1 hour")
	assert.Contains(t, text, "please ignore this email")
	assert.Contains(t, html, `href="http://localhost:8080/reset-password?token=abc123"`)
}

func TestRenderWelcome(t *testing.T) {
	data := NewWelcomeData(testConfig(), "alice", "alice@example.com")

	subject, text, html, err := Render(Welcome, data)
	require.NoError(t, err)

	assert.Equal(t, "Welcome to go-auth-service", subject)
	assert.Contains(t, text, "Hi alice,")
	assert.Contains(t, html, "Welcome, alice!")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, _, err := Render("does_not_exist", nil)
	assert.Error(t, err)
}
