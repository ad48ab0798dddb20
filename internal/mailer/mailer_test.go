package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVerifyEmail(t *testing.T) {
	subject, body, err := render(TemplateVerifyEmail, map[string]string{
		"name":  "Ada",
		"host":  "https://registro.example.org",
		"token": "4f3c0d2e-0000-0000-0000-000000000000",
	})
	require.NoError(t, err)
	assert.Contains(t, subject, "Verifica")
	assert.Contains(t, body, "https://registro.example.org/verify/4f3c0d2e-0000-0000-0000-000000000000")
}

func TestRenderSeatConfirmation(t *testing.T) {
	_, body, err := render(TemplateSeatConfirmation, map[string]string{
		"name":    "Ada",
		"host":    "https://registro.example.org",
		"token":   "tok",
		"expires": "2026-02-20T12:00:00Z",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "/confirm/tok")
	assert.Contains(t, body, "2026-02-20T12:00:00Z")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, _, err := render("newsletter", nil)
	assert.Error(t, err)
}
