package email_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/codeai/pkg/email"
	"github.com/dmitrymomot/codeai/pkg/validator"
)

func validParams() email.SendEmailParams {
	return email.SendEmailParams{
		SendTo:   "user@example.com",
		Subject:  "Hello",
		BodyHTML: "<p>hi</p>",
		Tag:      "welcome",
	}
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *email.SendEmailParams)
		field  string
	}{
		{"valid", func(*email.SendEmailParams) {}, ""},
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = "" }, "send_to"},
		{"bad recipient", func(p *email.SendEmailParams) { p.SendTo = "nope" }, "send_to"},
		{"blank subject", func(p *email.SendEmailParams) { p.Subject = "  " }, "subject"},
		{"empty body", func(p *email.SendEmailParams) { p.BodyHTML = "" }, "body_html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, validator.ExtractValidationErrors(err).Has(tt.field))
		})
	}
}

func TestDevSender(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "emails")
	sender := email.NewDevSender(dir)

	require.NoError(t, sender.SendEmail(context.Background(), validParams()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var htmlFile, jsonFile string
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".html":
			htmlFile = e.Name()
		case ".json":
			jsonFile = e.Name()
		}
	}
	require.NotEmpty(t, htmlFile)
	require.NotEmpty(t, jsonFile)
	assert.Contains(t, htmlFile, "welcome")

	body, err := os.ReadFile(filepath.Join(dir, htmlFile))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(body))

	raw, err := os.ReadFile(filepath.Join(dir, jsonFile))
	require.NoError(t, err)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "user@example.com", meta["send_to"])
	assert.Equal(t, "Hello", meta["subject"])
}

func TestDevSender_InvalidParams(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := validParams()
	p.SendTo = ""

	err := email.NewDevSender(dir).SendEmail(context.Background(), p)
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, email.NewLogSender(log).SendEmail(context.Background(), validParams()))
	assert.Contains(t, buf.String(), "email=user@example.com")
	assert.NotContains(t, buf.String(), "<p>hi</p>")
}

func TestNewSender(t *testing.T) {
	t.Parallel()

	base := email.Config{SenderEmail: "noreply@codeai.dev", SupportEmail: "support@codeai.dev"}

	t.Run("log by default", func(t *testing.T) {
		t.Parallel()
		s, err := email.NewSender(base, nil)
		require.NoError(t, err)
		assert.IsType(t, &email.LogSender{}, s)
	})

	t.Run("dev", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Driver = email.DriverDev
		cfg.DevDir = t.TempDir()
		s, err := email.NewSender(cfg, nil)
		require.NoError(t, err)
		assert.IsType(t, &email.DevSender{}, s)
	})

	t.Run("postmark requires tokens", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Driver = email.DriverPostmark
		_, err := email.NewSender(cfg, nil)
		assert.ErrorIs(t, err, email.ErrInvalidConfig)

		cfg.PostmarkServerToken = "server"
		cfg.PostmarkAccountToken = "account"
		s, err := email.NewSender(cfg, nil)
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("postmark rejects bad sender", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Driver = email.DriverPostmark
		cfg.PostmarkServerToken = "server"
		cfg.PostmarkAccountToken = "account"
		cfg.SenderEmail = "not-an-email"
		_, err := email.NewSender(cfg, nil)
		assert.ErrorIs(t, err, email.ErrInvalidConfig)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Parallel()
		cfg := base
		cfg.Driver = "carrier-pigeon"
		_, err := email.NewSender(cfg, nil)
		assert.ErrorIs(t, err, email.ErrUnknownDriver)
	})
}

func TestRender(t *testing.T) {
	t.Parallel()

	subject, body, err := email.Render(context.Background(), email.TemplatePasswordReset, email.TemplateData{
		Name:      "Jane",
		ResetURL:  "https://app.codeai.dev/reset-password/abc",
		ExpiresIn: "1 hour",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reset Your CodeAI Password", subject)
	assert.Contains(t, body, `href="https://app.codeai.dev/reset-password/abc"`)
	assert.Contains(t, body, "expire in 1 hour")

	subject, body, err = email.Render(context.Background(), email.TemplateWelcome, email.TemplateData{Name: "<script>x</script>"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome to CodeAI!", subject)
	assert.False(t, strings.Contains(body, "<script>"))

	subject, _, err = email.Render(context.Background(), email.TemplatePasswordResetSuccess, email.TemplateData{Name: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "Password Reset Successful", subject)

	_, _, err = email.Render(context.Background(), "nope", email.TemplateData{})
	assert.ErrorIs(t, err, email.ErrUnknownTemplate)
}

func TestRender_EscapesHostileValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     email.TemplateData
		contains string
		absent   string
	}{
		{
			name:     "quote in reset url cannot break the attribute",
			data:     email.TemplateData{Name: "Jane", ResetURL: `https://app.codeai.dev/r?t=a" onclick="x`},
			contains: `&#34; onclick=&#34;x`,
			absent:   `" onclick="`,
		},
		{
			name:   "javascript reset url is neutralised",
			data:   email.TemplateData{Name: "Jane", ResetURL: "javascript:alert(1)"},
			absent: "javascript:",
		},
		{
			name:     "markup in expiry is escaped",
			data:     email.TemplateData{Name: "Jane", ResetURL: "https://app.codeai.dev/r", ExpiresIn: "<b>1</b>"},
			contains: "&lt;b&gt;1&lt;/b&gt;",
			absent:   "<b>",
		},
		{
			name:     "markup in name is escaped",
			data:     email.TemplateData{Name: `<img src=x onerror=alert(1)>`, ResetURL: "https://app.codeai.dev/r"},
			contains: "&lt;img",
			absent:   "<img",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, body, err := email.Render(context.Background(), email.TemplatePasswordReset, tt.data)
			require.NoError(t, err)
			if tt.contains != "" {
				assert.Contains(t, body, tt.contains)
			}
			assert.NotContains(t, body, tt.absent)
		})
	}
}
