package email

import (
	"context"
	"fmt"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/codeai/pkg/email/templates"
)

// Template names.
const (
	TemplateWelcome              = "welcome"
	TemplatePasswordReset        = "password_reset"
	TemplatePasswordResetSuccess = "password_reset_success"
)

// TemplateData is what every template can reference.
type TemplateData struct {
	Name       string
	ResetURL   string
	ExpiresIn  string
	SupportURL string
}

type message struct {
	subject string
	body    func(TemplateData) templ.Component
}

var messages = map[string]message{
	TemplateWelcome: {
		subject: "Welcome to CodeAI!",
		body: func(d TemplateData) templ.Component {
			return templates.Welcome(d.Name)
		},
	},
	TemplatePasswordReset: {
		subject: "Reset Your CodeAI Password",
		body: func(d TemplateData) templ.Component {
			return templates.PasswordReset(d.Name, d.ResetURL, d.ExpiresIn)
		},
	},
	TemplatePasswordResetSuccess: {
		subject: "Password Reset Successful",
		body: func(d TemplateData) templ.Component {
			return templates.PasswordResetSuccess(d.Name)
		},
	},
}

// Render builds the subject and HTML body of the named template. Values are
// HTML-escaped, so user-controlled names cannot inject markup.
func Render(ctx context.Context, name string, data TemplateData) (subject, body string, err error) {
	msg, ok := messages[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}

	body, err = templates.Render(ctx, msg.body(data))
	if err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return msg.subject, body, nil
}
