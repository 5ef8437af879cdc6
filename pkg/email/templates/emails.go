package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Welcome greets a new account.
func Welcome(name string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<h1>Hello `+templ.EscapeString(name)+`!</h1>
<p>Thanks for signing up for CodeAI. We're excited to have you onboard!</p>`)
		return err
	})
}

// PasswordReset carries the reset link. resetURL goes through templ.URL, so a
// link with an unsafe scheme renders as an inert placeholder.
func PasswordReset(name, resetURL, expiresIn string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		href := templ.EscapeString(string(templ.URL(resetURL)))
		_, err := io.WriteString(w, `<div style="font-family: Arial, sans-serif; text-align: center; padding: 20px;">
  <h2 style="color: #1e40af;">Hello `+templ.EscapeString(name)+`,</h2>
  <p>You requested a password reset. Click the button below to reset your password:</p>
  <a href="`+href+`" target="_blank" style="display: inline-block; padding: 12px 24px; margin: 20px 0; font-size: 16px; color: #fff; background-color: #1e40af; border-radius: 8px; text-decoration: none;">Reset Password</a>
  <p style="color: gray; font-size: 12px;">This link will expire in `+templ.EscapeString(expiresIn)+`.</p>
</div>`)
		return err
	})
}

// PasswordResetSuccess confirms a completed reset.
func PasswordResetSuccess(name string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<p>Hello `+templ.EscapeString(name)+`,</p>
<p>Your password has been successfully reset.</p>
<p>If you did not perform this action, please contact support immediately.</p>`)
		return err
	})
}
