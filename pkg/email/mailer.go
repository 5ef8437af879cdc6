package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/codeai/pkg/validator"
)

// EmailSender represents an interface for sending emails.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to" validate:"required,email"`
	Subject  string `json:"subject" validate:"notblank"`
	BodyHTML string `json:"body_html" validate:"notblank"`
	Tag      string `json:"tag,omitempty" validate:"max=1000"`
}

// Validate checks that the message can be handed to a provider.
func (p SendEmailParams) Validate() error {
	return validator.Struct(p)
}

// NewSender builds the sender selected by cfg.Driver.
func NewSender(cfg Config, log *slog.Logger) (EmailSender, error) {
	switch cfg.Driver {
	case DriverPostmark:
		return NewPostmarkClient(cfg)
	case DriverDev:
		return NewDevSender(cfg.DevDir), nil
	case DriverLog, "":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
