package account

import "time"

// Config holds the URLs the service builds links from.
type Config struct {
	FrontendURL   string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	BackendURL    string        `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	SupportURL    string        `env:"SUPPORT_URL"`
}
