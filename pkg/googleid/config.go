package googleid

import "time"

// CertsURL is where Google publishes the keys that sign its ID tokens.
const CertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// Config holds Google sign-in settings.
type Config struct {
	ClientID     string        `env:"GOOGLE_CLIENT_ID,required"`
	ClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL  string        `env:"GOOGLE_REDIRECT_URL" envDefault:"postmessage"`
	VerifiedOnly bool          `env:"GOOGLE_VERIFIED_ONLY" envDefault:"true"`
	HTTPTimeout  time.Duration `env:"GOOGLE_HTTP_TIMEOUT" envDefault:"10s"`
	CertsURL     string        `env:"GOOGLE_CERTS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
}
