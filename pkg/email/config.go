package email

// Sender drivers.
const (
	DriverPostmark = "postmark"
	DriverDev      = "dev"
	DriverLog      = "log"
)

// Config holds email settings. Postmark tokens are only needed by the postmark driver.
type Config struct {
	Driver               string `env:"EMAIL_DRIVER" envDefault:"log"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`
}
