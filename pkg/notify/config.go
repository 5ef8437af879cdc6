package notify

import "time"

// Config holds dispatcher settings.
type Config struct {
	QueueSize    int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	Workers      int           `env:"NOTIFY_WORKERS" envDefault:"4"`
	SendTimeout  time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"10s"`
	PollInterval time.Duration `env:"NOTIFY_POLL_INTERVAL" envDefault:"200ms"`
	Retention    time.Duration `env:"NOTIFY_RETENTION" envDefault:"1h"`
}
