package email

import "time"

// Config holds outbound mail configuration.
//
// Transports lists the enabled transports in their initial try order.
// Postmark tokens and the webhook settings are only required when the
// matching transport is enabled.
type Config struct {
	Transports   []string `env:"EMAIL_TRANSPORTS" envSeparator:"," envDefault:"dev"` // postmark, webhook, dev
	SenderEmail  string   `env:"SENDER_EMAIL" envDefault:"no-reply@localhost.localdomain"`
	SupportEmail string   `env:"SUPPORT_EMAIL" envDefault:"support@localhost.localdomain"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`

	WebhookURL     string        `env:"EMAIL_WEBHOOK_URL"`
	WebhookSecret  string        `env:"EMAIL_WEBHOOK_SECRET"`
	WebhookTimeout time.Duration `env:"EMAIL_WEBHOOK_TIMEOUT" envDefault:"10s"`

	DevDir string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`

	FailoverHalfLife time.Duration `env:"EMAIL_FAILOVER_HALF_LIFE" envDefault:"1h"` // How fast transport penalties are forgiven
}
