package config

type AppConfig struct {
	APIPort        string `env:"PORT" envDefault:"8080"`
	InternalAPIKey string `env:"INTERNAL_API_KEY,required"`

	// MailboxDomain is the domain new addresses are minted under and the
	// only domain the SMTP listener accepts mail for.
	MailboxDomain string `env:"MAILBOX_DOMAIN" envDefault:"mailcat.ai"`

	// Lifetimes
	MailboxTTLHours     int `env:"MAILBOX_TTL_HOURS" envDefault:"24"`
	EmailRetentionHours int `env:"EMAIL_RETENTION_HOURS" envDefault:"24"`

	// Ingestion limits
	MaxMessageBytes int `env:"MAX_MESSAGE_BYTES" envDefault:"1048576"`

	// Mailbox creation rate limit, per client IP
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"5"`

	// Optional integrations
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type SMTPConfig struct {
	Enabled    bool   `env:"SMTP_ENABLED" envDefault:"true"`
	ListenAddr string `env:"SMTP_LISTEN_ADDR" envDefault:":2525"`
	Hostname   string `env:"SMTP_HOSTNAME" envDefault:"mx.mailcat.ai"`
}

type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            string `env:"POSTGRES_PORT,required"`
	User            string `env:"POSTGRES_USER,required"`
	DBName          string `env:"POSTGRES_DB_NAME,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN" envDefault:"50"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}

// RawArchiveConfig enables archival of raw MIME payloads to S3-compatible
// object storage. Disabled unless a bucket is configured.
type RawArchiveConfig struct {
	Provider        string `env:"RAW_ARCHIVE_PROVIDER" envDefault:"s3"` // s3 or r2
	Bucket          string `env:"RAW_ARCHIVE_BUCKET"`
	AWSRegion       string `env:"RAW_ARCHIVE_AWS_REGION" envDefault:"us-east-1"`
	R2AccountID     string `env:"RAW_ARCHIVE_R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"RAW_ARCHIVE_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"RAW_ARCHIVE_ACCESS_KEY_SECRET"`
}

func (c *RawArchiveConfig) Enabled() bool {
	return c.Bucket != ""
}
