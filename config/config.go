package config

import (
	"fmt"
	"time"

	"github.com/addisride/dispatch/pkg/configparser"
)

// Config contains all configuration variables of the application.
type (
	Config struct {
		HTTP     HTTPConfig
		Database DatabaseConfig
		RabbitMQ RabbitMQConfig
		Auth     AuthConfig
		SMS      SMSConfig
		Mail     MailConfig
		Log      LogConfig
	}

	HTTPConfig struct {
		Port string `env:"HTTP_PORT" default:"3000"`
	}

	DatabaseConfig struct {
		// URL, when set, wins over the individual fields below.
		URL      string `env:"DATABASE_URL"`
		Host     string `env:"DATABASE_HOST" default:"localhost"`
		Port     string `env:"DATABASE_PORT" default:"5432"`
		User     string `env:"DATABASE_USER" default:"dispatch_user"`
		Password string `env:"DATABASE_PASSWORD" default:"dispatch_pass"`
		Database string `env:"DATABASE_DATABASE" default:"dispatch_db"`
	}

	RabbitMQConfig struct {
		Host     string `env:"RABBITMQ_HOST" default:"localhost"`
		Port     string `env:"RABBITMQ_PORT" default:"5672"`
		User     string `env:"RABBITMQ_USER" default:"guest"`
		Password string `env:"RABBITMQ_PASSWORD" default:"guest"`
	}

	AuthConfig struct {
		JWTSecret       string        `env:"JWT_ACCESS_SECRET" default:"supersecretkey"`
		JWTRefresh      string        `env:"JWT_REFRESH_SECRET" default:"supersecretrefreshkey"`
		AccessTokenTTL  time.Duration `env:"ACCESS_EXPIRES_IN" default:"15m"`
		RefreshTokenTTL time.Duration `env:"REFRESH_EXPIRES_IN" default:"168h"`
	}

	// SMSConfig covers the AfroMessage gateway keys. The gateway itself is
	// external; the dispatch binary only parses and forwards these.
	SMSConfig struct {
		Key        string `env:"AFRO_SMS_KEY"`
		From       string `env:"AFRO_FROM"`
		Sender     string `env:"AFRO_SENDER"`
		Pr         string `env:"AFRO_PR"`
		Ps         string `env:"AFRO_PS"`
		BypassOTP  bool   `env:"BYPASS_SMS_OTP" default:"false"`
	}

	MailConfig struct {
		Enabled  bool   `env:"MAIL_ENABLED" default:"false"`
		From     string `env:"MAIL_FROM"`
		SMTPHost string `env:"SMTP_HOST"`
		SMTPPort string `env:"SMTP_PORT" default:"587"`
		SMTPUser string `env:"SMTP_USER"`
		SMTPPass string `env:"SMTP_PASSWORD"`
	}

	LogConfig struct {
		Level string `env:"LOG_LEVEL" default:"INFO"`
	}
)

func (c DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

func (c RabbitMQConfig) GetDSN() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.User,
		c.Password,
		c.Host,
		c.Port,
	)
}

// NewConfig loads environment variables from filepath (when present) and
// parses them into a Config.
func NewConfig(filepath string) (*Config, error) {
	cfg := &Config{}

	if err := configparser.LoadAndParseEnv(filepath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load and parse config: %w", err)
	}

	return cfg, nil
}
