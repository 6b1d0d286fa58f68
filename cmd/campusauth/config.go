package main

import (
	"fmt"
	"time"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/MrEthical07/campusAuth/httpapi"
	"github.com/MrEthical07/campusAuth/mailer"
	"github.com/MrEthical07/campusAuth/mongostore"
	"github.com/caarlos0/env/v11"
)

type serverConfig struct {
	Port            int           `env:"PORT"             envDefault:"8000"`
	AppEnv          string        `env:"APP_ENV"          envDefault:"production"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MetricsEnabled  bool          `env:"METRICS_ENABLED"  envDefault:"true"`

	MongoURL     string        `env:"MONGODB_URL,notEmpty"`
	MongoDB      string        `env:"DB_NAME"       envDefault:"collegeApp"`
	MongoTimeout time.Duration `env:"MONGO_TIMEOUT" envDefault:"10s"`
	MongoPool    uint64        `env:"MONGO_POOL"    envDefault:"20"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	AccessSecret  string        `env:"ACCESS_TOKEN_SECRET,notEmpty"`
	AccessExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY"  envDefault:"1h"`
	RefreshSecret string        `env:"REFRESH_TOKEN_SECRET,notEmpty"`
	RefreshExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"240h"`

	OTPTTL        time.Duration `env:"OTP_TTL"         envDefault:"5m"`
	OTPSingleUse  bool          `env:"OTP_SINGLE_USE"  envDefault:"true"`
	OTPExposeCode bool          `env:"OTP_EXPOSE_CODE" envDefault:"false"`

	MailHost     string `env:"MAIL_HOST,notEmpty"`
	MailPort     int    `env:"MAIL_PORT"      envDefault:"587"`
	MailUser     string `env:"MAIL_USER"`
	MailPass     string `env:"MAIL_PASS"`
	MailFrom     string `env:"MAIL_FROM,notEmpty"`
	MailFromName string `env:"MAIL_FROM_NAME" envDefault:"College App"`
	MailPool     int    `env:"MAIL_POOL"      envDefault:"4"`

	CORSOrigins  []string `env:"CORS_ORIGINS"  envSeparator:","`
	CookieSecure bool     `env:"COOKIE_SECURE" envDefault:"true"`
}

// loadConfig reads the process configuration. A nil environ reads the
// real environment.
func loadConfig(environ map[string]string) (serverConfig, error) {
	var cfg serverConfig
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return serverConfig{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c serverConfig) development() bool {
	return c.AppEnv == "development"
}

func (c serverConfig) engine() campusAuth.Config {
	cfg := campusAuth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(c.AccessSecret)
	cfg.JWT.RefreshSecret = []byte(c.RefreshSecret)
	cfg.JWT.AccessTTL = c.AccessExpiry
	cfg.JWT.RefreshTTL = c.RefreshExpiry
	cfg.OTP.TTL = c.OTPTTL
	if cfg.OTP.RecordRetention < c.OTPTTL {
		cfg.OTP.RecordRetention = 3 * c.OTPTTL
	}
	cfg.OTP.SingleUse = c.OTPSingleUse
	cfg.OTP.ExposeCodeInResponse = c.OTPExposeCode
	cfg.Metrics.Enabled = c.MetricsEnabled
	return cfg
}

func (c serverConfig) mongo() mongostore.Config {
	return mongostore.Config{
		URI:         c.MongoURL,
		Database:    c.MongoDB,
		Timeout:     c.MongoTimeout,
		MaxPoolSize: c.MongoPool,
	}
}

func (c serverConfig) mail() mailer.Config {
	return mailer.Config{
		Host:     c.MailHost,
		Port:     c.MailPort,
		User:     c.MailUser,
		Pass:     c.MailPass,
		From:     c.MailFrom,
		FromName: c.MailFromName,
		PoolSize: c.MailPool,
	}
}

func (c serverConfig) http() httpapi.Config {
	return httpapi.Config{
		AllowedOrigins: c.CORSOrigins,
		SecureCookies:  c.CookieSecure,
		ExposeMetrics:  c.MetricsEnabled,
	}
}
