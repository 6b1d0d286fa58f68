package campusAuth

import (
	"errors"
	"time"

	"github.com/MrEthical07/campusAuth/internal/mailqueue"
	"github.com/MrEthical07/campusAuth/internal/stores"
	"github.com/MrEthical07/campusAuth/jwt"
	"github.com/MrEthical07/campusAuth/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine]. A Builder is single-use: Build fails if
// called twice.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	mailer       Mailer
	logger       *zap.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The Builder keeps a copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for OTP records. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the credential store. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithMailer sets the verification mail sender. Without one, codes are
// generated and stored but never delivered.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLogger sets the structured logger. A nil logger keeps the no-op default.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the engine clock. Tests use it to step past OTP and
// token expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled turns the in-process counters on or off.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms records token validation latency buckets.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher, err := password.New(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}

	access, err := jwt.NewManager(jwt.Config{
		Kind:     jwt.KindAccess,
		Secret:   cloneBytes(cfg.JWT.AccessSecret),
		TTL:      cfg.JWT.AccessTTL,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	refresh, err := jwt.NewManager(jwt.Config{
		Kind:     jwt.KindRefresh,
		Secret:   cloneBytes(cfg.JWT.RefreshSecret),
		TTL:      cfg.JWT.RefreshTTL,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   cfg.JWT.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:        cloneConfig(cfg),
		otpStore:      stores.NewOTPStore(b.redis, cfg.OTP.RedisPrefix, cfg.OTP.RecordRetention),
		accessTokens:  access,
		refreshTokens: refresh,
		hasher:        hasher,
		userProvider:  b.userProvider,
		mailer:        b.mailer,
		logger:        logger.Named("campusauth"),
		metrics:       NewMetrics(cfg.Metrics),
		now:           now,
	}

	if b.mailer != nil {
		engine.mailTemplate, err = newVerificationTemplate()
		if err != nil {
			return nil, err
		}
		engine.mailQueue = mailqueue.NewDispatcher(mailqueue.Config{
			Enabled:     cfg.Mail.Async,
			BufferSize:  cfg.Mail.BufferSize,
			DropIfFull:  cfg.Mail.DropIfFull,
			SendTimeout: cfg.Mail.SendTimeout,
			OnResult:    engine.recordMailResult,
		}, mailerSender{mailer: b.mailer}, logger)
	}

	b.built = true

	return engine, nil
}
