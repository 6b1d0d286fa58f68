package campusAuth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/campusAuth/password"
)

// Config holds every engine setting. Build it once at startup and hand it
// to [Builder.WithConfig]; the engine keeps its own copy.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	OTP      OTPConfig
	Mail     MailConfig
	Account  AccountConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the two token families. The secrets must differ.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hash algorithm and its cost factors.
type PasswordConfig struct {
	Algorithm        string // "argon2id" (default) or "bcrypt"
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	BcryptCost       int
	MaxPasswordBytes int
	// UpgradeOnLogin rehashes passwords stored with another algorithm or
	// weaker parameters after a successful login.
	UpgradeOnLogin bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls signup verification codes.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
	// RecordRetention is how long a record stays in Redis. It must be at
	// least TTL so late submissions are reported as expired.
	RecordRetention time.Duration
	RedisPrefix     string
	// SingleUse makes a code authorize at most one signup.
	SingleUse bool
	// ExposeCodeInResponse returns the code from RequestVerification.
	// Only meant for local development.
	ExposeCodeInResponse bool
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig controls the verification mail and its delivery queue.
type MailConfig struct {
	Async               bool
	BufferSize          int
	DropIfFull          bool
	SendTimeout         time.Duration
	InstitutionName     string
	VerificationSubject string
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls new accounts.
type AccountConfig struct {
	DefaultType   AccountType
	AvatarBaseURL string
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. Token secrets are left
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	const institution = "Jhunjhunwala Group of Institutions"

	return Config{
		JWT: JWTConfig{
			AccessTTL:  time.Hour,
			RefreshTTL: 10 * 24 * time.Hour,
			Issuer:     "campusauth",
			Leeway:     30 * time.Second,
		},
		Password: PasswordConfig{
			Algorithm:        string(password.AlgorithmArgon2id),
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			BcryptCost:       10,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		OTP: OTPConfig{
			Digits:          6,
			TTL:             5 * time.Minute,
			RecordRetention: 15 * time.Minute,
			RedisPrefix:     "cotp",
			SingleUse:       true,
		},
		Mail: MailConfig{
			Async:               true,
			BufferSize:          256,
			DropIfFull:          true,
			SendTimeout:         10 * time.Second,
			InstitutionName:     institution,
			VerificationSubject: "Email Verification Mail From " + institution + ".",
		},
		Account: AccountConfig{
			DefaultType:   AccountStudent,
			AvatarBaseURL: "https://api.dicebear.com/5.x/initials/svg",
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first setting that would make the engine unsafe or
// unusable.
func (c *Config) Validate() error {
	if len(c.JWT.AccessSecret) < 16 {
		return errors.New("JWT AccessSecret must be at least 16 bytes")
	}
	if len(c.JWT.RefreshSecret) < 16 {
		return errors.New("JWT RefreshSecret must be at least 16 bytes")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	switch password.Algorithm(c.Password.Algorithm) {
	case password.AlgorithmArgon2id, password.AlgorithmBcrypt:
	default:
		return errors.New("Password Algorithm must be argon2id or bcrypt")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 4 and 10")
	}
	if c.OTP.TTL <= 0 {
		return errors.New("OTP TTL must be > 0")
	}
	if c.OTP.RecordRetention < c.OTP.TTL {
		return errors.New("OTP RecordRetention must be >= TTL")
	}
	if strings.TrimSpace(c.OTP.RedisPrefix) == "" {
		return errors.New("OTP RedisPrefix must not be empty")
	}

	if c.Mail.Async && c.Mail.BufferSize <= 0 {
		return errors.New("Mail BufferSize must be > 0 when Async is enabled")
	}
	if c.Mail.SendTimeout < 0 {
		return errors.New("Mail SendTimeout must be >= 0")
	}
	if strings.TrimSpace(c.Mail.VerificationSubject) == "" {
		return errors.New("Mail VerificationSubject must not be empty")
	}

	if !c.Account.DefaultType.Valid() {
		return errors.New("Account DefaultType must be Student, Teacher or Admin")
	}
	if c.Account.AvatarBaseURL == "" {
		return errors.New("Account AvatarBaseURL must not be empty")
	}

	return nil
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Algorithm: password.Algorithm(c.Algorithm),
		Argon2: password.Argon2Config{
			Memory:      c.Memory,
			Time:        c.Time,
			Parallelism: c.Parallelism,
			SaltLength:  c.SaltLength,
			KeyLength:   c.KeyLength,
		},
		BcryptCost:       c.BcryptCost,
		MaxPasswordBytes: c.MaxPasswordBytes,
	}
}
