package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind tells access tokens and refresh tokens apart inside the claims.
type Kind string

const (
	// KindAccess marks short-lived request credentials.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived credentials stored on the account.
	KindRefresh Kind = "refresh"
)

const minSecretBytes = 16

var (
	// ErrTokenKind is returned when a token of the other kind is presented.
	ErrTokenKind = errors.New("unexpected token kind")
	// ErrMissingSubject is returned when a token carries no user id.
	ErrMissingSubject = errors.New("token subject missing")
)

// Config defines one token family.
type Config struct {
	Kind         Kind
	Secret       []byte
	TTL          time.Duration
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
	// Now overrides the clock. It defaults to time.Now.
	Now func() time.Time
}

// Manager signs and parses tokens of a single kind.
type Manager struct {
	config Config
}

// Claims is the payload of every issued token. UserID mirrors the
// subject under the key older clients of the app read.
type Claims struct {
	UserID string `json:"_id"`
	Email  string `json:"email,omitempty"`
	Kind   Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a manager signing with its secret.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Kind != KindAccess && cfg.Kind != KindRefresh {
		return nil, errors.New("unsupported token kind")
	}
	if len(cfg.Secret) < minSecretBytes {
		return nil, fmt.Errorf("%s token secret must be at least %d bytes", cfg.Kind, minSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Manager{config: cfg}, nil
}

// Issue signs a token for userID. Every token gets a random jti so two
// tokens minted within the same second still differ.
func (m *Manager) Issue(userID, email string) (string, *Claims, error) {
	if userID == "" {
		return "", nil, ErrMissingSubject
	}

	now := m.config.Now()
	claims := &Claims{
		UserID: userID,
		Email:  email,
		Kind:   m.config.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies signature, expiry, issuer, audience and kind.
func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Kind != m.config.Kind {
		return nil, ErrTokenKind
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, errors.New("token iat too far in the future")
	}

	return claims, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}
