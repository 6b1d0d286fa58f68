package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var (
	accessSecret  = []byte("access-secret-0123456789")
	refreshSecret = []byte("refresh-secret-0123456789")
)

func newTestManager(t *testing.T, kind Kind, secret []byte, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{Kind: kind, Secret: secret, TTL: time.Hour, Issuer: "campusauth", Now: now})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParseCarriesSubject(t *testing.T) {
	m := newTestManager(t, KindAccess, accessSecret, nil)

	token, issued, err := m.Issue("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.UserID != "user-1" {
		t.Fatalf("unexpected subject %q / %q", claims.Subject, claims.UserID)
	}
	if claims.Email != "a@b.com" || claims.Kind != KindAccess {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.ID == "" || claims.ID != issued.ID {
		t.Fatalf("expected jti %q, got %q", issued.ID, claims.ID)
	}
}

func TestIssueProducesDistinctTokens(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	m := newTestManager(t, KindRefresh, refreshSecret, func() time.Time { return fixed })

	a, _, _ := m.Issue("user-1", "")
	b, _, _ := m.Issue("user-1", "")
	if a == b {
		t.Fatal("expected distinct tokens for the same user and instant")
	}
}

func TestParseRejectsOtherSecretAndKind(t *testing.T) {
	access := newTestManager(t, KindAccess, accessSecret, nil)
	refresh := newTestManager(t, KindRefresh, refreshSecret, nil)

	refreshToken, _, err := refresh.Issue("user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := access.Parse(refreshToken); err == nil {
		t.Fatal("expected refresh token to be rejected by access manager")
	}

	sameSecretRefresh := newTestManager(t, KindRefresh, accessSecret, nil)
	confused, _, err := sameSecretRefresh.Issue("user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := access.Parse(confused); !errors.Is(err, ErrTokenKind) {
		t.Fatalf("expected ErrTokenKind, got %v", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	m := newTestManager(t, KindAccess, accessSecret, clock)

	token, _, err := m.Issue("user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(time.Hour + time.Second)
	if _, err := m.Parse(token); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseRejectsTampered(t *testing.T) {
	m := newTestManager(t, KindAccess, accessSecret, nil)
	token, _, err := m.Issue("user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parts := strings.Split(token, ".")
	forged, _, err := newTestManager(t, KindAccess, accessSecret, nil).Issue("user-2", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parts[1] = strings.Split(forged, ".")[1]

	if _, err := m.Parse(strings.Join(parts, ".")); err == nil {
		t.Fatal("expected tampered payload to be rejected")
	}
	if _, err := m.Parse("not-a-token"); err == nil {
		t.Fatal("expected malformed token to be rejected")
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	m := newTestManager(t, KindAccess, accessSecret, nil)

	claims := Claims{
		UserID: "user-1",
		Kind:   KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "campusauth",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS512, claims).SignedString(accessSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseIssuerAndLeeway(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	m, err := NewManager(Config{Kind: KindAccess, Secret: accessSecret, TTL: time.Minute, Issuer: "campusauth", Leeway: 30 * time.Second, Now: clock})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	other, err := NewManager(Config{Kind: KindAccess, Secret: accessSecret, TTL: time.Minute, Issuer: "someone-else", Now: clock})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.Issue("user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Parse(token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}

	now = now.Add(time.Minute + 20*time.Second)
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("expected token inside leeway to parse: %v", err)
	}
	now = now.Add(20 * time.Second)
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected token beyond leeway to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "unknown kind", cfg: Config{Kind: "id", Secret: accessSecret, TTL: time.Minute}},
		{name: "short secret", cfg: Config{Kind: KindAccess, Secret: []byte("short"), TTL: time.Minute}},
		{name: "zero ttl", cfg: Config{Kind: KindAccess, Secret: accessSecret}},
		{name: "large leeway", cfg: Config{Kind: KindAccess, Secret: accessSecret, TTL: time.Minute, Leeway: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestIssueRequiresSubject(t *testing.T) {
	m := newTestManager(t, KindAccess, accessSecret, nil)
	if _, _, err := m.Issue("", ""); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

// FuzzParse exercises the parser with arbitrary token strings.
func FuzzParse(f *testing.F) {
	m, err := NewManager(Config{Kind: KindAccess, Secret: accessSecret, TTL: time.Minute})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := m.Issue("user-1", "a@b.com")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add(valid + "x")

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := m.Parse(token)
		if err == nil && claims == nil {
			t.Fatal("nil claims without error")
		}
	})
}
