// Package testkit builds engines backed by miniredis and an in-memory
// account store for transport tests.
package testkit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/MrEthical07/campusAuth/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Provider is an in-memory campusAuth.UserProvider.
type Provider struct {
	mu      sync.Mutex
	users   map[string]campusAuth.UserRecord
	byEmail map[string]string
}

func NewProvider() *Provider {
	return &Provider{
		users:   make(map[string]campusAuth.UserRecord),
		byEmail: make(map[string]string),
	}
}

func (p *Provider) GetUserByEmail(_ context.Context, email string) (campusAuth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byEmail[email]
	if !ok {
		return campusAuth.UserRecord{}, campusAuth.ErrProviderNotFound
	}
	return p.users[id], nil
}

func (p *Provider) GetUserByID(_ context.Context, userID string) (campusAuth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return campusAuth.UserRecord{}, campusAuth.ErrProviderNotFound
	}
	return u, nil
}

func (p *Provider) CreateUser(_ context.Context, in campusAuth.CreateUserInput) (campusAuth.UserRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.byEmail[in.Email]; ok {
		return campusAuth.UserRecord{}, campusAuth.ErrProviderDuplicateEmail
	}
	now := time.Now()
	u := campusAuth.UserRecord{
		ID:            fmt.Sprintf("user-%d", len(p.users)+1),
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Email:         in.Email,
		PasswordHash:  in.PasswordHash,
		Gender:        in.Gender,
		ContactNumber: in.ContactNumber,
		AccountType:   in.AccountType,
		Avatar:        in.Avatar,
		OTPID:         in.OTPID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.users[u.ID] = u
	p.byEmail[u.Email] = u.ID
	return u, nil
}

func (p *Provider) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return p.update(userID, func(u *campusAuth.UserRecord) { u.PasswordHash = hash })
}

func (p *Provider) SetRefreshToken(_ context.Context, userID, token string) error {
	return p.update(userID, func(u *campusAuth.UserRecord) { u.RefreshToken = token })
}

func (p *Provider) ClearRefreshToken(_ context.Context, userID string) error {
	return p.update(userID, func(u *campusAuth.UserRecord) { u.RefreshToken = "" })
}

func (p *Provider) update(userID string, fn func(*campusAuth.UserRecord)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	if !ok {
		return campusAuth.ErrProviderNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	p.users[userID] = u
	return nil
}

// Delete removes an account as if it had been deleted out of band.
func (p *Provider) Delete(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[userID]; ok {
		delete(p.byEmail, u.Email)
		delete(p.users, userID)
	}
}

// User returns the stored record for userID.
func (p *Provider) User(userID string) (campusAuth.UserRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[userID]
	return u, ok
}

// Mailbox records every mail handed to it.
type Mailbox struct {
	mu   sync.Mutex
	sent []campusAuth.MailMessage
}

func (m *Mailbox) Send(_ context.Context, msg campusAuth.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *Mailbox) Messages() []campusAuth.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]campusAuth.MailMessage(nil), m.sent...)
}

// Env is a built engine plus the fakes behind it.
type Env struct {
	Engine   *campusAuth.Engine
	Provider *Provider
	Mailbox  *Mailbox
	Redis    *miniredis.Miniredis
	Config   campusAuth.Config
}

// Config returns a valid configuration with cheap hashing and synchronous
// mail.
func Config() campusAuth.Config {
	cfg := campusAuth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("testkit-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("testkit-refresh-secret-012345678")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Mail.Async = false
	return cfg
}

// NewEnv builds an engine. mutate may adjust the configuration first.
func NewEnv(t testing.TB, mutate func(*campusAuth.Config)) *Env {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := Config()
	if mutate != nil {
		mutate(&cfg)
	}

	env := &Env{
		Provider: NewProvider(),
		Mailbox:  &Mailbox{},
		Redis:    mr,
		Config:   cfg,
	}

	engine, err := campusAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(env.Provider).
		WithMailer(env.Mailbox).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	env.Engine = engine
	return env
}

// SeedAccount stores an account with a real password hash and returns it.
func (e *Env) SeedAccount(t testing.TB, email, plain string, accountType campusAuth.AccountType) campusAuth.UserRecord {
	t.Helper()

	hasher, err := password.New(password.Config{
		Algorithm: password.AlgorithmArgon2id,
		Argon2: password.Argon2Config{
			Memory:      e.Config.Password.Memory,
			Time:        e.Config.Password.Time,
			Parallelism: e.Config.Password.Parallelism,
			SaltLength:  e.Config.Password.SaltLength,
			KeyLength:   e.Config.Password.KeyLength,
		},
	})
	if err != nil {
		t.Fatalf("password.New failed: %v", err)
	}
	hash, err := hasher.Hash(plain)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	u, err := e.Provider.CreateUser(context.Background(), campusAuth.CreateUserInput{
		FirstName:     "Test",
		LastName:      "User",
		Email:         email,
		PasswordHash:  hash,
		Gender:        "Other",
		ContactNumber: "9000000000",
		AccountType:   accountType,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return u
}

// Login signs in a seeded account and returns its tokens.
func (e *Env) Login(t testing.TB, email, plain string) *campusAuth.LoginResult {
	t.Helper()
	res, err := e.Engine.Login(context.Background(), email, plain)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return res
}
