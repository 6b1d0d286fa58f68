package campusAuth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockUserProvider struct {
	mu      sync.Mutex
	users   map[string]UserRecord
	byEmail map[string]string

	createErr error
	updateErr error

	createCalls         int
	updatePasswordCalls int
	setRefreshCalls     int
	clearRefreshCalls   int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:   make(map[string]UserRecord),
		byEmail: make(map[string]string),
	}
}

func (m *mockUserProvider) GetUserByEmail(_ context.Context, email string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byEmail[email]
	if !ok {
		return UserRecord{}, ErrProviderNotFound
	}
	return m.users[id], nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrProviderNotFound
	}
	return u, nil
}

func (m *mockUserProvider) CreateUser(_ context.Context, in CreateUserInput) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.createErr != nil {
		return UserRecord{}, m.createErr
	}
	if _, exists := m.byEmail[in.Email]; exists {
		return UserRecord{}, ErrProviderDuplicateEmail
	}

	now := time.Now()
	u := UserRecord{
		ID:            fmt.Sprintf("u%d", len(m.users)+1),
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
	m.users[u.ID] = u
	m.byEmail[u.Email] = u.ID
	return u, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updatePasswordCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrProviderNotFound
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *mockUserProvider) SetRefreshToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setRefreshCalls++
	u, ok := m.users[userID]
	if !ok {
		return ErrProviderNotFound
	}
	u.RefreshToken = token
	m.users[userID] = u
	return nil
}

func (m *mockUserProvider) ClearRefreshToken(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearRefreshCalls++
	u, ok := m.users[userID]
	if !ok {
		return ErrProviderNotFound
	}
	u.RefreshToken = ""
	m.users[userID] = u
	return nil
}

func (m *mockUserProvider) user(t *testing.T, userID string) UserRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		t.Fatalf("user %s not stored", userID)
	}
	return u
}

// delete simulates an account removed behind the engine's back.
func (m *mockUserProvider) delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		delete(m.byEmail, u.Email)
		delete(m.users, userID)
	}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type capturedMail struct {
	mu   sync.Mutex
	sent []MailMessage
	err  error
	// gate, when set, holds every Send until it is closed.
	gate chan struct{}
}

func (c *capturedMail) Send(_ context.Context, msg MailMessage) error {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *capturedMail) messages() []MailMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]MailMessage(nil), c.sent...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Mail.Async = false
	return cfg
}

type testEngine struct {
	engine   *Engine
	provider *mockUserProvider
	clock    *testClock
	mail     *capturedMail
	redis    *miniredis.Miniredis
}

func newTestEngine(t *testing.T, mutate func(*Config)) testEngine {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	te := testEngine{
		provider: newMockUserProvider(),
		clock:    &testClock{now: time.Now().Truncate(time.Millisecond)},
		mail:     &capturedMail{},
		redis:    mr,
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(te.provider).
		WithMailer(te.mail).
		WithClock(te.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	te.engine = engine
	return te
}

// signUp runs the full two-step signup and returns the created account.
func (te testEngine) signUp(t *testing.T, email, password string) *AccountView {
	t.Helper()
	ctx := context.Background()

	if _, err := te.engine.RequestVerification(ctx, "Asha", email); err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	msgs := te.mail.messages()
	code := codeFromMail(t, msgs[len(msgs)-1])

	view, err := te.engine.CompleteSignup(ctx, SignupRequest{
		FirstName:       "Asha",
		LastName:        "Verma",
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		OTP:             code,
		Gender:          "Female",
		ContactNumber:   "9876543210",
	})
	if err != nil {
		t.Fatalf("CompleteSignup failed: %v", err)
	}
	return view
}
