package campusAuth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

var mailCodePattern = regexp.MustCompile(`<h1[^>]*>(\d+)</h1>`)

func codeFromMail(t *testing.T, msg MailMessage) string {
	t.Helper()
	m := mailCodePattern.FindStringSubmatch(msg.HTML)
	if len(m) != 2 {
		t.Fatalf("no code in mail body:\n%s", msg.HTML)
	}
	return m[1]
}

func signupRequest(email, code string) SignupRequest {
	return SignupRequest{
		FirstName:       "Asha",
		LastName:        "Verma",
		Email:           email,
		Password:        "s3cret-pass",
		ConfirmPassword: "s3cret-pass",
		OTP:             code,
		Gender:          "Female",
		ContactNumber:   "9876543210",
	}
}

func TestRequestVerificationSendsMailAndHidesCode(t *testing.T) {
	te := newTestEngine(t, nil)

	res, err := te.engine.RequestVerification(context.Background(), "Asha", "asha@example.com")
	if err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	if res.Code != "" {
		t.Fatalf("expected code to be hidden, got %q", res.Code)
	}
	if res.ID == "" || res.Email != "asha@example.com" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := res.ExpiresAt.Sub(res.CreatedAt); got != 5*time.Minute {
		t.Fatalf("expected 5m validity, got %v", got)
	}

	msgs := te.mail.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected one mail, got %d", len(msgs))
	}
	if msgs[0].To != "asha@example.com" {
		t.Fatalf("mail sent to %q", msgs[0].To)
	}
	if !strings.HasPrefix(msgs[0].Subject, "Email Verification Mail From") {
		t.Fatalf("unexpected subject %q", msgs[0].Subject)
	}
	if code := codeFromMail(t, msgs[0]); len(code) != 6 {
		t.Fatalf("expected 6 digit code, got %q", code)
	}
	if !strings.Contains(msgs[0].HTML, "Dear Asha") {
		t.Fatal("expected first name in mail body")
	}

	if got := te.engine.MetricsSnapshot().Counters[MetricOTPRequested]; got != 1 {
		t.Fatalf("expected MetricOTPRequested=1, got %d", got)
	}
}

func TestRequestVerificationExposesCodeWhenConfigured(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.OTP.ExposeCodeInResponse = true })

	res, err := te.engine.RequestVerification(context.Background(), "Asha", "asha@example.com")
	if err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	if res.Code != codeFromMail(t, te.mail.messages()[0]) {
		t.Fatalf("expected exposed code to match mailed code, got %q", res.Code)
	}
}

func TestRequestVerificationValidation(t *testing.T) {
	te := newTestEngine(t, nil)

	tests := []struct {
		name      string
		firstName string
		email     string
		wantErr   error
	}{
		{name: "missing first name", firstName: "  ", email: "a@b.com", wantErr: ErrMissingFields},
		{name: "missing email", firstName: "Asha", email: "", wantErr: ErrMissingFields},
		{name: "bad email", firstName: "Asha", email: "not-an-email", wantErr: ErrInvalidEmail},
		{name: "no tld", firstName: "Asha", email: "a@b", wantErr: ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := te.engine.RequestVerification(context.Background(), tt.firstName, tt.email)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if n := len(te.mail.messages()); n != 0 {
		t.Fatalf("expected no mail for invalid requests, got %d", n)
	}
}

func TestRequestVerificationMailFailureDoesNotFail(t *testing.T) {
	te := newTestEngine(t, nil)
	te.mail.err = errors.New("smtp down")

	if _, err := te.engine.RequestVerification(context.Background(), "Asha", "asha@example.com"); err != nil {
		t.Fatalf("expected mail failure to be swallowed, got %v", err)
	}
	if got := te.engine.MetricsSnapshot().Counters[MetricMailFailed]; got != 1 {
		t.Fatalf("expected MetricMailFailed=1, got %d", got)
	}
}

func TestRequestVerificationRedisDown(t *testing.T) {
	te := newTestEngine(t, nil)
	te.redis.Close()

	_, err := te.engine.RequestVerification(context.Background(), "Asha", "asha@example.com")
	if !errors.Is(err, ErrOTPUnavailable) {
		t.Fatalf("expected ErrOTPUnavailable, got %v", err)
	}
	if n := len(te.mail.messages()); n != 0 {
		t.Fatal("no mail must be sent when the code was not stored")
	}
}

func TestCompleteSignupCreatesStudentWithHashedPassword(t *testing.T) {
	te := newTestEngine(t, nil)
	view := te.signUp(t, "asha@example.com", "s3cret-pass")

	if view.AccountType != AccountStudent {
		t.Fatalf("expected Student, got %q", view.AccountType)
	}
	if view.Avatar != "https://api.dicebear.com/5.x/initials/svg?seed=Asha+Verma" {
		t.Fatalf("unexpected avatar %q", view.Avatar)
	}
	if view.OTPID == "" {
		t.Fatal("expected account to reference its OTP record")
	}

	stored := te.provider.user(t, view.ID)
	if stored.PasswordHash == "" || stored.PasswordHash == "s3cret-pass" {
		t.Fatalf("password must be stored hashed, got %q", stored.PasswordHash)
	}
	if !strings.HasPrefix(stored.PasswordHash, "$argon2id$") {
		t.Fatalf("expected argon2id hash, got %q", stored.PasswordHash)
	}
	if got := te.engine.MetricsSnapshot().Counters[MetricSignupSuccess]; got != 1 {
		t.Fatalf("expected MetricSignupSuccess=1, got %d", got)
	}
}

func TestCompleteSignupOTPOutcomes(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := te.engine.RequestVerification(ctx, "Asha", "asha@example.com"); err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	code := codeFromMail(t, te.mail.messages()[0])
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	if _, err := te.engine.CompleteSignup(ctx, signupRequest("other@example.com", code)); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expected ErrOTPNotFound, got %v", err)
	}
	if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", wrong)); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}

	te.clock.Advance(5*time.Minute + time.Second)
	if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code)); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if te.provider.createCalls != 0 {
		t.Fatalf("expected no account writes, got %d", te.provider.createCalls)
	}
}

func TestCompleteSignupLatestCodeWins(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := te.engine.RequestVerification(ctx, "Asha", "asha@example.com"); err != nil {
			t.Fatalf("RequestVerification failed: %v", err)
		}
	}
	msgs := te.mail.messages()
	first, second := codeFromMail(t, msgs[0]), codeFromMail(t, msgs[1])

	if first != second {
		if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", first)); !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("expected earlier code to be rejected, got %v", err)
		}
	}
	if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", second)); err != nil {
		t.Fatalf("expected latest code to work, got %v", err)
	}
}

func TestCompleteSignupPasswordMismatchLeavesOTPUsable(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := te.engine.RequestVerification(ctx, "Asha", "asha@example.com"); err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	code := codeFromMail(t, te.mail.messages()[0])

	req := signupRequest("asha@example.com", code)
	req.ConfirmPassword = "different"
	if _, err := te.engine.CompleteSignup(ctx, req); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}

	if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code)); err != nil {
		t.Fatalf("expected code to survive a mismatch, got %v", err)
	}
}

func TestCompleteSignupProviderFailureLeavesOTPUsable(t *testing.T) {
	te := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := te.engine.RequestVerification(ctx, "Asha", "asha@example.com"); err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	code := codeFromMail(t, te.mail.messages()[0])

	te.provider.createErr = errors.New("mongo unavailable")
	if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code)); err == nil {
		t.Fatal("expected signup to fail while the provider is down")
	}

	te.provider.createErr = nil
	view, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code))
	if err != nil {
		t.Fatalf("expected retry with the same code to succeed, got %v", err)
	}
	if view.Email != "asha@example.com" {
		t.Fatalf("unexpected account %+v", view)
	}
	if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code)); !errors.Is(err, ErrOTPConsumed) {
		t.Fatalf("expected code to be spent after success, got %v", err)
	}
}

func TestCompleteSignupPasswordTooLongLeavesOTPUsable(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Password.MaxPasswordBytes = 16 })
	ctx := context.Background()

	if _, err := te.engine.RequestVerification(ctx, "Asha", "asha@example.com"); err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	code := codeFromMail(t, te.mail.messages()[0])

	req := signupRequest("asha@example.com", code)
	req.Password = strings.Repeat("p", 40)
	req.ConfirmPassword = req.Password
	if _, err := te.engine.CompleteSignup(ctx, req); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code)); err != nil {
		t.Fatalf("expected code to survive a rejected password, got %v", err)
	}
}

func TestCompleteSignupReplay(t *testing.T) {
	tests := []struct {
		name      string
		singleUse bool
		wantErr   error
	}{
		{name: "single use rejects replay", singleUse: true, wantErr: ErrOTPConsumed},
		{name: "reusable code reaches duplicate check", singleUse: false, wantErr: ErrAccountExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, func(c *Config) { c.OTP.SingleUse = tt.singleUse })
			ctx := context.Background()

			if _, err := te.engine.RequestVerification(ctx, "Asha", "asha@example.com"); err != nil {
				t.Fatalf("RequestVerification failed: %v", err)
			}
			code := codeFromMail(t, te.mail.messages()[0])

			if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code)); err != nil {
				t.Fatalf("first signup failed: %v", err)
			}
			if _, err := te.engine.CompleteSignup(ctx, signupRequest("asha@example.com", code)); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompleteSignupMissingFields(t *testing.T) {
	te := newTestEngine(t, nil)

	req := signupRequest("asha@example.com", "123456")
	req.ContactNumber = ""
	if _, err := te.engine.CompleteSignup(context.Background(), req); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestAvatarURLDeterministic(t *testing.T) {
	te := newTestEngine(t, nil)

	a := te.engine.avatarURL("Rahul", "Sharma")
	b := te.engine.avatarURL("Rahul", "Sharma")
	if a != b {
		t.Fatalf("expected identical avatars, got %q and %q", a, b)
	}
	if a != "https://api.dicebear.com/5.x/initials/svg?seed=Rahul+Sharma" {
		t.Fatalf("unexpected avatar %q", a)
	}
}

func TestRequestVerificationQueuedMailDeliveredOnClose(t *testing.T) {
	te := newTestEngine(t, func(c *Config) {
		c.Mail.Async = true
		c.Mail.BufferSize = 4
	})

	if _, err := te.engine.RequestVerification(context.Background(), "Asha", "asha@example.com"); err != nil {
		t.Fatalf("RequestVerification failed: %v", err)
	}
	te.engine.Close()

	if n := len(te.mail.messages()); n != 1 {
		t.Fatalf("expected queued mail to be delivered on close, got %d", n)
	}
	if got := te.engine.MetricsSnapshot().Counters[MetricMailSent]; got != 1 {
		t.Fatalf("expected MetricMailSent=1, got %d", got)
	}
}

func TestRequestVerificationQueueDropCountsAsMailFailure(t *testing.T) {
	te := newTestEngine(t, func(c *Config) {
		c.Mail.Async = true
		c.Mail.BufferSize = 1
		c.Mail.DropIfFull = true
	})
	gate := make(chan struct{})
	te.mail.mu.Lock()
	te.mail.gate = gate
	te.mail.mu.Unlock()

	for i := 0; i < 5; i++ {
		if _, err := te.engine.RequestVerification(context.Background(), "Asha", "asha@example.com"); err != nil {
			t.Fatalf("RequestVerification %d failed: %v", i, err)
		}
	}
	close(gate)
	te.engine.Close()

	dropped := te.engine.MailDropped()
	if dropped == 0 {
		t.Fatal("expected a full queue to drop mail")
	}
	counters := te.engine.MetricsSnapshot().Counters
	if got := counters[MetricMailFailed]; got != dropped {
		t.Fatalf("expected MetricMailFailed=%d, got %d", dropped, got)
	}
	if got := counters[MetricMailSent] + counters[MetricMailFailed]; got != 5 {
		t.Fatalf("expected every mail to be accounted for, got %d", got)
	}
}
