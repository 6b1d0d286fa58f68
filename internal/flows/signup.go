package flows

import (
	"context"
	"errors"
	"time"
)

type OTPRequest struct {
	FirstName string
	Email     string
}

type OTPRecord struct {
	ID         string
	Email      string
	Code       string
	CreatedAt  time.Time
	ConsumedAt time.Time
}

type OTPRequestResult struct {
	Record    OTPRecord
	ExpiresAt time.Time
}

type SignupRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	OTP             string
	Gender          string
	ContactNumber   string
}

type NewAccount struct {
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Gender        string
	ContactNumber string
	AccountType   string
	Avatar        string
	OTPID         string
}

// SignupMetrics carries metric IDs needed by signup flows.
type SignupMetrics struct {
	OTPRequested     int
	OTPRequestFailed int
	SignupSuccess    int
	SignupFailure    int
	OTPRejected      int
}

// SignupErrors carries host-level sentinel errors used by signup flows.
type SignupErrors struct {
	EngineNotReady    error
	MissingFields     error
	InvalidEmail      error
	PasswordMismatch  error
	OTPUnavailable    error
	ProviderDuplicate error
	AccountExists     error
}

type RequestOTPDeps struct {
	Digits int
	TTL    time.Duration

	Now          func() time.Time
	NewID        func() string
	GenerateCode func(int) (string, error)
	ReplaceOTP   func(context.Context, OTPRecord) error
	// SendCode hands the code to the mail collaborator. It must not block
	// on delivery and has no way to fail the request.
	SendCode func(ctx context.Context, email, firstName, code string)

	MetricInc func(int)
	Metrics   SignupMetrics
	Errors    SignupErrors
}

// RunRequestOTP issues a fresh code for req.Email, replacing any earlier one.
func RunRequestOTP(ctx context.Context, req OTPRequest, deps RequestOTPDeps) (*OTPRequestResult, error) {
	normalizeRequestOTPDeps(&deps)

	if deps.GenerateCode == nil || deps.ReplaceOTP == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if !Present(req.FirstName, req.Email) {
		deps.MetricInc(deps.Metrics.OTPRequestFailed)
		return nil, deps.Errors.MissingFields
	}
	if !ValidEmail(req.Email) {
		deps.MetricInc(deps.Metrics.OTPRequestFailed)
		return nil, deps.Errors.InvalidEmail
	}

	code, err := deps.GenerateCode(deps.Digits)
	if err != nil {
		deps.MetricInc(deps.Metrics.OTPRequestFailed)
		return nil, deps.Errors.OTPUnavailable
	}

	record := OTPRecord{
		ID:        deps.NewID(),
		Email:     req.Email,
		Code:      code,
		CreatedAt: deps.Now(),
	}
	if err := deps.ReplaceOTP(ctx, record); err != nil {
		deps.MetricInc(deps.Metrics.OTPRequestFailed)
		return nil, err
	}

	deps.SendCode(ctx, record.Email, req.FirstName, record.Code)
	deps.MetricInc(deps.Metrics.OTPRequested)

	return &OTPRequestResult{
		Record:    record,
		ExpiresAt: record.CreatedAt.Add(deps.TTL),
	}, nil
}

type CompleteSignupDeps struct {
	DefaultAccountType string

	Now        func() time.Time
	ConsumeOTP func(ctx context.Context, email, code string, now time.Time) (OTPRecord, error)
	// ReleaseOTP, when set, undoes a consume whose signup then failed.
	ReleaseOTP func(context.Context, OTPRecord)
	// CheckPassword, when set, rejects a password HashPassword would refuse
	// before the code is consumed.
	CheckPassword func(string) error
	HashPassword  func(string) (string, error)
	AvatarURL     func(firstName, lastName string) string
	CreateAccount func(context.Context, NewAccount) (Account, error)

	MetricInc func(int)
	Metrics   SignupMetrics
	Errors    SignupErrors
}

// RunCompleteSignup checks the submitted form, consumes the OTP and creates
// the account. Nothing is written when the passwords disagree, and a code
// consumed for a signup that then fails is released again.
func RunCompleteSignup(ctx context.Context, req SignupRequest, deps CompleteSignupDeps) (*Account, error) {
	normalizeCompleteSignupDeps(&deps)

	if deps.ConsumeOTP == nil || deps.HashPassword == nil || deps.CreateAccount == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if !Present(req.FirstName, req.LastName, req.Email, req.Password, req.ConfirmPassword, req.OTP, req.Gender, req.ContactNumber) {
		deps.MetricInc(deps.Metrics.SignupFailure)
		return nil, deps.Errors.MissingFields
	}
	if !ValidEmail(req.Email) {
		deps.MetricInc(deps.Metrics.SignupFailure)
		return nil, deps.Errors.InvalidEmail
	}
	if req.Password != req.ConfirmPassword {
		deps.MetricInc(deps.Metrics.SignupFailure)
		return nil, deps.Errors.PasswordMismatch
	}
	if err := deps.CheckPassword(req.Password); err != nil {
		deps.MetricInc(deps.Metrics.SignupFailure)
		return nil, err
	}

	otp, err := deps.ConsumeOTP(ctx, req.Email, req.OTP, deps.Now())
	if err != nil {
		deps.MetricInc(deps.Metrics.OTPRejected)
		deps.MetricInc(deps.Metrics.SignupFailure)
		return nil, err
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		deps.ReleaseOTP(ctx, otp)
		deps.MetricInc(deps.Metrics.SignupFailure)
		return nil, err
	}

	account, err := deps.CreateAccount(ctx, NewAccount{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		PasswordHash:  hash,
		Gender:        req.Gender,
		ContactNumber: req.ContactNumber,
		AccountType:   deps.DefaultAccountType,
		Avatar:        deps.AvatarURL(req.FirstName, req.LastName),
		OTPID:         otp.ID,
	})
	if err != nil {
		deps.ReleaseOTP(ctx, otp)
		deps.MetricInc(deps.Metrics.SignupFailure)
		if deps.Errors.ProviderDuplicate != nil && errors.Is(err, deps.Errors.ProviderDuplicate) {
			return nil, deps.Errors.AccountExists
		}
		return nil, err
	}

	deps.MetricInc(deps.Metrics.SignupSuccess)
	return &account, nil
}

func normalizeRequestOTPDeps(deps *RequestOTPDeps) {
	if deps.Digits <= 0 {
		deps.Digits = 6
	}
	if deps.TTL <= 0 {
		deps.TTL = 5 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return "" }
	}
	if deps.SendCode == nil {
		deps.SendCode = func(context.Context, string, string, string) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
}

func normalizeCompleteSignupDeps(deps *CompleteSignupDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.AvatarURL == nil {
		deps.AvatarURL = func(string, string) string { return "" }
	}
	if deps.CheckPassword == nil {
		deps.CheckPassword = func(string) error { return nil }
	}
	if deps.ReleaseOTP == nil {
		deps.ReleaseOTP = func(context.Context, OTPRecord) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
}
