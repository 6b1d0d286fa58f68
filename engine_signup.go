package campusAuth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/campusAuth/internal"
	"github.com/MrEthical07/campusAuth/internal/flows"
	"github.com/MrEthical07/campusAuth/internal/stores"
	"go.uber.org/zap"
)

// RequestVerification issues a fresh OTP for email and mails it. Any code
// issued earlier for the same email stops working. The returned code is
// empty unless OTP.ExposeCodeInResponse is set.
func (e *Engine) RequestVerification(ctx context.Context, firstName, email string) (*OTPRequestResult, error) {
	if e == nil || e.otpStore == nil {
		return nil, ErrEngineNotReady
	}

	result, err := flows.RunRequestOTP(ctx, flows.OTPRequest{
		FirstName: strings.TrimSpace(firstName),
		Email:     strings.TrimSpace(email),
	}, flows.RequestOTPDeps{
		Digits:       e.config.OTP.Digits,
		TTL:          e.config.OTP.TTL,
		Now:          e.now,
		NewID:        internal.NewID,
		GenerateCode: internal.NewOTP,
		ReplaceOTP: func(ctx context.Context, r flows.OTPRecord) error {
			err := e.otpStore.Replace(ctx, &stores.OTPRecord{
				ID:        r.ID,
				Email:     r.Email,
				Code:      r.Code,
				CreatedAt: r.CreatedAt,
			})
			if err != nil {
				return mapOTPStoreError(err)
			}
			return nil
		},
		SendCode:  e.sendVerification,
		MetricInc: e.flowMetricInc,
		Metrics: flows.SignupMetrics{
			OTPRequested:     int(MetricOTPRequested),
			OTPRequestFailed: int(MetricOTPRequestFailure),
		},
		Errors: flows.SignupErrors{
			EngineNotReady: ErrEngineNotReady,
			MissingFields:  ErrMissingFields,
			InvalidEmail:   ErrInvalidEmail,
			OTPUnavailable: ErrOTPUnavailable,
		},
	})
	if err != nil {
		if errors.Is(err, ErrOTPUnavailable) {
			e.logger.Error("store otp failed", zap.String("email", email), zap.Error(err))
		}
		return nil, err
	}

	out := &OTPRequestResult{
		ID:        result.Record.ID,
		Email:     result.Record.Email,
		CreatedAt: result.Record.CreatedAt,
		ExpiresAt: result.ExpiresAt,
	}
	if e.config.OTP.ExposeCodeInResponse {
		out.Code = result.Record.Code
	}

	e.logger.Info("otp issued", zap.String("email", out.Email), zap.String("otp_id", out.ID))
	return out, nil
}

// CompleteSignup creates an account from req once its OTP checks out. The
// password is stored hashed and the account gets the configured default
// type. ErrAccountExists is returned when the email is already registered.
func (e *Engine) CompleteSignup(ctx context.Context, req SignupRequest) (*AccountView, error) {
	if e == nil || e.otpStore == nil || e.hasher == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	account, err := flows.RunCompleteSignup(ctx, flows.SignupRequest{
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		Email:           strings.TrimSpace(req.Email),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		OTP:             strings.TrimSpace(req.OTP),
		Gender:          strings.TrimSpace(req.Gender),
		ContactNumber:   strings.TrimSpace(req.ContactNumber),
	}, flows.CompleteSignupDeps{
		DefaultAccountType: string(e.config.Account.DefaultType),
		Now:                e.now,
		ConsumeOTP: func(ctx context.Context, email, code string, now time.Time) (flows.OTPRecord, error) {
			r, err := e.otpStore.Consume(ctx, email, code, now, e.config.OTP.TTL, e.config.OTP.SingleUse)
			if err != nil {
				return flows.OTPRecord{}, mapOTPStoreError(err)
			}
			return flows.OTPRecord{
				ID:         r.ID,
				Email:      r.Email,
				Code:       r.Code,
				CreatedAt:  r.CreatedAt,
				ConsumedAt: r.ConsumedAt,
			}, nil
		},
		ReleaseOTP: func(ctx context.Context, r flows.OTPRecord) {
			released, err := e.otpStore.Release(context.WithoutCancel(ctx), &stores.OTPRecord{
				ID:         r.ID,
				Email:      r.Email,
				ConsumedAt: r.ConsumedAt,
			})
			switch {
			case err != nil:
				e.logger.Error("release otp failed", zap.String("email", r.Email), zap.String("otp_id", r.ID), zap.Error(err))
			case released:
				e.logger.Info("otp released", zap.String("email", r.Email), zap.String("otp_id", r.ID))
			}
		},
		CheckPassword: e.checkPassword,
		HashPassword:  e.hashPassword,
		AvatarURL:     e.avatarURL,
		CreateAccount: func(ctx context.Context, a flows.NewAccount) (flows.Account, error) {
			u, err := e.userProvider.CreateUser(ctx, CreateUserInput{
				FirstName:     a.FirstName,
				LastName:      a.LastName,
				Email:         a.Email,
				PasswordHash:  a.PasswordHash,
				Gender:        a.Gender,
				ContactNumber: a.ContactNumber,
				AccountType:   AccountType(a.AccountType),
				Avatar:        a.Avatar,
				OTPID:         a.OTPID,
			})
			if err != nil {
				return flows.Account{}, err
			}
			return accountToFlow(u), nil
		},
		MetricInc: e.flowMetricInc,
		Metrics: flows.SignupMetrics{
			SignupSuccess: int(MetricSignupSuccess),
			SignupFailure: int(MetricSignupFailure),
			OTPRejected:   int(MetricOTPRejected),
		},
		Errors: flows.SignupErrors{
			EngineNotReady:    ErrEngineNotReady,
			MissingFields:     ErrMissingFields,
			InvalidEmail:      ErrInvalidEmail,
			PasswordMismatch:  ErrPasswordMismatch,
			OTPUnavailable:    ErrOTPUnavailable,
			ProviderDuplicate: ErrProviderDuplicateEmail,
			AccountExists:     ErrAccountExists,
		},
	})
	if err != nil {
		if errors.Is(err, ErrOTPUnavailable) {
			e.logger.Error("consume otp failed", zap.String("email", req.Email), zap.Error(err))
		}
		return nil, err
	}

	view := viewOf(userFromFlow(*account))
	e.logger.Info("account created", zap.String("user_id", view.ID), zap.String("account_type", string(view.AccountType)))
	return &view, nil
}
