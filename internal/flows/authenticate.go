package flows

import (
	"context"
	"errors"
	"time"
)

// AuthenticateErrors carries host-level sentinel errors used by RunAuthenticate.
type AuthenticateErrors struct {
	EngineNotReady     error
	TokenMissing       error
	TokenInvalid       error
	AccountNotResolved error
	ProviderNotFound   error
}

type AuthenticateDeps struct {
	ParseAccess    func(string) (userID string, err error)
	GetUserByID    func(context.Context, string) (Account, error)
	Now            func() time.Time
	ObserveLatency func(time.Duration)

	MetricInc     func(int)
	FailureMetric int
	Errors        AuthenticateErrors
}

// RunAuthenticate resolves an access token to its account. It is evaluated
// from scratch on every request; nothing is cached.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) (*Account, error) {
	normalizeAuthenticateDeps(&deps)

	if deps.ParseAccess == nil || deps.GetUserByID == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() { deps.ObserveLatency(deps.Now().Sub(start)) }()

	if token == "" {
		deps.MetricInc(deps.FailureMetric)
		return nil, deps.Errors.TokenMissing
	}

	userID, err := deps.ParseAccess(token)
	if err != nil {
		deps.MetricInc(deps.FailureMetric)
		return nil, deps.Errors.TokenInvalid
	}

	account, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		deps.MetricInc(deps.FailureMetric)
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return nil, deps.Errors.AccountNotResolved
		}
		return nil, err
	}

	return &account, nil
}

func normalizeAuthenticateDeps(deps *AuthenticateDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(time.Duration) {}
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
}
