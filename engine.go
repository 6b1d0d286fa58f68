package campusAuth

import (
	"context"
	"errors"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/campusAuth/internal/flows"
	"github.com/MrEthical07/campusAuth/internal/mailqueue"
	"github.com/MrEthical07/campusAuth/internal/stores"
	"github.com/MrEthical07/campusAuth/jwt"
	"github.com/MrEthical07/campusAuth/password"
	"go.uber.org/zap"
)

// Engine runs the signup, session and authorization operations. It is safe
// for concurrent use once built.
type Engine struct {
	config        Config
	otpStore      *stores.OTPStore
	accessTokens  *jwt.Manager
	refreshTokens *jwt.Manager
	hasher        *password.Hasher
	userProvider  UserProvider
	mailer        Mailer
	mailQueue     *mailqueue.Dispatcher
	mailTemplate  *template.Template
	logger        *zap.Logger
	metrics       *Metrics
	now           func() time.Time
}

// Close drains the mail queue. Messages still queued are delivered first.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.mailQueue != nil {
		e.mailQueue.Close()
	}
}

// MailDropped returns how many verification mails were discarded without a
// delivery attempt, because the queue was full or already closed. Each one
// is also counted under MetricMailFailed.
func (e *Engine) MailDropped() uint64 {
	if e == nil || e.mailQueue == nil {
		return 0
	}
	return e.mailQueue.Dropped()
}

// MetricsSnapshot copies the current counters and histograms. It returns
// empty maps when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AccessTTL and RefreshTTL are used by transports to size cookies.
func (e *Engine) AccessTTL() time.Duration  { return e.config.JWT.AccessTTL }
func (e *Engine) RefreshTTL() time.Duration { return e.config.JWT.RefreshTTL }

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) flowMetricInc(id int) {
	e.metricInc(MetricID(id))
}

// Authenticate resolves an access token to the account it names. The token
// is verified and the account looked up on every call.
func (e *Engine) Authenticate(ctx context.Context, token string) (*AccountView, error) {
	if e == nil || e.accessTokens == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}

	account, err := flows.RunAuthenticate(ctx, token, flows.AuthenticateDeps{
		ParseAccess: func(t string) (string, error) {
			claims, err := e.accessTokens.Parse(t)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		},
		GetUserByID: e.flowUserByID,
		Now:         e.now,
		ObserveLatency: func(d time.Duration) {
			e.metrics.Observe(MetricValidateLatency, d)
		},
		MetricInc:     e.flowMetricInc,
		FailureMetric: int(MetricAuthenticateFailure),
		Errors: flows.AuthenticateErrors{
			EngineNotReady:     ErrEngineNotReady,
			TokenMissing:       ErrTokenMissing,
			TokenInvalid:       ErrTokenInvalid,
			AccountNotResolved: ErrAccountNotResolved,
			ProviderNotFound:   ErrProviderNotFound,
		},
	})
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			e.logger.Error("authenticate lookup failed", zap.String("client_ip", clientIPFromContext(ctx)), zap.Error(err))
		}
		return nil, err
	}

	view := viewOf(userFromFlow(*account))
	return &view, nil
}

// RequireRole returns ErrForbidden unless view has the given account type.
// A nil view is treated as unauthenticated.
func (e *Engine) RequireRole(view *AccountView, role AccountType) error {
	if view == nil {
		return ErrUnauthorized
	}
	if view.AccountType != role {
		e.metricInc(MetricRoleDenied)
		return ErrForbidden
	}
	return nil
}

func (e *Engine) issueTokens(account flows.Account) (flows.TokenPair, error) {
	access, _, err := e.accessTokens.Issue(account.ID, account.Email)
	if err != nil {
		return flows.TokenPair{}, errors.Join(ErrTokenIssue, err)
	}
	refresh, _, err := e.refreshTokens.Issue(account.ID, "")
	if err != nil {
		return flows.TokenPair{}, errors.Join(ErrTokenIssue, err)
	}
	return flows.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (e *Engine) checkPassword(plain string) error {
	if errors.Is(e.hasher.Check(plain), password.ErrPasswordTooLong) {
		return ErrPasswordTooLong
	}
	return nil
}

func (e *Engine) hashPassword(plain string) (string, error) {
	hash, err := e.hasher.Hash(plain)
	if errors.Is(err, password.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	return hash, err
}

func (e *Engine) flowUserByID(ctx context.Context, userID string) (flows.Account, error) {
	u, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		return flows.Account{}, err
	}
	return accountToFlow(u), nil
}

func (e *Engine) flowUserByEmail(ctx context.Context, email string) (flows.Account, error) {
	u, err := e.userProvider.GetUserByEmail(ctx, email)
	if err != nil {
		return flows.Account{}, err
	}
	return accountToFlow(u), nil
}

// avatarURL builds the initials avatar for a new account. The same name
// always yields the same URL.
func (e *Engine) avatarURL(firstName, lastName string) string {
	seed := strings.TrimSpace(firstName + " " + lastName)
	base := strings.TrimRight(e.config.Account.AvatarBaseURL, "?")
	return base + "?seed=" + url.QueryEscape(seed)
}

func accountToFlow(u UserRecord) flows.Account {
	return flows.Account{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		Gender:        u.Gender,
		ContactNumber: u.ContactNumber,
		AccountType:   string(u.AccountType),
		Avatar:        u.Avatar,
		RefreshToken:  u.RefreshToken,
		OTPID:         u.OTPID,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func userFromFlow(a flows.Account) UserRecord {
	return UserRecord{
		ID:            a.ID,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Email:         a.Email,
		PasswordHash:  a.PasswordHash,
		Gender:        a.Gender,
		ContactNumber: a.ContactNumber,
		AccountType:   AccountType(a.AccountType),
		Avatar:        a.Avatar,
		RefreshToken:  a.RefreshToken,
		OTPID:         a.OTPID,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func mapOTPStoreError(err error) error {
	switch {
	case errors.Is(err, stores.ErrOTPNotFound):
		return ErrOTPNotFound
	case errors.Is(err, stores.ErrOTPCodeMismatch):
		return ErrOTPInvalid
	case errors.Is(err, stores.ErrOTPExpired):
		return ErrOTPExpired
	case errors.Is(err, stores.ErrOTPConsumed):
		return ErrOTPConsumed
	case errors.Is(err, stores.ErrOTPRedisUnavailable):
		return errors.Join(ErrOTPUnavailable, err)
	default:
		return err
	}
}
