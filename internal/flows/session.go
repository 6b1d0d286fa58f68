package flows

import (
	"context"
	"crypto/subtle"
	"errors"
)

// SessionMetrics carries metric IDs needed by login, password and logout flows.
type SessionMetrics struct {
	LoginSuccess          int
	LoginFailure          int
	PasswordUpgraded      int
	PasswordChangeSuccess int
	PasswordChangeFailure int
	Logout                int
	RefreshSuccess        int
	RefreshFailure        int
}

// SessionErrors carries host-level sentinel errors used by session flows.
type SessionErrors struct {
	EngineNotReady   error
	MissingFields    error
	InvalidEmail     error
	NotRegistered    error
	WrongPassword    error
	PasswordMismatch error
	UserNotFound     error
	RefreshInvalid   error
	ProviderNotFound error
}

type LoginDeps struct {
	UpgradeOnLogin bool

	GetUserByEmail       func(context.Context, string) (Account, error)
	VerifyPassword       func(password, hash string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	UpdatePasswordHash   func(ctx context.Context, userID, hash string) error
	IssueTokens          func(Account) (TokenPair, error)
	SetRefreshToken      func(ctx context.Context, userID, token string) error
	OnUpgradeFailure     func(ctx context.Context, userID string, err error)

	MetricInc func(int)
	Metrics   SessionMetrics
	Errors    SessionErrors
}

// RunLogin verifies credentials, issues a token pair and stores the refresh
// token on the account. A failed login leaves the stored token untouched.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*SessionResult, error) {
	normalizeLoginDeps(&deps)

	if deps.GetUserByEmail == nil || deps.VerifyPassword == nil || deps.IssueTokens == nil || deps.SetRefreshToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if !Present(email, password) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.MissingFields
	}
	if !ValidEmail(email) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidEmail
	}

	account, err := deps.GetUserByEmail(ctx, email)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return nil, deps.Errors.NotRegistered
		}
		return nil, err
	}

	ok, err := deps.VerifyPassword(password, account.PasswordHash)
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.WrongPassword
	}

	if deps.UpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if upgrade, err := deps.PasswordNeedsUpgrade(account.PasswordHash); err == nil && upgrade {
			upgradePassword(ctx, account.ID, password, deps)
		}
	}

	tokens, err := deps.IssueTokens(account)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, err
	}

	if err := deps.SetRefreshToken(ctx, account.ID, tokens.RefreshToken); err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return nil, deps.Errors.NotRegistered
		}
		return nil, err
	}
	account.RefreshToken = tokens.RefreshToken

	deps.MetricInc(deps.Metrics.LoginSuccess)
	return &SessionResult{Account: account, Tokens: tokens}, nil
}

// upgradePassword is best-effort; a failure never blocks the login.
func upgradePassword(ctx context.Context, userID, password string, deps LoginDeps) {
	hash, err := deps.HashPassword(password)
	if err == nil {
		err = deps.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		deps.OnUpgradeFailure(ctx, userID, err)
		return
	}
	deps.MetricInc(deps.Metrics.PasswordUpgraded)
}

type ChangePasswordDeps struct {
	GetUserByID        func(context.Context, string) (Account, error)
	VerifyPassword     func(password, hash string) (bool, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error

	MetricInc func(int)
	Metrics   SessionMetrics
	Errors    SessionErrors
}

// RunChangePassword replaces the password of userID after checking the
// current one.
func RunChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirmPassword string, deps ChangePasswordDeps) error {
	normalizeChangePasswordDeps(&deps)

	if deps.GetUserByID == nil || deps.VerifyPassword == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return deps.Errors.EngineNotReady
	}
	if !Present(oldPassword, newPassword, confirmPassword) {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		return deps.Errors.MissingFields
	}

	account, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return deps.Errors.UserNotFound
		}
		return err
	}

	ok, err := deps.VerifyPassword(oldPassword, account.PasswordHash)
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		return deps.Errors.WrongPassword
	}
	if newPassword != confirmPassword {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		return deps.Errors.PasswordMismatch
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		return err
	}
	if err := deps.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		deps.MetricInc(deps.Metrics.PasswordChangeFailure)
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return deps.Errors.UserNotFound
		}
		return err
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	return nil
}

type LogoutDeps struct {
	ClearRefreshToken func(ctx context.Context, userID string) error

	MetricInc func(int)
	Metrics   SessionMetrics
	Errors    SessionErrors
}

// RunLogout drops the stored refresh token of userID.
func RunLogout(ctx context.Context, userID string, deps LogoutDeps) error {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ClearRefreshToken == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" {
		return deps.Errors.UserNotFound
	}

	if err := deps.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return deps.Errors.UserNotFound
		}
		return err
	}

	deps.MetricInc(deps.Metrics.Logout)
	return nil
}

type RefreshDeps struct {
	ParseRefresh    func(string) (userID string, err error)
	GetUserByID     func(context.Context, string) (Account, error)
	IssueTokens     func(Account) (TokenPair, error)
	SetRefreshToken func(ctx context.Context, userID, token string) error

	MetricInc func(int)
	Metrics   SessionMetrics
	Errors    SessionErrors
}

// RunRefresh redeems a refresh token. The token must verify and must equal
// the one stored on the account; the stored token is rotated on success.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*SessionResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ParseRefresh == nil || deps.GetUserByID == nil || deps.IssueTokens == nil || deps.SetRefreshToken == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if refreshToken == "" {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.RefreshInvalid
	}

	userID, err := deps.ParseRefresh(refreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.RefreshInvalid
	}

	account, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return nil, deps.Errors.RefreshInvalid
		}
		return nil, err
	}

	if account.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(account.RefreshToken), []byte(refreshToken)) != 1 {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, deps.Errors.RefreshInvalid
	}

	tokens, err := deps.IssueTokens(account)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		return nil, err
	}
	if err := deps.SetRefreshToken(ctx, account.ID, tokens.RefreshToken); err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if errors.Is(err, deps.Errors.ProviderNotFound) {
			return nil, deps.Errors.RefreshInvalid
		}
		return nil, err
	}
	account.RefreshToken = tokens.RefreshToken

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	return &SessionResult{Account: account, Tokens: tokens}, nil
}

func normalizeLoginDeps(deps *LoginDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.OnUpgradeFailure == nil {
		deps.OnUpgradeFailure = func(context.Context, string, error) {}
	}
}

func normalizeChangePasswordDeps(deps *ChangePasswordDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
}
