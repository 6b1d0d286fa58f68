package campusAuth

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/campusAuth/internal/flows"
	"go.uber.org/zap"
)

func (e *Engine) sessionErrors() flows.SessionErrors {
	return flows.SessionErrors{
		EngineNotReady:   ErrEngineNotReady,
		MissingFields:    ErrMissingFields,
		InvalidEmail:     ErrInvalidEmail,
		NotRegistered:    ErrNotRegistered,
		WrongPassword:    ErrWrongPassword,
		PasswordMismatch: ErrPasswordMismatch,
		UserNotFound:     ErrUserNotFound,
		RefreshInvalid:   ErrRefreshInvalid,
		ProviderNotFound: ErrProviderNotFound,
	}
}

func sessionMetrics() flows.SessionMetrics {
	return flows.SessionMetrics{
		LoginSuccess:          int(MetricLoginSuccess),
		LoginFailure:          int(MetricLoginFailure),
		PasswordUpgraded:      int(MetricPasswordUpgraded),
		PasswordChangeSuccess: int(MetricPasswordChangeSuccess),
		PasswordChangeFailure: int(MetricPasswordChangeFailure),
		Logout:                int(MetricLogout),
		RefreshSuccess:        int(MetricRefreshSuccess),
		RefreshFailure:        int(MetricRefreshFailure),
	}
}

// Login checks email and password and issues a fresh token pair. The new
// refresh token replaces whatever was stored on the account, so a second
// login invalidates the first session's refresh token.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil || e.userProvider == nil || e.hasher == nil || e.accessTokens == nil {
		return nil, ErrEngineNotReady
	}

	result, err := flows.RunLogin(ctx, strings.TrimSpace(email), password, flows.LoginDeps{
		UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
		GetUserByEmail:       e.flowUserByEmail,
		VerifyPassword:       e.hasher.Verify,
		PasswordNeedsUpgrade: e.hasher.NeedsUpgrade,
		HashPassword:         e.hashPassword,
		UpdatePasswordHash:   e.userProvider.UpdatePasswordHash,
		IssueTokens:          e.issueTokens,
		SetRefreshToken:      e.userProvider.SetRefreshToken,
		OnUpgradeFailure: func(ctx context.Context, userID string, err error) {
			e.logger.Warn("password rehash failed", zap.String("user_id", userID), zap.Error(err))
		},
		MetricInc: e.flowMetricInc,
		Metrics:   sessionMetrics(),
		Errors:    e.sessionErrors(),
	})
	if err != nil {
		if !errors.Is(err, ErrValidation) && !errors.Is(err, ErrNotRegistered) && !errors.Is(err, ErrWrongPassword) {
			e.logger.Error("login failed", zap.String("client_ip", clientIPFromContext(ctx)), zap.Error(err))
		}
		return nil, err
	}

	e.logger.Info("user logged in", zap.String("user_id", result.Account.ID))
	return e.loginResult(result), nil
}

// ChangePassword replaces the password of an authenticated account. The
// old password must verify and the new one must match its confirmation.
// Issued tokens stay valid.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword, confirmPassword string) error {
	if e == nil || e.userProvider == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	err := flows.RunChangePassword(ctx, userID, oldPassword, newPassword, confirmPassword, flows.ChangePasswordDeps{
		GetUserByID:        e.flowUserByID,
		VerifyPassword:     e.hasher.Verify,
		HashPassword:       e.hashPassword,
		UpdatePasswordHash: e.userProvider.UpdatePasswordHash,
		MetricInc:          e.flowMetricInc,
		Metrics:            sessionMetrics(),
		Errors:             e.sessionErrors(),
	})
	if err != nil {
		return err
	}

	e.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}

// Logout clears the stored refresh token. The caller's access token stays
// valid until it expires.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if e == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}

	err := flows.RunLogout(ctx, userID, flows.LogoutDeps{
		ClearRefreshToken: e.userProvider.ClearRefreshToken,
		MetricInc:         e.flowMetricInc,
		Metrics:           sessionMetrics(),
		Errors:            e.sessionErrors(),
	})
	if err != nil {
		return err
	}

	e.logger.Info("user logged out", zap.String("user_id", userID))
	return nil
}

// Refresh redeems the refresh token stored on an account for a new pair.
// The presented token must be the one currently stored; it is rotated.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if e == nil || e.userProvider == nil || e.refreshTokens == nil {
		return nil, ErrEngineNotReady
	}

	result, err := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		ParseRefresh: func(t string) (string, error) {
			claims, err := e.refreshTokens.Parse(t)
			if err != nil {
				return "", err
			}
			return claims.Subject, nil
		},
		GetUserByID:     e.flowUserByID,
		IssueTokens:     e.issueTokens,
		SetRefreshToken: e.userProvider.SetRefreshToken,
		MetricInc:       e.flowMetricInc,
		Metrics:         sessionMetrics(),
		Errors:          e.sessionErrors(),
	})
	if err != nil {
		return nil, err
	}

	return e.loginResult(result), nil
}

func (e *Engine) loginResult(r *flows.SessionResult) *LoginResult {
	return &LoginResult{
		Account:      viewOf(userFromFlow(r.Account)),
		AccessToken:  r.Tokens.AccessToken,
		RefreshToken: r.Tokens.RefreshToken,
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.JWT.RefreshTTL,
	}
}
