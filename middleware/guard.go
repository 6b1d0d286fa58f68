package middleware

import (
	"errors"
	"net/http"
	"strings"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessTokenCookie is the cookie login sets and the guard reads first.
const AccessTokenCookie = "accessToken"

const accountContextKey = "campusauth.account"

const (
	msgNotLoggedIn     = "Unauthorized request. Please log in first."
	msgInvalidToken    = "Invalid Access Token"
	msgTokenCheckError = "Something went wrong while validating the Authentication"
	msgInternal        = "Internal server error."
)

// AccountFromContext returns the account attached by [Authenticate].
func AccountFromContext(c *gin.Context) (*campusAuth.AccountView, bool) {
	v, ok := c.Get(accountContextKey)
	if !ok {
		return nil, false
	}
	account, ok := v.(*campusAuth.AccountView)
	return account, ok && account != nil
}

// Authenticate resolves the access token from the accessToken cookie or
// an Authorization bearer header and attaches the account to the request.
// Requests without a valid token are answered with 401 and aborted.
func Authenticate(engine *campusAuth.Engine, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if engine == nil {
			abort(c, http.StatusInternalServerError, msgInternal)
			return
		}

		token := tokenFromRequest(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, msgNotLoggedIn)
			return
		}

		ctx := campusAuth.WithClientIP(c.Request.Context(), c.ClientIP())
		account, err := engine.Authenticate(ctx, token)
		if err != nil {
			switch {
			case errors.Is(err, campusAuth.ErrTokenMissing):
				abort(c, http.StatusUnauthorized, msgNotLoggedIn)
			case errors.Is(err, campusAuth.ErrAccountNotResolved):
				abort(c, http.StatusUnauthorized, msgInvalidToken)
			case errors.Is(err, campusAuth.ErrUnauthorized):
				abort(c, http.StatusUnauthorized, msgTokenCheckError)
			default:
				logger.Error("authenticate request", zap.String("path", c.Request.URL.Path), zap.Error(err))
				abort(c, http.StatusInternalServerError, msgInternal)
			}
			return
		}

		c.Set(accountContextKey, account)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	token, _ := bearerToken(c.GetHeader("Authorization"))
	return token
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}
