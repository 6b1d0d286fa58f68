package middleware

import (
	"errors"
	"net/http"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/gin-gonic/gin"
)

// RequireRole lets the request through only when the authenticated account
// has the given type. It must run after [Authenticate]. message is the
// body sent with the 403.
func RequireRole(engine *campusAuth.Engine, role campusAuth.AccountType, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := AccountFromContext(c)
		if !ok {
			abort(c, http.StatusUnauthorized, msgNotLoggedIn)
			return
		}

		if err := engine.RequireRole(account, role); err != nil {
			if errors.Is(err, campusAuth.ErrForbidden) {
				abort(c, http.StatusForbidden, message)
				return
			}
			abort(c, http.StatusUnauthorized, msgNotLoggedIn)
			return
		}

		c.Next()
	}
}
