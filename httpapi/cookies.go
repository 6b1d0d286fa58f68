package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/campusAuth/middleware"
	"github.com/gin-gonic/gin"
)

const refreshTokenCookie = "refreshToken"

// cookiePolicy applies the same attributes when setting and clearing, so
// browsers treat both as the same cookie.
type cookiePolicy struct {
	secure bool
}

func (p cookiePolicy) set(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, value, int(ttl/time.Second), "/", "", p.secure, true)
}

func (p cookiePolicy) clear(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(name, "", -1, "/", "", p.secure, true)
}

func (p cookiePolicy) setTokens(c *gin.Context, access, refresh string, accessTTL, refreshTTL time.Duration) {
	p.set(c, middleware.AccessTokenCookie, access, accessTTL)
	p.set(c, refreshTokenCookie, refresh, refreshTTL)
}

func (p cookiePolicy) clearTokens(c *gin.Context) {
	p.clear(c, middleware.AccessTokenCookie)
	p.clear(c, refreshTokenCookie)
}
