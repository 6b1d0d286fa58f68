// Package httpapi exposes the campusAuth engine as the college app REST API
// mounted under /api/v1.
package httpapi

import (
	"net/http"
	"time"

	campusAuth "github.com/MrEthical07/campusAuth"
	"github.com/MrEthical07/campusAuth/metrics/export/prometheus"
	"github.com/MrEthical07/campusAuth/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const welcomeMessage = "Welcome To Jhunjhunwala Group of Institutions College App API Home Page"

// Config controls the HTTP surface.
type Config struct {
	// AllowedOrigins lists the frontends allowed to call the API with
	// credentials. CORS is not enabled when it is empty.
	AllowedOrigins []string
	// SecureCookies sets the Secure attribute on token cookies.
	SecureCookies bool
	// ExposeMetrics mounts GET /metrics.
	ExposeMetrics bool
}

// NewRouter mounts every route on a fresh gin engine.
func NewRouter(engine *campusAuth.Engine, cfg Config, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(recovery(logger))
	router.Use(requestLogger(logger))
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	h := &handler{
		engine:  engine,
		cookies: cookiePolicy{secure: cfg.SecureCookies},
		logger:  logger.Named("httpapi"),
	}

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, welcomeMessage)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	if cfg.ExposeMetrics {
		router.GET("/metrics", gin.WrapH(prometheus.NewPrometheusExporter(engine).Handler()))
	}

	api := router.Group("/api/v1")
	api.POST("/sendOTP", h.sendOTP)
	api.POST("/signUp", h.signUp)
	api.POST("/logIn", h.logIn)
	api.POST("/refreshToken", h.refreshToken)

	authed := api.Group("/", middleware.Authenticate(engine, logger))
	authed.POST("/changePassword", h.changePassword)
	authed.POST("/logoutUser", h.logoutUser)
	authed.GET("/student",
		middleware.RequireRole(engine, campusAuth.AccountStudent, "You are not authorized. This route is protected for Student"),
		func(c *gin.Context) { c.String(http.StatusOK, "this is secure of student") },
	)
	authed.GET("/teacher",
		middleware.RequireRole(engine, campusAuth.AccountTeacher, "You are not authorized. This route is protected for teachers."),
		func(c *gin.Context) { c.String(http.StatusOK, "this is secure of teacher") },
	)

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic serving request", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		fail(c, http.StatusInternalServerError, msgInternal)
	})
}
