package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/services/health"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/shared/metrics"
	"jobboard-backend/internal/shared/server/middleware"
	"jobboard-backend/internal/shared/server/respond"
)

// Rate limit groups.
const (
	RateGroupDefault    = "DEFAULT"
	RateGroupAuth       = "AUTH"
	RateGroupEvaluation = "EVALUATION"
)

const slashRetriedKey = "slashRetried"

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries what the router needs from bootstrap.
type RouterDeps struct {
	Config     config.Config
	Tokens     middleware.TokenVerifier
	Principals middleware.PrincipalLoader
	Health     *health.Service
	Handlers   []RouteRegistrar
	RateRules  map[string]middleware.RateLimitRule
	Limiter    *middleware.RateLimiter
}

// DefaultRateRules returns per-group token buckets.
func DefaultRateRules() map[string]middleware.RateLimitRule {
	return map[string]middleware.RateLimitRule{
		RateGroupDefault:    {Rate: 20, Burst: 40},
		RateGroupAuth:       {Rate: 1, Burst: 5},
		RateGroupEvaluation: {Rate: 0.5, Burst: 5},
	}
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.RedirectTrailingSlash = false

	rules := deps.RateRules
	if rules == nil {
		rules = DefaultRateRules()
	}

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		metrics.Middleware(),
		middleware.CORS(middleware.CORSPolicy{
			Origins:          deps.Config.CORSAllowOrigin,
			AllowCredentials: deps.Config.CORSAllowCredentials,
		}),
		middleware.Auth(deps.Tokens, deps.Principals),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:        rules,
			DefaultGroup: RateGroupDefault,
			GroupFor:     rateGroup,
			Limiter:      deps.Limiter,
		}),
	)

	r.GET("/metrics", metrics.Handler())

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}
	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, healthSvc.Status())
	})
	api.GET("/health/ready", func(c *gin.Context) {
		report := healthSvc.Ready(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})

	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	r.NoRoute(retryWithSlash(r))
	return r
}

// retryWithSlash re-dispatches "/path" as "/path/" once, so clients may omit
// the trailing slash on any route.
func retryWithSlash(r *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasSuffix(path, "/") || c.Request.Header.Get(slashRetriedKey) != "" {
			respond.NotFound(c)
			return
		}
		c.Request.Header.Set(slashRetriedKey, "1")
		c.Request.URL.Path = path + "/"
		r.HandleContext(c)
		c.Abort()
	}
}

func rateGroup(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return RateGroupDefault
	}
	switch c.FullPath() {
	case "/api/v1/auth/login/", "/api/v1/auth/password-reset/", "/api/v1/auth/password-recovery/", "/api/v1/user/":
		return RateGroupAuth
	case "/api/v1/interview/a/:chat_id/":
		return RateGroupEvaluation
	}
	return RateGroupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
