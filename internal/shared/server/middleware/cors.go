package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-Request-Id"
	corsExpose  = "X-Request-Id, Retry-After"
	corsMaxAge  = "600"
)

// CORSPolicy lists the browser origins allowed to call the API. "*" allows
// any origin; with credentials on the caller's origin is echoed back.
type CORSPolicy struct {
	Origins          []string
	AllowCredentials bool
}

func (p CORSPolicy) matcher() func(string) bool {
	allowed := make(map[string]bool, len(p.Origins))
	for _, o := range p.Origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = true
		}
	}
	if allowed["*"] {
		return func(string) bool { return true }
	}
	return func(origin string) bool { return allowed[origin] }
}

// CORS answers preflight requests and decorates responses for allowed origins.
func CORS(policy CORSPolicy) gin.HandlerFunc {
	allowed := policy.matcher()
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		ok := origin != "" && allowed(origin)
		h := c.Writer.Header()
		if ok {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Vary", "Origin")
			h.Set("Access-Control-Expose-Headers", corsExpose)
			if policy.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""
		if !preflight {
			c.Next()
			return
		}
		if ok {
			h.Set("Access-Control-Allow-Methods", corsMethods)
			if requested := c.GetHeader("Access-Control-Request-Headers"); requested != "" {
				h.Set("Access-Control-Allow-Headers", requested)
			} else {
				h.Set("Access-Control-Allow-Headers", corsHeaders)
			}
			h.Set("Access-Control-Max-Age", corsMaxAge)
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}
