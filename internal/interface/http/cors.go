package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/chargemap/internal/infra/config"
)

// corsPolicy is the browser access policy for the map frontend.
type corsPolicy struct {
	origins []string
	methods string
	headers string
	maxAge  string
}

func newCORSPolicy(cfg config.HTTPConfig) corsPolicy {
	policy := corsPolicy{
		origins: cfg.AllowedOrigins,
		methods: strings.Join(cfg.AllowedMethods, ", "),
		headers: strings.Join(cfg.AllowedHeaders, ", "),
	}
	if cfg.CORSMaxAge > 0 {
		policy.maxAge = strconv.Itoa(int(cfg.CORSMaxAge.Seconds()))
	}
	return policy
}

// corsMiddleware answers preflights itself and decorates every other response.
func corsMiddleware(policy corsPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		origin := policy.resolveOrigin(c.GetHeader("Origin"))
		headers.Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			headers.Add("Vary", "Origin")
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		headers.Set("Access-Control-Allow-Methods", policy.methods)
		if policy.headers != "" {
			headers.Set("Access-Control-Allow-Headers", policy.headers)
		}
		if policy.maxAge != "" {
			headers.Set("Access-Control-Max-Age", policy.maxAge)
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

// resolveOrigin echoes an allowed request origin; unknown origins get the first entry.
func (p corsPolicy) resolveOrigin(requestOrigin string) string {
	if len(p.origins) == 0 {
		return "*"
	}
	for _, candidate := range p.origins {
		if candidate == "*" {
			return "*"
		}
		if requestOrigin != "" && strings.EqualFold(candidate, requestOrigin) {
			return requestOrigin
		}
	}
	return p.origins[0]
}
