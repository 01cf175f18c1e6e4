package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/waonpad/benkyo-1/internal/common"
	"github.com/waonpad/benkyo-1/internal/server/auth"
	"github.com/waonpad/benkyo-1/internal/server/observability"
	"github.com/waonpad/benkyo-1/internal/server/services"
)

const identityKey = "auth.identity"

type ctxKey string

const requestIDCtxKey ctxKey = "requestID"

// methodOverride lets a POST act as PUT, PATCH or DELETE when the override
// header says so. It wraps the engine because gin picks the route before
// any middleware runs.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			switch m := strings.ToUpper(strings.TrimSpace(r.Header.Get(common.MethodOverrideHeaderName))); m {
			case http.MethodPut, http.MethodPatch, http.MethodDelete:
				r.Method = m
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestID reuses the caller's X-Request-ID or makes a new one and echoes it.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(common.RequestIDHeaderName, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), requestIDCtxKey, id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ctx := c.Request.Context()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"request_id", ctx.Value(requestIDCtxKey),
			"client_ip", c.ClientIP(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Warn(ctx, "request served", args...)
			return
		}
		s.logger.Info(ctx, "request served", args...)
	}
}

func metrics() gin.HandlerFunc {
	return observability.Middleware()
}

func metricsHandler() http.Handler {
	return observability.Handler()
}

func (s *Server) cors() gin.HandlerFunc {
	origins := s.cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	cfg := cors.DefaultConfig()
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowCredentials = true
	cfg.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		common.AuthorizationHeaderName,
		common.MethodOverrideHeaderName,
		common.RequestIDHeaderName,
	}
	cfg.ExposeHeaders = []string{common.RequestIDHeaderName, common.RetryAfterHeaderName}
	return cors.New(cfg)
}

// requireAuth resolves the bearer token to an identity or answers 401.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader(common.AuthorizationHeaderName))
		if !ok {
			s.abortWith(c, http.StatusUnauthorized, "Unauthenticated.")
			return
		}

		id, err := s.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.writeError(c, err)
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func identity(c *gin.Context) *services.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(*services.Identity)
	return id
}
