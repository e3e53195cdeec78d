package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"secret-friend/internal/handler"
	"secret-friend/internal/metrics"
)

// unmatchedRoute labels requests that matched no route.
const unmatchedRoute = "unmatched"

// route returns the route template of the request. Raw paths carry tokens
// and must not end up in logs or metric labels.
func route(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return unmatchedRoute
}

// LoggingMiddleware logs every request once it completes.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Debug()
		if status >= http.StatusInternalServerError {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Handled request")
	}
}

// RecoveryMiddleware recovers from panics and answers with a 500 envelope.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("route", route(c)).
					Msg("Recovered from panic in handler")
				c.AbortWithStatusJSON(http.StatusInternalServerError, handler.ErrorBody{
					Detail: handler.ErrorDetail{Code: handler.CodeInternal, Message: "Internal server error"},
				})
			}
		}()
		c.Next()
	}
}

// NoStoreMiddleware forbids caching of any response. Responses may carry
// tokens and secret assignments.
func NoStoreMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// TimeoutMiddleware bounds the request context by d.
func TimeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// MetricsMiddleware collects HTTP request metrics.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		r := route(c)

		metrics.RequestInProgress.WithLabelValues(method, r).Inc()
		defer metrics.RequestInProgress.WithLabelValues(method, r).Dec()

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.RequestCounter.WithLabelValues(status, method, r).Inc()
		metrics.RequestDuration.WithLabelValues(status, method, r).Observe(time.Since(start).Seconds())
	}
}

// CORSMiddleware allows the configured frontend origins. A "*" entry allows
// every origin. Returns nil when no origin is configured.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return nil
	}

	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", handler.HeaderAdminPassword, handler.HeaderMasterPassword},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
