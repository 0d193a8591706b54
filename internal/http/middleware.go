package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tasktracker/internal/auth"
)

// requireAuth rejects requests without a valid access token and stores the
// verified claims in the request context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "authentication credentials were not provided")
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			unauthorized(c, "authorization header must be 'Bearer <token>'")
			return
		}

		claims, err := h.auth.Authorize(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			h.fail(c, err)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// callerID returns the id of the authenticated requester. Only valid behind requireAuth.
func callerID(c *gin.Context) int64 {
	claims, ok := auth.ClaimsFrom(c.Request.Context())
	if !ok {
		return 0
	}
	return claims.UserID
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if id := callerID(c); id != 0 {
			fields["user_id"] = id
		}
		entry := h.logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Debug("request handled")
		}
	}
}
