package middleware

import (
	"net/http"
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/action"
	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// SessionMiddleware reads the session cookie and, when it verifies, puts the
// claims on the request context. GET requests re-issue the cookie so active
// sessions keep sliding forward. Requests without a valid session continue
// anonymously.
func SessionMiddleware(codec *auth.SessionCodec, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := action.WithRequestInfo(c.Request.Context(), action.RequestInfo{
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		token := auth.SessionToken(c.Request)
		if token != "" {
			claims, err := codec.Verify(token)
			if err != nil {
				log.Debug("[Auth] dropping invalid session", "path", c.Request.URL.Path, "error", err)
				auth.ClearSessionCookie(c.Writer)
			} else {
				ctx = auth.WithSession(ctx, claims)
				c.Set(userIDKey, claims.User.ID)

				if c.Request.Method == http.MethodGet {
					if refreshed, err := codec.Issue(claims.User.ID); err == nil {
						auth.SetSessionCookie(c.Writer, refreshed)
					} else {
						log.Warn("[Auth] failed to refresh session", "user_id", claims.User.ID, "error", err)
					}
				}
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireUser rejects requests that carry no valid session.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth.UserIDFromContext(c.Request.Context()) == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}
		c.Next()
	}
}

// RequestLogger logs all incoming requests with details
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		}
		if userID := GetUserID(c); userID != 0 {
			fields = append(fields, "user_id", userID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("[HTTP] request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("[HTTP] request rejected", fields...)
		default:
			log.Info("[HTTP] request", fields...)
		}
	}
}

// ErrorLogger logs errors handlers attached with c.Error.
func ErrorLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			log.Error("[HTTP] handler error",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Err,
				"type", err.Type,
			)
		}
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) int64 {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return 0
	}
	id, _ := userID.(int64)
	return id
}
