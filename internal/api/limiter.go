package api

import (
	"net/http"
	"strconv"

	"handoff-service/internal/apperr"
	"handoff-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// limitAttempts caps code verification attempts per client IP and scope.
// When the limiter is unreachable the request goes through. With
// resetOnSuccess a successful request clears the counter for its key; scopes
// where a valid code can be replayed leave it running.
func (h *Handler) limitAttempts(scope string, resetOnSuccess bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.opts.Limiter == nil || h.opts.MaxAttempts <= 0 {
			c.Next()
			return
		}

		key := scope + ":" + c.ClientIP()
		attempt, err := h.opts.Limiter.RegisterAttempt(c.Request.Context(), key, h.opts.MaxAttempts, h.opts.AttemptWindow)
		if err != nil {
			h.logger.Warn("Attempt limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		if !attempt.Allowed {
			util.RateLimitedTotal.WithLabelValues(scope).Inc()
			seconds := int(attempt.RetryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apperr.MsgTooManyAttempts})
			return
		}

		c.Next()

		if resetOnSuccess && c.Writer.Status() < http.StatusMultipleChoices {
			if err := h.opts.Limiter.ResetAttempts(c.Request.Context(), key); err != nil {
				h.logger.Warn("Failed to reset attempts", zap.String("scope", scope), zap.Error(err))
			}
		}
	}
}
