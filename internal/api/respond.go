package api

import (
	"net/http"
	"strconv"

	"handoff-service/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError writes {"error": msg} with the status of err's kind. Store
// failures are logged and hidden from the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

// queryID parses a required positive integer query parameter.
func queryID(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, apperr.Required(name)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid " + name)
	}
	return id, nil
}
