package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plansocial/plans/internal/services/plans/domain"
)

// writeError maps a domain failure onto an HTTP status. Conflicting state
// transitions are 409, rejected input is 422, and a transient store outage
// is 503 so clients know to retry or queue.
func (s *Server) writeError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": validation.Error(),
			"field": validation.Field,
		})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrHostCannotRequest),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
