package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		return 0
	}
	return limit
}

func (s *Server) listNotifications(c *gin.Context) {
	notifications, err := s.notifications.List(c.Request.Context(), callerID(c), queryLimit(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": toNotificationResponses(notifications)})
}

func (s *Server) listUnreadNotifications(c *gin.Context) {
	notifications, err := s.notifications.ListUnread(c.Request.Context(), callerID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": toNotificationResponses(notifications)})
}

func (s *Server) countUnreadNotifications(c *gin.Context) {
	count, err := s.notifications.CountUnread(c.Request.Context(), callerID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	if err := s.notifications.MarkRead(c.Request.Context(), callerID(c), c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	count, err := s.notifications.MarkAllRead(c.Request.Context(), callerID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}
