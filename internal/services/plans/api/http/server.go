// Package http exposes the plans service over REST and a websocket live
// feed. Authentication is a bearer JWT whose subject is the caller's
// profile id.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plansocial/plans/internal/services/plans/app"
	"github.com/plansocial/plans/internal/services/plans/domain"
)

// Server bundles the wired services behind the router.
type Server struct {
	events        *domain.EventService
	membership    *domain.MembershipService
	notifications *domain.NotificationService
	profiles      *domain.ProfileService
	queue         *app.OperationQueue
	broker        *app.Broker
	jwtSecret     []byte
	logger        *slog.Logger
}

// Options carries the server's collaborators.
type Options struct {
	Events        *domain.EventService
	Membership    *domain.MembershipService
	Notifications *domain.NotificationService
	Profiles      *domain.ProfileService
	Queue         *app.OperationQueue
	Broker        *app.Broker
	JWTSecret     []byte
	Logger        *slog.Logger
}

// NewServer constructs the HTTP surface.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		events:        opts.Events,
		membership:    opts.Membership,
		notifications: opts.Notifications,
		profiles:      opts.Profiles,
		queue:         opts.Queue,
		broker:        opts.Broker,
		jwtSecret:     opts.JWTSecret,
		logger:        logger,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(authRequired(s.jwtSecret))
	{
		api.GET("/events", s.listRecentEvents)
		api.POST("/events", s.createEvent)
		api.GET("/events/:id", s.getEvent)
		api.PATCH("/events/:id", s.updateEvent)
		api.DELETE("/events/:id", s.deleteEvent)

		api.POST("/events/:id/requests", s.requestJoin)
		api.POST("/events/:id/requests/:profileID/approve", s.approveRequest)
		api.POST("/events/:id/requests/:profileID/deny", s.denyRequest)
		api.DELETE("/events/:id/attendees/:profileID", s.removeAttendee)

		api.GET("/profiles", s.listProfiles)
		api.POST("/profiles", s.createProfile)
		api.GET("/profiles/me", s.getOwnProfile)
		api.PATCH("/profiles/me", s.updateOwnProfile)
		api.GET("/profiles/me/events", s.listOwnEvents)
		api.GET("/profiles/:id", s.getProfile)
		api.POST("/profiles/me/connections", s.addConnection)
		api.GET("/usernames/:username/available", s.usernameAvailable)

		api.GET("/notifications", s.listNotifications)
		api.GET("/notifications/unread", s.listUnreadNotifications)
		api.GET("/notifications/unread/count", s.countUnreadNotifications)
		api.POST("/notifications/:id/read", s.markNotificationRead)
		api.POST("/notifications/read-all", s.markAllNotificationsRead)

		api.GET("/ws", s.liveFeed)
	}

	return router
}
