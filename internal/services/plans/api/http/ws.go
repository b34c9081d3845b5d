package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/plansocial/plans/internal/services/plans/app"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bearer token already authenticates the connection.
	CheckOrigin: func(*http.Request) bool { return true },
}

type feedMessage struct {
	Query string `json:"query"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// parseFeedQuery maps the ws query parameters onto a broker query shape.
// The unread feed is always the caller's own.
func parseFeedQuery(c *gin.Context) (app.Query, bool) {
	switch c.Query("feed") {
	case "recent_events":
		return app.RecentEvents{}, true
	case "unread_notifications":
		return app.UnreadNotifications{ProfileID: callerID(c)}, true
	case "event":
		if id := c.Query("id"); id != "" {
			return app.EventByID{ID: id}, true
		}
	case "profile":
		if id := c.Query("id"); id != "" {
			return app.ProfileByID{ID: id}, true
		}
	}
	return nil, false
}

// liveFeed streams snapshots of one query shape over a websocket. Every
// relevant committed change produces a fresh snapshot; a fetch failure is
// delivered as an error message and the stream resumes when the store
// recovers.
func (s *Server) liveFeed(c *gin.Context) {
	query, ok := parseFeedQuery(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown feed"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.broker.Subscribe(c.Request.Context(), query)
	defer cancel()

	// Read pump: the client sends nothing we act on, but reads drive pong
	// handling and detect the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case update, open := <-updates:
			if !open {
				return
			}
			message := feedMessage{Query: c.Query("feed"), Data: update.Data}
			if update.Err != nil {
				message.Error = "temporarily unavailable"
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
