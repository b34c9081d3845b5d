package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plansocial/plans/internal/services/plans/domain"
)

type createEventRequest struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	PosterURL   string    `json:"poster_url"`
	StartsAt    time.Time `json:"starts_at"`
	Capacity    int       `json:"capacity"`
}

type updateEventRequest struct {
	Name        *string    `json:"name"`
	Category    *string    `json:"category"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	PosterURL   *string    `json:"poster_url"`
	StartsAt    *time.Time `json:"starts_at"`
	Capacity    *int       `json:"capacity"`
}

func (s *Server) listRecentEvents(c *gin.Context) {
	events, err := s.events.ListRecent(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": toEventResponses(events)})
}

func (s *Server) createEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	event, err := s.events.Create(c.Request.Context(), callerID(c), domain.CreateEventInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Location:    req.Location,
		PosterURL:   req.PosterURL,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEventResponse(event))
}

func (s *Server) getEvent(c *gin.Context) {
	event, err := s.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func (s *Server) updateEvent(c *gin.Context) {
	var req updateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	event, err := s.events.Update(c.Request.Context(), c.Param("id"), callerID(c), domain.UpdateEventInput{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Location:    req.Location,
		PosterURL:   req.PosterURL,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toEventResponse(event))
}

func (s *Server) deleteEvent(c *gin.Context) {
	if err := s.events.Delete(c.Request.Context(), c.Param("id"), callerID(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listOwnEvents(c *gin.Context) {
	events, err := s.events.ListByHost(c.Request.Context(), callerID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": toEventResponses(events)})
}
