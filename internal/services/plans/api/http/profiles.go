package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plansocial/plans/internal/services/plans/domain"
)

type createProfileRequest struct {
	Name       string `json:"name"`
	Username   string `json:"username"`
	Dept       string `json:"dept"`
	PictureURL string `json:"picture_url"`
}

type updateProfileRequest struct {
	Name       *string `json:"name"`
	Username   *string `json:"username"`
	Dept       *string `json:"dept"`
	PictureURL *string `json:"picture_url"`
}

type addConnectionRequest struct {
	ProfileID string `json:"profile_id"`
}

func (s *Server) createProfile(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// The profile id is the authenticated subject, not client-chosen.
	profile, err := s.profiles.Create(c.Request.Context(), domain.CreateProfileInput{
		ID:         callerID(c),
		Name:       req.Name,
		Username:   req.Username,
		Dept:       req.Dept,
		PictureURL: req.PictureURL,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProfileResponse(profile))
}

func (s *Server) getOwnProfile(c *gin.Context) {
	profile, err := s.profiles.Get(c.Request.Context(), callerID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(profile))
}

func (s *Server) getProfile(c *gin.Context) {
	profile, err := s.profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(profile))
}

func (s *Server) listProfiles(c *gin.Context) {
	profiles, err := s.profiles.List(c.Request.Context(), queryLimit(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": toProfileResponses(profiles)})
}

func (s *Server) updateOwnProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	profile, err := s.profiles.Update(c.Request.Context(), callerID(c), domain.UpdateProfileInput{
		Name:       req.Name,
		Username:   req.Username,
		Dept:       req.Dept,
		PictureURL: req.PictureURL,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toProfileResponse(profile))
}

func (s *Server) usernameAvailable(c *gin.Context) {
	available, err := s.profiles.UsernameAvailable(c.Request.Context(), c.Param("username"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": available})
}

func (s *Server) addConnection(c *gin.Context) {
	var req addConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.profiles.AddConnection(c.Request.Context(), callerID(c), req.ProfileID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
