package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plansocial/plans/internal/services/plans/app"
)

// Membership transitions go through the operation queue: applied live when
// the store is reachable, accepted for replay otherwise.
func (s *Server) submitMembership(c *gin.Context, kind app.OperationKind, payload app.OperationPayload) {
	outcome, err := s.queue.Submit(c.Request.Context(), kind, payload)
	if err != nil {
		s.writeError(c, err)
		return
	}
	switch outcome {
	case app.OutcomeQueued:
		c.JSON(http.StatusAccepted, gin.H{"status": string(outcome)})
	default:
		c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
	}
}

func (s *Server) requestJoin(c *gin.Context) {
	caller := callerID(c)
	s.submitMembership(c, app.OpRequestJoin, app.OperationPayload{
		EventID:   c.Param("id"),
		ProfileID: caller,
	})
}

func (s *Server) approveRequest(c *gin.Context) {
	s.submitMembership(c, app.OpApproveRequest, app.OperationPayload{
		EventID:   c.Param("id"),
		ActorID:   callerID(c),
		ProfileID: c.Param("profileID"),
	})
}

func (s *Server) denyRequest(c *gin.Context) {
	s.submitMembership(c, app.OpDenyRequest, app.OperationPayload{
		EventID:   c.Param("id"),
		ActorID:   callerID(c),
		ProfileID: c.Param("profileID"),
	})
}

func (s *Server) removeAttendee(c *gin.Context) {
	s.submitMembership(c, app.OpRemoveAttendee, app.OperationPayload{
		EventID:   c.Param("id"),
		ActorID:   callerID(c),
		ProfileID: c.Param("profileID"),
	})
}
