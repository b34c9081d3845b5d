package app

import (
	"context"
	"fmt"

	"github.com/plansocial/plans/internal/services/plans/domain"
)

// NewMembershipExecutor dispatches queued operation kinds onto the
// membership service.
func NewMembershipExecutor(membership *domain.MembershipService) Executor {
	return func(ctx context.Context, kind OperationKind, payload OperationPayload) error {
		switch kind {
		case OpRequestJoin:
			return membership.Request(ctx, payload.EventID, payload.ProfileID)
		case OpApproveRequest:
			return membership.Approve(ctx, payload.EventID, payload.ActorID, payload.ProfileID)
		case OpDenyRequest:
			return membership.Deny(ctx, payload.EventID, payload.ActorID, payload.ProfileID)
		case OpRemoveAttendee:
			return membership.Remove(ctx, payload.EventID, payload.ActorID, payload.ProfileID)
		default:
			return fmt.Errorf("unknown operation kind %q", kind)
		}
	}
}
