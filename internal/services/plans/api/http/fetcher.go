package http

import (
	"context"
	"fmt"

	"github.com/plansocial/plans/internal/services/plans/app"
	"github.com/plansocial/plans/internal/services/plans/domain"
)

// NewFetcher resolves broker queries through the domain services, returning
// the same response shapes the REST surface serves.
func NewFetcher(events *domain.EventService, notifications *domain.NotificationService, profiles *domain.ProfileService) app.FetchFunc {
	return func(ctx context.Context, query app.Query) (any, error) {
		switch q := query.(type) {
		case app.RecentEvents:
			recent, err := events.ListRecent(ctx)
			if err != nil {
				return nil, err
			}
			return toEventResponses(recent), nil
		case app.UnreadNotifications:
			unread, err := notifications.ListUnread(ctx, q.ProfileID)
			if err != nil {
				return nil, err
			}
			return toNotificationResponses(unread), nil
		case app.EventByID:
			event, err := events.Get(ctx, q.ID)
			if err != nil {
				return nil, err
			}
			return toEventResponse(event), nil
		case app.ProfileByID:
			profile, err := profiles.Get(ctx, q.ID)
			if err != nil {
				return nil, err
			}
			return toProfileResponse(profile), nil
		default:
			return nil, fmt.Errorf("unsupported query %T", query)
		}
	}
}
