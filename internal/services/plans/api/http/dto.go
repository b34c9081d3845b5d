package http

import (
	"time"

	"github.com/plansocial/plans/internal/services/plans/domain"
)

type eventResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	PosterURL   string    `json:"poster_url,omitempty"`
	HostID      string    `json:"host_id"`
	Capacity    int       `json:"capacity,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	StartsAt    time.Time `json:"starts_at"`
	Requested   []string  `json:"requested"`
	Approved    []string  `json:"approved"`
	Full        bool      `json:"full"`
}

func toEventResponse(event domain.Event) eventResponse {
	requested := event.Requested
	if requested == nil {
		requested = []string{}
	}
	approved := event.Approved
	if approved == nil {
		approved = []string{}
	}
	return eventResponse{
		ID:          event.ID,
		Name:        event.Name,
		Category:    event.Category,
		Description: event.Description,
		Location:    event.Location,
		PosterURL:   event.PosterURL,
		HostID:      event.HostID,
		Capacity:    event.Capacity,
		CreatedAt:   event.CreatedAt,
		StartsAt:    event.StartsAt,
		Requested:   requested,
		Approved:    approved,
		Full:        event.IsFull(),
	}
}

func toEventResponses(events []domain.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, toEventResponse(event))
	}
	return out
}

type profileResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Username         string    `json:"username"`
	Dept             string    `json:"dept,omitempty"`
	PictureURL       string    `json:"picture_url,omitempty"`
	AttendedEventIDs []string  `json:"attended_event_ids"`
	MetProfileIDs    []string  `json:"met_profile_ids"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toProfileResponse(profile domain.Profile) profileResponse {
	attended := profile.AttendedEventIDs
	if attended == nil {
		attended = []string{}
	}
	met := profile.MetProfileIDs
	if met == nil {
		met = []string{}
	}
	return profileResponse{
		ID:               profile.ID,
		Name:             profile.Name,
		Username:         profile.Username,
		Dept:             profile.Dept,
		PictureURL:       profile.PictureURL,
		AttendedEventIDs: attended,
		MetProfileIDs:    met,
		CreatedAt:        profile.CreatedAt,
		UpdatedAt:        profile.UpdatedAt,
	}
}

func toProfileResponses(profiles []domain.Profile) []profileResponse {
	out := make([]profileResponse, 0, len(profiles))
	for _, profile := range profiles {
		out = append(out, toProfileResponse(profile))
	}
	return out
}

type notificationResponse struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	SenderID    string    `json:"sender_id,omitempty"`
	MessageType string    `json:"message_type"`
	EventID     string    `json:"event_id,omitempty"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}

func toNotificationResponse(notification domain.Notification) notificationResponse {
	return notificationResponse{
		ID:          notification.ID,
		RecipientID: notification.RecipientID,
		SenderID:    notification.SenderID,
		MessageType: string(notification.MessageType),
		EventID:     notification.EventID,
		Message:     notification.Message,
		Read:        notification.Read,
		CreatedAt:   notification.CreatedAt,
	}
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		out = append(out, toNotificationResponse(notification))
	}
	return out
}
