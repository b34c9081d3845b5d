package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// fallbackSenderName is used in notification text when the requester's
// profile cannot be loaded.
const fallbackSenderName = "Someone"

// MembershipService drives the request lifecycle on events: none ->
// requested -> approved, with denial and removal returning to none. Every
// transition is a single atomic store delta, and each of request, approve,
// and deny emits exactly one notification. Removal emits none.
type MembershipService struct {
	events        EventStore
	profiles      ProfileStore
	notifications *NotificationService
	logger        *slog.Logger
}

// NewMembershipService constructs membership use-cases.
func NewMembershipService(events EventStore, profiles ProfileStore, notifications *NotificationService, logger *slog.Logger) *MembershipService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MembershipService{
		events:        events,
		profiles:      profiles,
		notifications: notifications,
		logger:        logger,
	}
}

// Request asks to join an event. Hosts cannot request their own event, and
// an already-approved profile cannot re-enter the requested state. Repeating
// a pending request is a no-op and emits nothing.
func (s *MembershipService) Request(ctx context.Context, eventID, requesterID string) error {
	if s == nil || s.events == nil {
		return ErrStoreNotConfigured
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return &ValidationError{Field: "requester", Reason: "requester id is required"}
	}
	event, err := s.events.GetEvent(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return err
	}
	switch event.Membership(requesterID) {
	case MembershipHost:
		return ErrHostCannotRequest
	case MembershipApproved:
		return ErrInvalidTransition
	case MembershipRequested:
		return nil
	}

	if err := s.events.AddRequest(ctx, event.ID, requesterID); err != nil {
		return err
	}
	message := fmt.Sprintf("%s wants to join your event \"%s\"", s.senderName(ctx, requesterID), event.Name)
	s.emit(ctx, event.HostID, requesterID, MessageEventRequest, event, message)
	return nil
}

// Approve moves a pending request into the approved set. Host-only. The
// store re-checks capacity atomically, so concurrent approvals can never
// overshoot the cap.
func (s *MembershipService) Approve(ctx context.Context, eventID, actorID, requesterID string) error {
	event, err := s.hostGuard(ctx, eventID, actorID)
	if err != nil {
		return err
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return &ValidationError{Field: "requester", Reason: "requester id is required"}
	}

	if err := s.events.ApproveRequest(ctx, event.ID, requesterID); err != nil {
		if isNotFound(err) {
			return ErrInvalidTransition
		}
		return err
	}
	if s.profiles != nil {
		if err := s.profiles.AddAttendedEvent(ctx, requesterID, event.ID); err != nil {
			s.logger.Warn("record attended event",
				"event_id", event.ID,
				"profile_id", requesterID,
				"error", err,
			)
		}
	}
	message := fmt.Sprintf("Your request to join \"%s\" has been approved!", event.Name)
	s.emit(ctx, requesterID, event.HostID, MessageRequestApproved, event, message)
	return nil
}

// Deny rejects a pending request. Host-only.
func (s *MembershipService) Deny(ctx context.Context, eventID, actorID, requesterID string) error {
	event, err := s.hostGuard(ctx, eventID, actorID)
	if err != nil {
		return err
	}
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return &ValidationError{Field: "requester", Reason: "requester id is required"}
	}

	if err := s.events.RemoveRequest(ctx, event.ID, requesterID); err != nil {
		if isNotFound(err) {
			return ErrInvalidTransition
		}
		return err
	}
	message := fmt.Sprintf("Your request to join \"%s\" was not approved.", event.Name)
	s.emit(ctx, requesterID, event.HostID, MessageRequestDenied, event, message)
	return nil
}

// Remove drops an approved attendee back to none. Host-only. No
// notification is emitted.
func (s *MembershipService) Remove(ctx context.Context, eventID, actorID, attendeeID string) error {
	event, err := s.hostGuard(ctx, eventID, actorID)
	if err != nil {
		return err
	}
	attendeeID = strings.TrimSpace(attendeeID)
	if attendeeID == "" {
		return &ValidationError{Field: "attendee", Reason: "attendee id is required"}
	}

	if err := s.events.RemoveApproved(ctx, event.ID, attendeeID); err != nil {
		if isNotFound(err) {
			return ErrInvalidTransition
		}
		return err
	}
	return nil
}

func (s *MembershipService) hostGuard(ctx context.Context, eventID, actorID string) (Event, error) {
	if s == nil || s.events == nil {
		return Event{}, ErrStoreNotConfigured
	}
	event, err := s.events.GetEvent(ctx, strings.TrimSpace(eventID))
	if err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(actorID) != event.HostID {
		return Event{}, ErrPermissionDenied
	}
	return event, nil
}

// emit records a notification for a completed transition. The transition has
// already committed, so a notification failure is logged rather than
// surfaced.
func (s *MembershipService) emit(ctx context.Context, recipientID, senderID string, messageType MessageType, event Event, message string) {
	if s.notifications == nil {
		return
	}
	if _, err := s.notifications.Emit(ctx, recipientID, senderID, messageType, event, message); err != nil {
		s.logger.Warn("emit notification",
			"message_type", string(messageType),
			"event_id", event.ID,
			"recipient_id", recipientID,
			"error", err,
		)
	}
}

func (s *MembershipService) senderName(ctx context.Context, profileID string) string {
	if s.profiles == nil {
		return fallbackSenderName
	}
	profile, err := s.profiles.GetProfile(ctx, profileID)
	if err != nil || profile.Name == "" {
		return fallbackSenderName
	}
	return profile.Name
}
