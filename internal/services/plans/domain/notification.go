package domain

import (
	"context"
	"strings"
	"time"

	"github.com/plansocial/plans/internal/platform/id"
)

// MessageType names the reason a notification was emitted.
type MessageType string

const (
	// MessageEventRequest tells a host someone wants to join their event.
	MessageEventRequest MessageType = "event_request"
	// MessageRequestApproved tells a requester they were approved.
	MessageRequestApproved MessageType = "request_approved"
	// MessageRequestDenied tells a requester they were denied.
	MessageRequestDenied MessageType = "request_denied"
)

// Notification is one user-targeted message produced by a membership
// transition.
type Notification struct {
	ID          string
	RecipientID string
	SenderID    string
	MessageType MessageType
	EventID     string
	Message     string
	Read        bool
	CreatedAt   time.Time
}

// NotificationStore is the persistence boundary for notifications.
type NotificationStore interface {
	PutNotification(ctx context.Context, notification Notification) error
	ListNotificationsByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error)
	ListUnreadByRecipient(ctx context.Context, recipientID string) ([]Notification, error)
	CountUnreadByRecipient(ctx context.Context, recipientID string) (int, error)
	MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
}

// DefaultFeedLimit caps a notification feed page when the caller does not
// ask for a specific size.
const DefaultFeedLimit = 50

// NotificationService owns the notification feed and emission.
type NotificationService struct {
	store NotificationStore
	clock func() time.Time
	newID func() (string, error)
}

// NewNotificationService constructs notification use-cases.
func NewNotificationService(store NotificationStore, clock func() time.Time, newID func() (string, error)) *NotificationService {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &NotificationService{store: store, clock: clock, newID: newID}
}

// Emit persists one notification for recipientID about event.
func (s *NotificationService) Emit(ctx context.Context, recipientID, senderID string, messageType MessageType, event Event, message string) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Notification{}, ErrIDGeneratorNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return Notification{}, &ValidationError{Field: "recipient", Reason: "recipient id is required"}
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return Notification{}, &ValidationError{Field: "message", Reason: "message is required"}
	}
	switch messageType {
	case MessageEventRequest, MessageRequestApproved, MessageRequestDenied:
	default:
		return Notification{}, &ValidationError{Field: "message_type", Reason: "unknown message type"}
	}

	notificationID, err := s.newID()
	if err != nil {
		return Notification{}, err
	}
	notification := Notification{
		ID:          notificationID,
		RecipientID: recipientID,
		SenderID:    strings.TrimSpace(senderID),
		MessageType: messageType,
		EventID:     event.ID,
		Message:     message,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.store.PutNotification(ctx, notification); err != nil {
		return Notification{}, err
	}
	return notification, nil
}

// List returns one recipient's feed, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, &ValidationError{Field: "recipient", Reason: "recipient id is required"}
	}
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	return s.store.ListNotificationsByRecipient(ctx, recipientID, limit)
}

// ListUnread returns one recipient's unread notifications, newest first.
func (s *NotificationService) ListUnread(ctx context.Context, recipientID string) ([]Notification, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, &ValidationError{Field: "recipient", Reason: "recipient id is required"}
	}
	return s.store.ListUnreadByRecipient(ctx, recipientID)
}

// CountUnread returns one recipient's unread badge count.
func (s *NotificationService) CountUnread(ctx context.Context, recipientID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, &ValidationError{Field: "recipient", Reason: "recipient id is required"}
	}
	return s.store.CountUnreadByRecipient(ctx, recipientID)
}

// MarkRead marks one notification read. The unread-to-read transition is
// one-way; marking an already-read notification reports ErrNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	notificationID = strings.TrimSpace(notificationID)
	if recipientID == "" {
		return &ValidationError{Field: "recipient", Reason: "recipient id is required"}
	}
	if notificationID == "" {
		return &ValidationError{Field: "notification", Reason: "notification id is required"}
	}
	return s.store.MarkNotificationRead(ctx, recipientID, notificationID)
}

// MarkAllRead marks every unread notification read and returns how many
// changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	if s == nil || s.store == nil {
		return 0, ErrStoreNotConfigured
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, &ValidationError{Field: "recipient", Reason: "recipient id is required"}
	}
	return s.store.MarkAllNotificationsRead(ctx, recipientID)
}
