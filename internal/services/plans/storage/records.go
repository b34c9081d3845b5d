// Package storage defines the persistence boundary for the plans service:
// record shapes, store interfaces, the change feed, and failure
// classification.
package storage

import (
	"context"
	"time"
)

// ProfileRecord is one community member as persisted.
type ProfileRecord struct {
	ID               string
	Name             string
	Username         string
	Dept             string
	PictureURL       string
	AttendedEventIDs []string
	MetProfileIDs    []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EventRecord is one event as persisted, including its membership sets.
type EventRecord struct {
	ID          string
	Name        string
	Category    string
	Description string
	Location    string
	PosterURL   string
	HostID      string
	// Capacity is the maximum approved-attendee count. Zero means uncapped.
	Capacity  int
	CreatedAt time.Time
	StartsAt  time.Time
	Requested []string
	Approved  []string
}

// NotificationRecord is one user-targeted notification as persisted.
type NotificationRecord struct {
	ID          string
	RecipientID string
	SenderID    string
	MessageType string
	EventID     string
	Message     string
	Read        bool
	CreatedAt   time.Time
}

// QueuedOperationRecord is one deferred mutation held for replay.
type QueuedOperationRecord struct {
	ID          int64
	Kind        string
	PayloadJSON string
	SubmittedAt time.Time
	Attempts    int
	MaxAttempts int
}

// ProfileStore persists profile records.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (ProfileRecord, error)
	GetProfileByUsername(ctx context.Context, username string) (ProfileRecord, error)
	PutProfile(ctx context.Context, record ProfileRecord) error
	ListProfiles(ctx context.Context, limit int) ([]ProfileRecord, error)
	// AddAttendedEvent is an atomic set-add on the attended-events list.
	AddAttendedEvent(ctx context.Context, profileID, eventID string) error
	// AddMetProfile is an atomic set-add on the you-met list.
	AddMetProfile(ctx context.Context, profileID, otherID string) error
}

// EventStore persists event records. Membership sets are only ever mutated
// through the atomic delta operations, never by whole-record writes.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (EventRecord, error)
	PutEvent(ctx context.Context, record EventRecord) error
	DeleteEvent(ctx context.Context, id string) error
	ListEventsCreatedSince(ctx context.Context, since time.Time) ([]EventRecord, error)
	ListEventsByHost(ctx context.Context, hostID string) ([]EventRecord, error)

	// AddRequest atomically adds profileID to the event's request set.
	// Adding an already-requested profile is a no-op. Returns ErrConflict
	// when the profile is already approved.
	AddRequest(ctx context.Context, eventID, profileID string) error
	// RemoveRequest atomically removes profileID from the request set.
	// Returns ErrNotFound when the pair is not in the requested state.
	RemoveRequest(ctx context.Context, eventID, profileID string) error
	// ApproveRequest atomically moves profileID from the request set to the
	// approved set, re-checking the event's capacity inside the same
	// statement. Returns ErrCapacityExceeded when the approved set is already
	// at capacity, and ErrNotFound when the pair is not in the requested
	// state.
	ApproveRequest(ctx context.Context, eventID, profileID string) error
	// RemoveApproved atomically removes profileID from the approved set.
	// Returns ErrNotFound when the pair is not in the approved state.
	RemoveApproved(ctx context.Context, eventID, profileID string) error
}

// NotificationStore persists notification records.
type NotificationStore interface {
	PutNotification(ctx context.Context, record NotificationRecord) error
	ListNotificationsByRecipient(ctx context.Context, recipientID string, limit int) ([]NotificationRecord, error)
	ListUnreadByRecipient(ctx context.Context, recipientID string) ([]NotificationRecord, error)
	CountUnreadByRecipient(ctx context.Context, recipientID string) (int, error)
	// MarkNotificationRead flips one unread notification to read. The
	// transition is irreversible. Returns ErrNotFound when the recipient has
	// no such unread notification.
	MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error)
}

// QueueStore persists the offline operation queue. Only the operation queue
// component may touch it.
type QueueStore interface {
	AppendQueuedOperation(ctx context.Context, record QueuedOperationRecord) (int64, error)
	ListQueuedOperations(ctx context.Context) ([]QueuedOperationRecord, error)
	SetQueuedOperationAttempts(ctx context.Context, id int64, attempts int) error
	DeleteQueuedOperation(ctx context.Context, id int64) error
}
