// Package domain holds the plans types and use-cases: events, the
// membership state machine, notifications, and profiles. It depends only on
// the narrow store interfaces declared here; persistence and fan-out wiring
// live in the app package.
package domain

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/plansocial/plans/internal/platform/id"
)

// RecentWindow bounds both how far back the recent-events feed reaches and
// how far ahead an event may be scheduled at creation time.
const RecentWindow = 12 * time.Hour

const (
	minNameLength     = 3
	minLocationLength = 3
	// MinCapacity and MaxCapacity bound an event's optional attendee cap.
	MinCapacity = 2
	MaxCapacity = 100
)

// MembershipState is one (event, profile) pair's position in the request
// lifecycle.
type MembershipState string

const (
	MembershipNone      MembershipState = "none"
	MembershipRequested MembershipState = "requested"
	MembershipApproved  MembershipState = "approved"
	MembershipHost      MembershipState = "host"
)

// Event is one short-lived community event.
type Event struct {
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

// IsFull reports whether the approved set has reached capacity.
func (e Event) IsFull() bool {
	return e.Capacity > 0 && len(e.Approved) >= e.Capacity
}

// Membership returns profileID's state on this event.
func (e Event) Membership(profileID string) MembershipState {
	switch {
	case profileID == e.HostID:
		return MembershipHost
	case slices.Contains(e.Approved, profileID):
		return MembershipApproved
	case slices.Contains(e.Requested, profileID):
		return MembershipRequested
	default:
		return MembershipNone
	}
}

// EventStore is the persistence boundary for event lifecycle behavior.
// Membership sets change only through the atomic delta operations.
type EventStore interface {
	GetEvent(ctx context.Context, id string) (Event, error)
	PutEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEventsCreatedSince(ctx context.Context, since time.Time) ([]Event, error)
	ListEventsByHost(ctx context.Context, hostID string) ([]Event, error)

	AddRequest(ctx context.Context, eventID, profileID string) error
	RemoveRequest(ctx context.Context, eventID, profileID string) error
	ApproveRequest(ctx context.Context, eventID, profileID string) error
	RemoveApproved(ctx context.Context, eventID, profileID string) error
}

// CreateEventInput describes one event creation request.
type CreateEventInput struct {
	Name        string
	Category    string
	Description string
	Location    string
	PosterURL   string
	StartsAt    time.Time
	Capacity    int
}

// UpdateEventInput carries host edits to an existing event. Nil fields are
// left unchanged.
type UpdateEventInput struct {
	Name        *string
	Category    *string
	Description *string
	Location    *string
	PosterURL   *string
	StartsAt    *time.Time
	Capacity    *int
}

// EventService owns event CRUD. Membership transitions live on
// MembershipService.
type EventService struct {
	store EventStore
	clock func() time.Time
	newID func() (string, error)
}

// NewEventService constructs event use-cases.
func NewEventService(store EventStore, clock func() time.Time, newID func() (string, error)) *EventService {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &EventService{store: store, clock: clock, newID: newID}
}

// Create validates and persists one event hosted by hostID.
func (s *EventService) Create(ctx context.Context, hostID string, input CreateEventInput) (Event, error) {
	if s == nil || s.store == nil {
		return Event{}, ErrStoreNotConfigured
	}
	if s.newID == nil {
		return Event{}, ErrIDGeneratorNotConfigured
	}
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return Event{}, &ValidationError{Field: "host", Reason: "host id is required"}
	}

	now := s.nowUTC()
	event := Event{
		Name:        strings.TrimSpace(input.Name),
		Category:    strings.TrimSpace(input.Category),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		PosterURL:   strings.TrimSpace(input.PosterURL),
		HostID:      hostID,
		Capacity:    input.Capacity,
		CreatedAt:   now,
		StartsAt:    input.StartsAt.UTC(),
	}
	if err := validateEvent(event, now); err != nil {
		return Event{}, err
	}

	eventID, err := s.newID()
	if err != nil {
		return Event{}, err
	}
	event.ID = eventID
	if err := s.store.PutEvent(ctx, event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Get loads one event.
func (s *EventService) Get(ctx context.Context, eventID string) (Event, error) {
	if s == nil || s.store == nil {
		return Event{}, ErrStoreNotConfigured
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return Event{}, &ValidationError{Field: "event", Reason: "event id is required"}
	}
	return s.store.GetEvent(ctx, eventID)
}

// ListRecent lists events created within the recent window, newest first.
func (s *EventService) ListRecent(ctx context.Context) ([]Event, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.ListEventsCreatedSince(ctx, s.nowUTC().Add(-RecentWindow))
}

// ListByHost lists one host's events, newest first.
func (s *EventService) ListByHost(ctx context.Context, hostID string) ([]Event, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return nil, &ValidationError{Field: "host", Reason: "host id is required"}
	}
	return s.store.ListEventsByHost(ctx, hostID)
}

// Update applies host edits to one event. Only the host may edit.
func (s *EventService) Update(ctx context.Context, eventID, actorID string, input UpdateEventInput) (Event, error) {
	if s == nil || s.store == nil {
		return Event{}, ErrStoreNotConfigured
	}
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(actorID) != event.HostID {
		return Event{}, ErrPermissionDenied
	}

	if input.Name != nil {
		event.Name = strings.TrimSpace(*input.Name)
	}
	if input.Category != nil {
		event.Category = strings.TrimSpace(*input.Category)
	}
	if input.Description != nil {
		event.Description = strings.TrimSpace(*input.Description)
	}
	if input.Location != nil {
		event.Location = strings.TrimSpace(*input.Location)
	}
	if input.PosterURL != nil {
		event.PosterURL = strings.TrimSpace(*input.PosterURL)
	}
	if input.StartsAt != nil {
		event.StartsAt = input.StartsAt.UTC()
	}
	if input.Capacity != nil {
		event.Capacity = *input.Capacity
	}
	// Edits are validated against the original creation time so a host
	// cannot push an event past the lead window after the fact.
	if err := validateEvent(event, event.CreatedAt); err != nil {
		return Event{}, err
	}
	if event.Capacity != 0 && event.Capacity < len(event.Approved) {
		return Event{}, &ValidationError{Field: "capacity", Reason: "cannot be below the approved attendee count"}
	}
	if err := s.store.PutEvent(ctx, event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Delete removes one event. Only the host may delete.
func (s *EventService) Delete(ctx context.Context, eventID, actorID string) error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(actorID) != event.HostID {
		return ErrPermissionDenied
	}
	return s.store.DeleteEvent(ctx, event.ID)
}

func (s *EventService) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func validateEvent(event Event, reference time.Time) error {
	if len(event.Name) < minNameLength {
		return &ValidationError{Field: "name", Reason: "must be at least 3 characters"}
	}
	if event.Category == "" {
		return &ValidationError{Field: "category", Reason: "is required"}
	}
	if event.Location != "" && len(event.Location) < minLocationLength {
		return &ValidationError{Field: "location", Reason: "must be at least 3 characters"}
	}
	if event.Capacity != 0 && (event.Capacity < MinCapacity || event.Capacity > MaxCapacity) {
		return &ValidationError{Field: "capacity", Reason: "must be between 2 and 100"}
	}
	if !event.StartsAt.After(reference) {
		return &ValidationError{Field: "starts_at", Reason: "must be in the future"}
	}
	if event.StartsAt.After(reference.Add(RecentWindow)) {
		return &ValidationError{Field: "starts_at", Reason: "must be within 12 hours"}
	}
	return nil
}
