package domain

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)
}

func sequentialIDs(prefix string) func() (string, error) {
	var n int
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

type fakeEventStore struct {
	events map[string]*Event

	failGet     error
	failApprove error
}

func newFakeEventStore(events ...Event) *fakeEventStore {
	store := &fakeEventStore{events: make(map[string]*Event)}
	for _, event := range events {
		copied := event
		store.events[event.ID] = &copied
	}
	return store
}

func (f *fakeEventStore) GetEvent(_ context.Context, id string) (Event, error) {
	if f.failGet != nil {
		return Event{}, f.failGet
	}
	event, ok := f.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return *event, nil
}

func (f *fakeEventStore) PutEvent(_ context.Context, event Event) error {
	copied := event
	f.events[event.ID] = &copied
	return nil
}

func (f *fakeEventStore) DeleteEvent(_ context.Context, id string) error {
	if _, ok := f.events[id]; !ok {
		return ErrNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeEventStore) ListEventsCreatedSince(_ context.Context, since time.Time) ([]Event, error) {
	var out []Event
	for _, event := range f.events {
		if !event.CreatedAt.Before(since) {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (f *fakeEventStore) ListEventsByHost(_ context.Context, hostID string) ([]Event, error) {
	var out []Event
	for _, event := range f.events {
		if event.HostID == hostID {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (f *fakeEventStore) AddRequest(_ context.Context, eventID, profileID string) error {
	event, ok := f.events[eventID]
	if !ok {
		return ErrNotFound
	}
	if slices.Contains(event.Approved, profileID) {
		return ErrInvalidTransition
	}
	if !slices.Contains(event.Requested, profileID) {
		event.Requested = append(event.Requested, profileID)
	}
	return nil
}

func (f *fakeEventStore) RemoveRequest(_ context.Context, eventID, profileID string) error {
	event, ok := f.events[eventID]
	if !ok {
		return ErrNotFound
	}
	i := slices.Index(event.Requested, profileID)
	if i < 0 {
		return ErrNotFound
	}
	event.Requested = slices.Delete(event.Requested, i, i+1)
	return nil
}

func (f *fakeEventStore) ApproveRequest(_ context.Context, eventID, profileID string) error {
	if f.failApprove != nil {
		return f.failApprove
	}
	event, ok := f.events[eventID]
	if !ok {
		return ErrNotFound
	}
	i := slices.Index(event.Requested, profileID)
	if i < 0 {
		return ErrNotFound
	}
	if event.Capacity > 0 && len(event.Approved) >= event.Capacity {
		return ErrCapacityExceeded
	}
	event.Requested = slices.Delete(event.Requested, i, i+1)
	event.Approved = append(event.Approved, profileID)
	return nil
}

func (f *fakeEventStore) RemoveApproved(_ context.Context, eventID, profileID string) error {
	event, ok := f.events[eventID]
	if !ok {
		return ErrNotFound
	}
	i := slices.Index(event.Approved, profileID)
	if i < 0 {
		return ErrNotFound
	}
	event.Approved = slices.Delete(event.Approved, i, i+1)
	return nil
}

type fakeProfileStore struct {
	profiles map[string]Profile
	attended map[string][]string
	met      map[string][]string
}

func newFakeProfileStore(profiles ...Profile) *fakeProfileStore {
	store := &fakeProfileStore{
		profiles: make(map[string]Profile),
		attended: make(map[string][]string),
		met:      make(map[string][]string),
	}
	for _, profile := range profiles {
		store.profiles[profile.ID] = profile
	}
	return store
}

func (f *fakeProfileStore) GetProfile(_ context.Context, id string) (Profile, error) {
	profile, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return profile, nil
}

func (f *fakeProfileStore) GetProfileByUsername(_ context.Context, username string) (Profile, error) {
	for _, profile := range f.profiles {
		if profile.Username == username {
			return profile, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (f *fakeProfileStore) PutProfile(_ context.Context, profile Profile) error {
	for _, existing := range f.profiles {
		if existing.Username == profile.Username && existing.ID != profile.ID {
			return ErrUsernameTaken
		}
	}
	f.profiles[profile.ID] = profile
	return nil
}

func (f *fakeProfileStore) ListProfiles(_ context.Context, limit int) ([]Profile, error) {
	var out []Profile
	for _, profile := range f.profiles {
		if len(out) == limit {
			break
		}
		out = append(out, profile)
	}
	return out, nil
}

func (f *fakeProfileStore) AddAttendedEvent(_ context.Context, profileID, eventID string) error {
	if !slices.Contains(f.attended[profileID], eventID) {
		f.attended[profileID] = append(f.attended[profileID], eventID)
	}
	return nil
}

func (f *fakeProfileStore) AddMetProfile(_ context.Context, profileID, otherID string) error {
	if !slices.Contains(f.met[profileID], otherID) {
		f.met[profileID] = append(f.met[profileID], otherID)
	}
	return nil
}

type fakeNotificationStore struct {
	notifications []Notification
	unread        map[string]int
}

func (f *fakeNotificationStore) PutNotification(_ context.Context, notification Notification) error {
	f.notifications = append(f.notifications, notification)
	return nil
}

func (f *fakeNotificationStore) ListNotificationsByRecipient(_ context.Context, recipientID string, limit int) ([]Notification, error) {
	var out []Notification
	for _, notification := range f.notifications {
		if notification.RecipientID == recipientID && len(out) < limit {
			out = append(out, notification)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) ListUnreadByRecipient(_ context.Context, recipientID string) ([]Notification, error) {
	var out []Notification
	for _, notification := range f.notifications {
		if notification.RecipientID == recipientID && !notification.Read {
			out = append(out, notification)
		}
	}
	return out, nil
}

func (f *fakeNotificationStore) CountUnreadByRecipient(_ context.Context, recipientID string) (int, error) {
	unread, err := f.ListUnreadByRecipient(context.Background(), recipientID)
	return len(unread), err
}

func (f *fakeNotificationStore) MarkNotificationRead(_ context.Context, recipientID, notificationID string) error {
	for i, notification := range f.notifications {
		if notification.RecipientID == recipientID && notification.ID == notificationID && !notification.Read {
			f.notifications[i].Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeNotificationStore) MarkAllNotificationsRead(_ context.Context, recipientID string) (int, error) {
	var changed int
	for i, notification := range f.notifications {
		if notification.RecipientID == recipientID && !notification.Read {
			f.notifications[i].Read = true
			changed++
		}
	}
	return changed, nil
}

func newMembershipFixture(t *testing.T, event Event, profiles ...Profile) (*MembershipService, *fakeEventStore, *fakeProfileStore, *fakeNotificationStore) {
	t.Helper()
	events := newFakeEventStore(event)
	profileStore := newFakeProfileStore(profiles...)
	notificationStore := &fakeNotificationStore{}
	notifications := NewNotificationService(notificationStore, fixedClock, sequentialIDs("notif"))
	service := NewMembershipService(events, profileStore, notifications, nil)
	return service, events, profileStore, notificationStore
}

func TestMembershipRequest(t *testing.T) {
	t.Parallel()

	event := Event{ID: "evt-1", Name: "Pickup Soccer", HostID: "host-1"}
	requester := Profile{ID: "prof-1", Name: "Riley Chen", Username: "riley"}

	service, events, _, notifications := newMembershipFixture(t, event, requester)

	if err := service.Request(context.Background(), "evt-1", "prof-1"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}

	stored := events.events["evt-1"]
	if !slices.Contains(stored.Requested, "prof-1") {
		t.Fatalf("requester not added to requested set: %v", stored.Requested)
	}
	if len(notifications.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifications.notifications))
	}
	notification := notifications.notifications[0]
	if notification.RecipientID != "host-1" {
		t.Errorf("recipient = %q, want host-1", notification.RecipientID)
	}
	if notification.MessageType != MessageEventRequest {
		t.Errorf("message type = %q, want %q", notification.MessageType, MessageEventRequest)
	}
	if want := `Riley Chen wants to join your event "Pickup Soccer"`; notification.Message != want {
		t.Errorf("message = %q, want %q", notification.Message, want)
	}
}

func TestMembershipRequestUnknownSender(t *testing.T) {
	t.Parallel()

	event := Event{ID: "evt-1", Name: "Pickup Soccer", HostID: "host-1"}
	service, _, _, notifications := newMembershipFixture(t, event)

	if err := service.Request(context.Background(), "evt-1", "prof-9"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if want := `Someone wants to join your event "Pickup Soccer"`; notifications.notifications[0].Message != want {
		t.Errorf("message = %q, want %q", notifications.notifications[0].Message, want)
	}
}

func TestMembershipRequestGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		event     Event
		requester string
		wantErr   error
	}{
		{
			name:      "host cannot request",
			event:     Event{ID: "evt-1", Name: "Trivia", HostID: "host-1"},
			requester: "host-1",
			wantErr:   ErrHostCannotRequest,
		},
		{
			name:      "already approved",
			event:     Event{ID: "evt-1", Name: "Trivia", HostID: "host-1", Approved: []string{"prof-1"}},
			requester: "prof-1",
			wantErr:   ErrInvalidTransition,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			service, _, _, notifications := newMembershipFixture(t, tc.event)
			err := service.Request(context.Background(), "evt-1", tc.requester)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Request() error = %v, want %v", err, tc.wantErr)
			}
			if len(notifications.notifications) != 0 {
				t.Errorf("notifications = %d, want 0", len(notifications.notifications))
			}
		})
	}
}

func TestMembershipRequestIdempotent(t *testing.T) {
	t.Parallel()

	event := Event{ID: "evt-1", Name: "Trivia", HostID: "host-1", Requested: []string{"prof-1"}}
	service, events, _, notifications := newMembershipFixture(t, event)

	if err := service.Request(context.Background(), "evt-1", "prof-1"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if got := len(events.events["evt-1"].Requested); got != 1 {
		t.Errorf("requested set size = %d, want 1", got)
	}
	if len(notifications.notifications) != 0 {
		t.Errorf("repeat request emitted %d notifications, want 0", len(notifications.notifications))
	}
}

func TestMembershipApprove(t *testing.T) {
	t.Parallel()

	event := Event{ID: "evt-1", Name: "Board Games", HostID: "host-1", Requested: []string{"prof-1"}}
	service, events, profiles, notifications := newMembershipFixture(t, event)

	if err := service.Approve(context.Background(), "evt-1", "host-1", "prof-1"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	stored := events.events["evt-1"]
	if slices.Contains(stored.Requested, "prof-1") {
		t.Error("requester still in requested set after approval")
	}
	if !slices.Contains(stored.Approved, "prof-1") {
		t.Fatalf("requester not in approved set: %v", stored.Approved)
	}
	if !slices.Contains(profiles.attended["prof-1"], "evt-1") {
		t.Errorf("attended events = %v, want to contain evt-1", profiles.attended["prof-1"])
	}
	if len(notifications.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifications.notifications))
	}
	notification := notifications.notifications[0]
	if notification.RecipientID != "prof-1" {
		t.Errorf("recipient = %q, want prof-1", notification.RecipientID)
	}
	if notification.MessageType != MessageRequestApproved {
		t.Errorf("message type = %q, want %q", notification.MessageType, MessageRequestApproved)
	}
	if want := `Your request to join "Board Games" has been approved!`; notification.Message != want {
		t.Errorf("message = %q, want %q", notification.Message, want)
	}
}

func TestMembershipApproveGuards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		event     Event
		actor     string
		requester string
		wantErr   error
	}{
		{
			name:      "non-host actor",
			event:     Event{ID: "evt-1", Name: "Trivia", HostID: "host-1", Requested: []string{"prof-1"}},
			actor:     "prof-2",
			requester: "prof-1",
			wantErr:   ErrPermissionDenied,
		},
		{
			name:      "no pending request",
			event:     Event{ID: "evt-1", Name: "Trivia", HostID: "host-1"},
			actor:     "host-1",
			requester: "prof-1",
			wantErr:   ErrInvalidTransition,
		},
		{
			name: "event full",
			event: Event{
				ID: "evt-1", Name: "Trivia", HostID: "host-1",
				Capacity: 2, Requested: []string{"prof-3"}, Approved: []string{"prof-1", "prof-2"},
			},
			actor:     "host-1",
			requester: "prof-3",
			wantErr:   ErrCapacityExceeded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			service, _, _, notifications := newMembershipFixture(t, tc.event)
			err := service.Approve(context.Background(), "evt-1", tc.actor, tc.requester)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Approve() error = %v, want %v", err, tc.wantErr)
			}
			if len(notifications.notifications) != 0 {
				t.Errorf("notifications = %d, want 0", len(notifications.notifications))
			}
		})
	}
}

func TestMembershipDeny(t *testing.T) {
	t.Parallel()

	event := Event{ID: "evt-1", Name: "Open Mic", HostID: "host-1", Requested: []string{"prof-1"}}
	service, events, _, notifications := newMembershipFixture(t, event)

	if err := service.Deny(context.Background(), "evt-1", "host-1", "prof-1"); err != nil {
		t.Fatalf("Deny() error = %v", err)
	}

	if got := events.events["evt-1"].Requested; len(got) != 0 {
		t.Errorf("requested set = %v, want empty", got)
	}
	if len(notifications.notifications) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifications.notifications))
	}
	notification := notifications.notifications[0]
	if notification.MessageType != MessageRequestDenied {
		t.Errorf("message type = %q, want %q", notification.MessageType, MessageRequestDenied)
	}
	if want := `Your request to join "Open Mic" was not approved.`; notification.Message != want {
		t.Errorf("message = %q, want %q", notification.Message, want)
	}

	// Denying again is an invalid transition, not a repeat notification.
	if err := service.Deny(context.Background(), "evt-1", "host-1", "prof-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Deny() error = %v, want %v", err, ErrInvalidTransition)
	}
	if len(notifications.notifications) != 1 {
		t.Errorf("notifications after second deny = %d, want 1", len(notifications.notifications))
	}
}

func TestMembershipRemove(t *testing.T) {
	t.Parallel()

	event := Event{ID: "evt-1", Name: "Open Mic", HostID: "host-1", Approved: []string{"prof-1"}}
	service, events, _, notifications := newMembershipFixture(t, event)

	if err := service.Remove(context.Background(), "evt-1", "host-1", "prof-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := events.events["evt-1"].Approved; len(got) != 0 {
		t.Errorf("approved set = %v, want empty", got)
	}
	if len(notifications.notifications) != 0 {
		t.Errorf("removal emitted %d notifications, want 0", len(notifications.notifications))
	}

	if err := service.Remove(context.Background(), "evt-1", "host-1", "prof-1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second Remove() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestMembershipNotificationFailureDoesNotFailTransition(t *testing.T) {
	t.Parallel()

	event := Event{ID: "evt-1", Name: "Trivia", HostID: "host-1"}
	events := newFakeEventStore(event)
	service := NewMembershipService(events, newFakeProfileStore(), nil, nil)

	if err := service.Request(context.Background(), "evt-1", "prof-1"); err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if !slices.Contains(events.events["evt-1"].Requested, "prof-1") {
		t.Error("transition did not commit without a notification emitter")
	}
}
