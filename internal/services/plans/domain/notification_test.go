package domain

import (
	"context"
	"errors"
	"testing"
)

func TestNotificationEmit(t *testing.T) {
	t.Parallel()

	store := &fakeNotificationStore{}
	service := NewNotificationService(store, fixedClock, sequentialIDs("notif"))
	event := Event{ID: "evt-1", Name: "Trivia"}

	notification, err := service.Emit(context.Background(), "prof-1", "host-1", MessageRequestApproved, event, "approved!")
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if notification.ID != "notif-1" {
		t.Errorf("id = %q, want notif-1", notification.ID)
	}
	if notification.EventID != "evt-1" {
		t.Errorf("event id = %q, want evt-1", notification.EventID)
	}
	if notification.Read {
		t.Error("new notification marked read")
	}
	if !notification.CreatedAt.Equal(fixedClock()) {
		t.Errorf("created at = %v, want %v", notification.CreatedAt, fixedClock())
	}
}

func TestNotificationEmitValidation(t *testing.T) {
	t.Parallel()

	service := NewNotificationService(&fakeNotificationStore{}, fixedClock, sequentialIDs("notif"))
	event := Event{ID: "evt-1"}

	tests := []struct {
		name        string
		recipientID string
		messageType MessageType
		message     string
	}{
		{name: "missing recipient", recipientID: "", messageType: MessageEventRequest, message: "hi"},
		{name: "missing message", recipientID: "prof-1", messageType: MessageEventRequest, message: " "},
		{name: "unknown type", recipientID: "prof-1", messageType: "event_cancelled", message: "hi"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := service.Emit(context.Background(), tc.recipientID, "host-1", tc.messageType, event, tc.message)
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("Emit() error = %v, want ValidationError", err)
			}
		})
	}
}

func TestNotificationMarkRead(t *testing.T) {
	t.Parallel()

	store := &fakeNotificationStore{}
	service := NewNotificationService(store, fixedClock, sequentialIDs("notif"))
	event := Event{ID: "evt-1", Name: "Trivia"}
	notification, err := service.Emit(context.Background(), "prof-1", "host-1", MessageRequestDenied, event, "denied")
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	if count, _ := service.CountUnread(context.Background(), "prof-1"); count != 1 {
		t.Fatalf("unread count = %d, want 1", count)
	}
	if err := service.MarkRead(context.Background(), "prof-1", notification.ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if count, _ := service.CountUnread(context.Background(), "prof-1"); count != 0 {
		t.Fatalf("unread count after read = %d, want 0", count)
	}

	// Read is one-way: marking again reports not found.
	if err := service.MarkRead(context.Background(), "prof-1", notification.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second MarkRead() error = %v, want %v", err, ErrNotFound)
	}
}

func TestNotificationMarkAllRead(t *testing.T) {
	t.Parallel()

	store := &fakeNotificationStore{}
	service := NewNotificationService(store, fixedClock, sequentialIDs("notif"))
	event := Event{ID: "evt-1", Name: "Trivia"}
	for range 3 {
		if _, err := service.Emit(context.Background(), "prof-1", "host-1", MessageEventRequest, event, "hello"); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}
	if _, err := service.Emit(context.Background(), "prof-2", "host-1", MessageEventRequest, event, "hello"); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	changed, err := service.MarkAllRead(context.Background(), "prof-1")
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if changed != 3 {
		t.Errorf("changed = %d, want 3", changed)
	}
	if count, _ := service.CountUnread(context.Background(), "prof-2"); count != 1 {
		t.Errorf("other recipient unread = %d, want 1", count)
	}
}

func TestNotificationListLimit(t *testing.T) {
	t.Parallel()

	store := &fakeNotificationStore{}
	service := NewNotificationService(store, fixedClock, sequentialIDs("notif"))
	event := Event{ID: "evt-1", Name: "Trivia"}
	for range 5 {
		if _, err := service.Emit(context.Background(), "prof-1", "host-1", MessageEventRequest, event, "hello"); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}

	feed, err := service.List(context.Background(), "prof-1", 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(feed) != 2 {
		t.Errorf("feed size = %d, want 2", len(feed))
	}
}
