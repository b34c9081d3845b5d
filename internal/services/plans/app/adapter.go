package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plansocial/plans/internal/services/plans/domain"
	"github.com/plansocial/plans/internal/services/plans/storage"
)

const (
	recentEventsKey = "events:recent"
	allProfilesKey  = "profiles:all"
)

// Store is the full persistence surface the adapter wraps.
type Store interface {
	storage.ProfileStore
	storage.EventStore
	storage.NotificationStore
}

// StoreAdapter presents a storage.Store as the domain's store interfaces.
// It translates record shapes, maps storage failures onto domain errors,
// and keeps a read-through TTL cache over records and lists. Writes
// invalidate the affected keys.
type StoreAdapter struct {
	store Store

	events       *Cache[domain.Event]
	eventLists   *Cache[[]domain.Event]
	profiles     *Cache[domain.Profile]
	profileLists *Cache[[]domain.Profile]
}

// NewStoreAdapter wraps store with caching against clock.
func NewStoreAdapter(store Store, clock func() time.Time) *StoreAdapter {
	return &StoreAdapter{
		store:        store,
		events:       NewCache[domain.Event](RecordTTL, clock),
		eventLists:   NewCache[[]domain.Event](ListTTL, clock),
		profiles:     NewCache[domain.Profile](RecordTTL, clock),
		profileLists: NewCache[[]domain.Profile](ListTTL, clock),
	}
}

// mapStorageErr translates storage sentinels onto domain sentinels.
// ErrConflict is context-dependent and handled at call sites. Everything
// else is routed through storage.Classify: retryable failures fold into
// ErrUnavailable, so downstream retry decisions never inspect driver
// errors directly.
func mapStorageErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	case errors.Is(err, storage.ErrCapacityExceeded):
		return domain.ErrCapacityExceeded
	}
	if storage.Classify(err) == storage.ClassRetryable {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return err
}

func eventFromRecord(record storage.EventRecord) domain.Event {
	return domain.Event{
		ID:          record.ID,
		Name:        record.Name,
		Category:    record.Category,
		Description: record.Description,
		Location:    record.Location,
		PosterURL:   record.PosterURL,
		HostID:      record.HostID,
		Capacity:    record.Capacity,
		CreatedAt:   record.CreatedAt,
		StartsAt:    record.StartsAt,
		Requested:   record.Requested,
		Approved:    record.Approved,
	}
}

func eventToRecord(event domain.Event) storage.EventRecord {
	return storage.EventRecord{
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
		Requested:   event.Requested,
		Approved:    event.Approved,
	}
}

func profileFromRecord(record storage.ProfileRecord) domain.Profile {
	return domain.Profile{
		ID:               record.ID,
		Name:             record.Name,
		Username:         record.Username,
		Dept:             record.Dept,
		PictureURL:       record.PictureURL,
		AttendedEventIDs: record.AttendedEventIDs,
		MetProfileIDs:    record.MetProfileIDs,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

func profileToRecord(profile domain.Profile) storage.ProfileRecord {
	return storage.ProfileRecord{
		ID:               profile.ID,
		Name:             profile.Name,
		Username:         profile.Username,
		Dept:             profile.Dept,
		PictureURL:       profile.PictureURL,
		AttendedEventIDs: profile.AttendedEventIDs,
		MetProfileIDs:    profile.MetProfileIDs,
		CreatedAt:        profile.CreatedAt,
		UpdatedAt:        profile.UpdatedAt,
	}
}

func notificationFromRecord(record storage.NotificationRecord) domain.Notification {
	return domain.Notification{
		ID:          record.ID,
		RecipientID: record.RecipientID,
		SenderID:    record.SenderID,
		MessageType: domain.MessageType(record.MessageType),
		EventID:     record.EventID,
		Message:     record.Message,
		Read:        record.Read,
		CreatedAt:   record.CreatedAt,
	}
}

func (a *StoreAdapter) invalidateEvent(eventID string) {
	a.events.Delete(eventID)
	a.eventLists.Purge()
}

func (a *StoreAdapter) invalidateProfile(profileID string) {
	a.profiles.Delete(profileID)
	a.profileLists.Purge()
}

// GetEvent loads one event, serving from cache when fresh.
func (a *StoreAdapter) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	if event, ok := a.events.Get(id); ok {
		return event, nil
	}
	record, err := a.store.GetEvent(ctx, id)
	if err != nil {
		return domain.Event{}, mapStorageErr(err)
	}
	event := eventFromRecord(record)
	a.events.Set(id, event)
	return event, nil
}

func (a *StoreAdapter) PutEvent(ctx context.Context, event domain.Event) error {
	if err := a.store.PutEvent(ctx, eventToRecord(event)); err != nil {
		return mapStorageErr(err)
	}
	a.invalidateEvent(event.ID)
	return nil
}

func (a *StoreAdapter) DeleteEvent(ctx context.Context, id string) error {
	if err := a.store.DeleteEvent(ctx, id); err != nil {
		return mapStorageErr(err)
	}
	a.invalidateEvent(id)
	return nil
}

func (a *StoreAdapter) ListEventsCreatedSince(ctx context.Context, since time.Time) ([]domain.Event, error) {
	if events, ok := a.eventLists.Get(recentEventsKey); ok {
		return events, nil
	}
	records, err := a.store.ListEventsCreatedSince(ctx, since)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	events := make([]domain.Event, 0, len(records))
	for _, record := range records {
		events = append(events, eventFromRecord(record))
	}
	a.eventLists.Set(recentEventsKey, events)
	return events, nil
}

func (a *StoreAdapter) ListEventsByHost(ctx context.Context, hostID string) ([]domain.Event, error) {
	key := "events:host:" + hostID
	if events, ok := a.eventLists.Get(key); ok {
		return events, nil
	}
	records, err := a.store.ListEventsByHost(ctx, hostID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	events := make([]domain.Event, 0, len(records))
	for _, record := range records {
		events = append(events, eventFromRecord(record))
	}
	a.eventLists.Set(key, events)
	return events, nil
}

func (a *StoreAdapter) AddRequest(ctx context.Context, eventID, profileID string) error {
	if err := a.store.AddRequest(ctx, eventID, profileID); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Already approved; re-requesting is not a legal transition.
			return domain.ErrInvalidTransition
		}
		return mapStorageErr(err)
	}
	a.invalidateEvent(eventID)
	return nil
}

func (a *StoreAdapter) RemoveRequest(ctx context.Context, eventID, profileID string) error {
	if err := a.store.RemoveRequest(ctx, eventID, profileID); err != nil {
		return mapStorageErr(err)
	}
	a.invalidateEvent(eventID)
	return nil
}

func (a *StoreAdapter) ApproveRequest(ctx context.Context, eventID, profileID string) error {
	if err := a.store.ApproveRequest(ctx, eventID, profileID); err != nil {
		return mapStorageErr(err)
	}
	a.invalidateEvent(eventID)
	return nil
}

func (a *StoreAdapter) RemoveApproved(ctx context.Context, eventID, profileID string) error {
	if err := a.store.RemoveApproved(ctx, eventID, profileID); err != nil {
		return mapStorageErr(err)
	}
	a.invalidateEvent(eventID)
	return nil
}

// GetProfile loads one profile, serving from cache when fresh.
func (a *StoreAdapter) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	if profile, ok := a.profiles.Get(id); ok {
		return profile, nil
	}
	record, err := a.store.GetProfile(ctx, id)
	if err != nil {
		return domain.Profile{}, mapStorageErr(err)
	}
	profile := profileFromRecord(record)
	a.profiles.Set(id, profile)
	return profile, nil
}

// GetProfileByUsername always hits the store; username lookups back
// availability checks, which must not see stale data.
func (a *StoreAdapter) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	record, err := a.store.GetProfileByUsername(ctx, username)
	if err != nil {
		return domain.Profile{}, mapStorageErr(err)
	}
	return profileFromRecord(record), nil
}

func (a *StoreAdapter) PutProfile(ctx context.Context, profile domain.Profile) error {
	if err := a.store.PutProfile(ctx, profileToRecord(profile)); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return domain.ErrUsernameTaken
		}
		return mapStorageErr(err)
	}
	a.invalidateProfile(profile.ID)
	return nil
}

func (a *StoreAdapter) ListProfiles(ctx context.Context, limit int) ([]domain.Profile, error) {
	key := fmt.Sprintf("%s:%d", allProfilesKey, limit)
	if profiles, ok := a.profileLists.Get(key); ok {
		return profiles, nil
	}
	records, err := a.store.ListProfiles(ctx, limit)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	profiles := make([]domain.Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, profileFromRecord(record))
	}
	a.profileLists.Set(key, profiles)
	return profiles, nil
}

func (a *StoreAdapter) AddAttendedEvent(ctx context.Context, profileID, eventID string) error {
	if err := a.store.AddAttendedEvent(ctx, profileID, eventID); err != nil {
		return mapStorageErr(err)
	}
	a.invalidateProfile(profileID)
	return nil
}

func (a *StoreAdapter) AddMetProfile(ctx context.Context, profileID, otherID string) error {
	if err := a.store.AddMetProfile(ctx, profileID, otherID); err != nil {
		return mapStorageErr(err)
	}
	a.invalidateProfile(profileID)
	return nil
}

// Notifications are not cached: unread state drives badges and feeds that
// must reflect reads immediately.

func (a *StoreAdapter) PutNotification(ctx context.Context, notification domain.Notification) error {
	record := storage.NotificationRecord{
		ID:          notification.ID,
		RecipientID: notification.RecipientID,
		SenderID:    notification.SenderID,
		MessageType: string(notification.MessageType),
		EventID:     notification.EventID,
		Message:     notification.Message,
		Read:        notification.Read,
		CreatedAt:   notification.CreatedAt,
	}
	return mapStorageErr(a.store.PutNotification(ctx, record))
}

func (a *StoreAdapter) ListNotificationsByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	records, err := a.store.ListNotificationsByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	notifications := make([]domain.Notification, 0, len(records))
	for _, record := range records {
		notifications = append(notifications, notificationFromRecord(record))
	}
	return notifications, nil
}

func (a *StoreAdapter) ListUnreadByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	records, err := a.store.ListUnreadByRecipient(ctx, recipientID)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	notifications := make([]domain.Notification, 0, len(records))
	for _, record := range records {
		notifications = append(notifications, notificationFromRecord(record))
	}
	return notifications, nil
}

func (a *StoreAdapter) CountUnreadByRecipient(ctx context.Context, recipientID string) (int, error) {
	count, err := a.store.CountUnreadByRecipient(ctx, recipientID)
	return count, mapStorageErr(err)
}

func (a *StoreAdapter) MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error {
	return mapStorageErr(a.store.MarkNotificationRead(ctx, recipientID, notificationID))
}

func (a *StoreAdapter) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	count, err := a.store.MarkAllNotificationsRead(ctx, recipientID)
	return count, mapStorageErr(err)
}
