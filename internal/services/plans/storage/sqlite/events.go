package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/plansocial/plans/internal/services/plans/storage"
)

const (
	memberStatusRequested = "requested"
	memberStatusApproved  = "approved"
)

// GetEvent loads one event with both membership sets.
func (s *Store) GetEvent(ctx context.Context, id string) (storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.EventRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.EventRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.EventRecord{}, fmt.Errorf("event id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, category, description, location, poster_url, host_id, capacity, created_at, starts_at
FROM events
WHERE id = ?
`, id)
	record, err := scanEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EventRecord{}, storage.ErrNotFound
		}
		return storage.EventRecord{}, unavailable("get event", err)
	}
	if err := s.loadEventMembers(ctx, &record); err != nil {
		return storage.EventRecord{}, err
	}
	return record, nil
}

// PutEvent upserts one event's core fields. Membership sets on the record
// are ignored; they change only through the atomic delta operations.
func (s *Store) PutEvent(ctx context.Context, record storage.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeEventRecord(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO events (
	id, name, category, description, location, poster_url, host_id, capacity, created_at, starts_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	category = excluded.category,
	description = excluded.description,
	location = excluded.location,
	poster_url = excluded.poster_url,
	capacity = excluded.capacity,
	starts_at = excluded.starts_at
`,
		normalized.ID,
		normalized.Name,
		normalized.Category,
		normalized.Description,
		normalized.Location,
		normalized.PosterURL,
		normalized.HostID,
		normalized.Capacity,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.StartsAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return unavailable("put event", err)
	}
	s.notify(storage.Change{Kind: storage.KindEvent, ID: normalized.ID})
	return nil
}

// DeleteEvent removes one event and its membership rows.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("event id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin event delete", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id = ?", id)
	if err != nil {
		_ = tx.Rollback()
		return unavailable("delete event", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return unavailable("delete event rows affected", err)
	}
	if affected == 0 {
		_ = tx.Rollback()
		return storage.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM event_members WHERE event_id = ?", id); err != nil {
		_ = tx.Rollback()
		return unavailable("delete event members", err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit event delete", err)
	}
	s.notify(storage.Change{Kind: storage.KindEvent, ID: id})
	return nil
}

// ListEventsCreatedSince lists events created at or after since, newest
// first.
func (s *Store) ListEventsCreatedSince(ctx context.Context, since time.Time) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, category, description, location, poster_url, host_id, capacity, created_at, starts_at
FROM events
WHERE created_at >= ?
ORDER BY created_at DESC, id DESC
`, toMillis(since))
	if err != nil {
		return nil, unavailable("list recent events", err)
	}
	defer rows.Close()
	return s.collectEvents(ctx, rows)
}

// ListEventsByHost lists one host's events, newest first.
func (s *Store) ListEventsByHost(ctx context.Context, hostID string) ([]storage.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	hostID = strings.TrimSpace(hostID)
	if hostID == "" {
		return nil, fmt.Errorf("host id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, category, description, location, poster_url, host_id, capacity, created_at, starts_at
FROM events
WHERE host_id = ?
ORDER BY created_at DESC, id DESC
`, hostID)
	if err != nil {
		return nil, unavailable("list host events", err)
	}
	defer rows.Close()
	return s.collectEvents(ctx, rows)
}

// AddRequest atomically adds profileID to the event's request set. Adding an
// already-requested profile is a no-op; an already-approved profile is a
// conflict.
func (s *Store) AddRequest(ctx context.Context, eventID, profileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	profileID = strings.TrimSpace(profileID)
	if eventID == "" || profileID == "" {
		return fmt.Errorf("event id and profile id are required")
	}
	if err := s.eventExists(ctx, eventID); err != nil {
		return err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO event_members (event_id, profile_id, status, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(event_id, profile_id) DO NOTHING
`, eventID, profileID, memberStatusRequested, toMillis(time.Now()))
	if err != nil {
		return unavailable("add request", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("add request rows affected", err)
	}
	if affected == 0 {
		status, statusErr := s.memberStatus(ctx, eventID, profileID)
		if statusErr != nil {
			return statusErr
		}
		if status == memberStatusApproved {
			return storage.ErrConflict
		}
		// Already requested: idempotent success, no change emitted.
		return nil
	}
	s.notify(storage.Change{Kind: storage.KindEvent, ID: eventID})
	return nil
}

// RemoveRequest atomically removes profileID from the request set.
func (s *Store) RemoveRequest(ctx context.Context, eventID, profileID string) error {
	return s.removeMember(ctx, eventID, profileID, memberStatusRequested, "remove request")
}

// ApproveRequest atomically moves profileID from the request set to the
// approved set. Capacity is re-checked inside the same UPDATE so two
// concurrent approvals for the last slot cannot both succeed.
func (s *Store) ApproveRequest(ctx context.Context, eventID, profileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	profileID = strings.TrimSpace(profileID)
	if eventID == "" || profileID == "" {
		return fmt.Errorf("event id and profile id are required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE event_members
SET status = ?, updated_at = ?
WHERE event_id = ?
  AND profile_id = ?
  AND status = ?
  AND (
	(SELECT capacity FROM events WHERE id = event_members.event_id) = 0
	OR (SELECT COUNT(1) FROM event_members m
		WHERE m.event_id = event_members.event_id AND m.status = ?)
	   < (SELECT capacity FROM events WHERE id = event_members.event_id)
  )
`, memberStatusApproved, toMillis(time.Now()), eventID, profileID, memberStatusRequested, memberStatusApproved)
	if err != nil {
		return unavailable("approve request", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("approve request rows affected", err)
	}
	if affected == 0 {
		status, statusErr := s.memberStatus(ctx, eventID, profileID)
		if statusErr != nil {
			return statusErr
		}
		if status == memberStatusRequested {
			return storage.ErrCapacityExceeded
		}
		return storage.ErrNotFound
	}
	s.notify(storage.Change{Kind: storage.KindEvent, ID: eventID})
	return nil
}

// RemoveApproved atomically removes profileID from the approved set.
func (s *Store) RemoveApproved(ctx context.Context, eventID, profileID string) error {
	return s.removeMember(ctx, eventID, profileID, memberStatusApproved, "remove approved")
}

func (s *Store) removeMember(ctx context.Context, eventID, profileID, status, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	profileID = strings.TrimSpace(profileID)
	if eventID == "" || profileID == "" {
		return fmt.Errorf("event id and profile id are required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM event_members
WHERE event_id = ? AND profile_id = ? AND status = ?
`, eventID, profileID, status)
	if err != nil {
		return unavailable(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable(op+" rows affected", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	s.notify(storage.Change{Kind: storage.KindEvent, ID: eventID})
	return nil
}

func (s *Store) eventExists(ctx context.Context, eventID string) error {
	var one int
	err := s.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", eventID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return unavailable("check event", err)
	}
	return nil
}

func (s *Store) memberStatus(ctx context.Context, eventID, profileID string) (string, error) {
	var status string
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT status FROM event_members WHERE event_id = ? AND profile_id = ?
`, eventID, profileID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", unavailable("member status", err)
	}
	return status, nil
}

func (s *Store) loadEventMembers(ctx context.Context, record *storage.EventRecord) error {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT profile_id, status
FROM event_members
WHERE event_id = ?
ORDER BY updated_at ASC, profile_id ASC
`, record.ID)
	if err != nil {
		return unavailable("load event members", err)
	}
	defer rows.Close()

	for rows.Next() {
		var profileID, status string
		if err := rows.Scan(&profileID, &status); err != nil {
			return unavailable("scan event member", err)
		}
		switch status {
		case memberStatusRequested:
			record.Requested = append(record.Requested, profileID)
		case memberStatusApproved:
			record.Approved = append(record.Approved, profileID)
		}
	}
	if err := rows.Err(); err != nil {
		return unavailable("iterate event members", err)
	}
	return nil
}

func (s *Store) collectEvents(ctx context.Context, rows *sql.Rows) ([]storage.EventRecord, error) {
	var records []storage.EventRecord
	for rows.Next() {
		record, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, unavailable("scan event row", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate event rows", err)
	}
	for i := range records {
		if err := s.loadEventMembers(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func scanEvent(scan scanner) (storage.EventRecord, error) {
	var record storage.EventRecord
	var createdAt int64
	var startsAt int64
	if err := scan(
		&record.ID,
		&record.Name,
		&record.Category,
		&record.Description,
		&record.Location,
		&record.PosterURL,
		&record.HostID,
		&record.Capacity,
		&createdAt,
		&startsAt,
	); err != nil {
		return storage.EventRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.StartsAt = fromMillis(startsAt)
	return record, nil
}

func normalizeEventRecord(record storage.EventRecord) (storage.EventRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Name = strings.TrimSpace(record.Name)
	record.Category = strings.TrimSpace(record.Category)
	record.Description = strings.TrimSpace(record.Description)
	record.Location = strings.TrimSpace(record.Location)
	record.PosterURL = strings.TrimSpace(record.PosterURL)
	record.HostID = strings.TrimSpace(record.HostID)
	if record.ID == "" {
		return storage.EventRecord{}, fmt.Errorf("event id is required")
	}
	if record.Name == "" {
		return storage.EventRecord{}, fmt.Errorf("event name is required")
	}
	if record.HostID == "" {
		return storage.EventRecord{}, fmt.Errorf("event host id is required")
	}
	if record.Capacity < 0 {
		return storage.EventRecord{}, fmt.Errorf("event capacity must be non-negative")
	}
	if record.CreatedAt.IsZero() {
		return storage.EventRecord{}, fmt.Errorf("created_at is required")
	}
	if record.StartsAt.IsZero() {
		return storage.EventRecord{}, fmt.Errorf("starts_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.StartsAt = record.StartsAt.UTC()
	return record, nil
}
