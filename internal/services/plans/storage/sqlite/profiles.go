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

// GetProfile loads one profile with its attended-events and you-met lists.
func (s *Store) GetProfile(ctx context.Context, id string) (storage.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProfileRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ProfileRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ProfileRecord{}, fmt.Errorf("profile id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, username, dept, picture_url, created_at, updated_at
FROM profiles
WHERE id = ?
`, id)
	record, err := scanProfile(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ProfileRecord{}, storage.ErrNotFound
		}
		return storage.ProfileRecord{}, unavailable("get profile", err)
	}
	if err := s.loadProfileLists(ctx, &record); err != nil {
		return storage.ProfileRecord{}, err
	}
	return record, nil
}

// GetProfileByUsername loads one profile by its unique username.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (storage.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ProfileRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ProfileRecord{}, fmt.Errorf("storage is not configured")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return storage.ProfileRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, username, dept, picture_url, created_at, updated_at
FROM profiles
WHERE username = ?
`, username)
	record, err := scanProfile(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ProfileRecord{}, storage.ErrNotFound
		}
		return storage.ProfileRecord{}, unavailable("get profile by username", err)
	}
	if err := s.loadProfileLists(ctx, &record); err != nil {
		return storage.ProfileRecord{}, err
	}
	return record, nil
}

// PutProfile upserts one profile's core fields. The attended-events and
// you-met lists change only through the atomic set-add operations.
func (s *Store) PutProfile(ctx context.Context, record storage.ProfileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeProfileRecord(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO profiles (id, name, username, dept, picture_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	username = excluded.username,
	dept = excluded.dept,
	picture_url = excluded.picture_url,
	updated_at = excluded.updated_at
`,
		normalized.ID,
		normalized.Name,
		normalized.Username,
		normalized.Dept,
		normalized.PictureURL,
		toMillis(normalized.CreatedAt),
		toMillis(normalized.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return unavailable("put profile", err)
	}
	s.notify(storage.Change{Kind: storage.KindProfile, ID: normalized.ID})
	return nil
}

// ListProfiles lists profiles newest first for the people directory.
func (s *Store) ListProfiles(ctx context.Context, limit int) ([]storage.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, username, dept, picture_url, created_at, updated_at
FROM profiles
ORDER BY created_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, unavailable("list profiles", err)
	}
	defer rows.Close()

	var records []storage.ProfileRecord
	for rows.Next() {
		record, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, unavailable("scan profile row", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate profile rows", err)
	}
	for i := range records {
		if err := s.loadProfileLists(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// AddAttendedEvent atomically appends eventID to the profile's attended
// list. Re-adding is a no-op.
func (s *Store) AddAttendedEvent(ctx context.Context, profileID, eventID string) error {
	return s.addProfileListEntry(ctx, "profile_attended_events", "event_id", profileID, eventID, "add attended event")
}

// AddMetProfile atomically appends otherID to the profile's you-met list.
// Re-adding is a no-op.
func (s *Store) AddMetProfile(ctx context.Context, profileID, otherID string) error {
	return s.addProfileListEntry(ctx, "profile_connections", "met_profile_id", profileID, otherID, "add met profile")
}

func (s *Store) addProfileListEntry(ctx context.Context, table, column, profileID, value, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	profileID = strings.TrimSpace(profileID)
	value = strings.TrimSpace(value)
	if profileID == "" || value == "" {
		return fmt.Errorf("profile id and value are required")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (profile_id, %s, added_at)
VALUES (?, ?, ?)
ON CONFLICT(profile_id, %s) DO NOTHING
`, table, column, column)
	result, err := s.sqlDB.ExecContext(ctx, query, profileID, value, toMillis(time.Now()))
	if err != nil {
		return unavailable(op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable(op+" rows affected", err)
	}
	if affected > 0 {
		s.notify(storage.Change{Kind: storage.KindProfile, ID: profileID})
	}
	return nil
}

func (s *Store) loadProfileLists(ctx context.Context, record *storage.ProfileRecord) error {
	attended, err := s.profileListEntries(ctx, "profile_attended_events", "event_id", record.ID)
	if err != nil {
		return err
	}
	met, err := s.profileListEntries(ctx, "profile_connections", "met_profile_id", record.ID)
	if err != nil {
		return err
	}
	record.AttendedEventIDs = attended
	record.MetProfileIDs = met
	return nil
}

func (s *Store) profileListEntries(ctx context.Context, table, column, profileID string) ([]string, error) {
	query := fmt.Sprintf(`
SELECT %s FROM %s WHERE profile_id = ? ORDER BY added_at ASC, %s ASC
`, column, table, column)
	rows, err := s.sqlDB.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, unavailable("load profile list", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, unavailable("scan profile list entry", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate profile list entries", err)
	}
	return values, nil
}

func scanProfile(scan scanner) (storage.ProfileRecord, error) {
	var record storage.ProfileRecord
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.ID,
		&record.Name,
		&record.Username,
		&record.Dept,
		&record.PictureURL,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.ProfileRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

func normalizeProfileRecord(record storage.ProfileRecord) (storage.ProfileRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.Name = strings.TrimSpace(record.Name)
	record.Username = strings.TrimSpace(record.Username)
	record.Dept = strings.TrimSpace(record.Dept)
	record.PictureURL = strings.TrimSpace(record.PictureURL)
	if record.ID == "" {
		return storage.ProfileRecord{}, fmt.Errorf("profile id is required")
	}
	if record.Name == "" {
		return storage.ProfileRecord{}, fmt.Errorf("profile name is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.ProfileRecord{}, fmt.Errorf("created_at is required")
	}
	if record.UpdatedAt.IsZero() {
		return storage.ProfileRecord{}, fmt.Errorf("updated_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return record, nil
}
