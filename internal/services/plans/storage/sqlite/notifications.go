package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/plansocial/plans/internal/services/plans/storage"
)

// PutNotification persists one notification row.
func (s *Store) PutNotification(ctx context.Context, record storage.NotificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	normalized, err := normalizeNotificationRecord(record)
	if err != nil {
		return err
	}

	readFlag := 0
	if normalized.Read {
		readFlag = 1
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO notifications (id, recipient_id, sender_id, message_type, event_id, message, read, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		normalized.ID,
		normalized.RecipientID,
		normalized.SenderID,
		normalized.MessageType,
		normalized.EventID,
		normalized.Message,
		readFlag,
		toMillis(normalized.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		return unavailable("put notification", err)
	}
	s.notify(storage.Change{
		Kind:        storage.KindNotification,
		ID:          normalized.ID,
		RecipientID: normalized.RecipientID,
	})
	return nil
}

// ListNotificationsByRecipient lists one recipient's notifications newest
// first.
func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientID string, limit int) ([]storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, fmt.Errorf("recipient id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, recipient_id, sender_id, message_type, event_id, message, read, created_at
FROM notifications
WHERE recipient_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, recipientID, limit)
	if err != nil {
		return nil, unavailable("list notifications", err)
	}
	defer rows.Close()
	return collectNotifications(rows.Next, rows.Scan, rows.Err)
}

// ListUnreadByRecipient lists one recipient's unread notifications newest
// first.
func (s *Store) ListUnreadByRecipient(ctx context.Context, recipientID string) ([]storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, fmt.Errorf("recipient id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, recipient_id, sender_id, message_type, event_id, message, read, created_at
FROM notifications
WHERE recipient_id = ? AND read = 0
ORDER BY created_at DESC, id DESC
`, recipientID)
	if err != nil {
		return nil, unavailable("list unread notifications", err)
	}
	defer rows.Close()
	return collectNotifications(rows.Next, rows.Scan, rows.Err)
}

// CountUnreadByRecipient returns one recipient's unread count.
func (s *Store) CountUnreadByRecipient(ctx context.Context, recipientID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, fmt.Errorf("recipient id is required")
	}

	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(1) FROM notifications WHERE recipient_id = ? AND read = 0
`, recipientID).Scan(&count); err != nil {
		return 0, unavailable("count unread notifications", err)
	}
	return count, nil
}

// MarkNotificationRead flips one unread notification to read.
func (s *Store) MarkNotificationRead(ctx context.Context, recipientID, notificationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	notificationID = strings.TrimSpace(notificationID)
	if recipientID == "" || notificationID == "" {
		return fmt.Errorf("recipient id and notification id are required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notifications
SET read = 1
WHERE recipient_id = ? AND id = ? AND read = 0
`, recipientID, notificationID)
	if err != nil {
		return unavailable("mark notification read", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("mark notification read rows affected", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	s.notify(storage.Change{
		Kind:        storage.KindNotification,
		ID:          notificationID,
		RecipientID: recipientID,
	})
	return nil
}

// MarkAllNotificationsRead flips every unread notification for one
// recipient and returns how many changed.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return 0, fmt.Errorf("recipient id is required")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notifications SET read = 1 WHERE recipient_id = ? AND read = 0
`, recipientID)
	if err != nil {
		return 0, unavailable("mark all notifications read", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, unavailable("mark all notifications read rows affected", err)
	}
	if affected > 0 {
		s.notify(storage.Change{Kind: storage.KindNotification, RecipientID: recipientID})
	}
	return int(affected), nil
}

func collectNotifications(next func() bool, scan scanner, rowsErr func() error) ([]storage.NotificationRecord, error) {
	var records []storage.NotificationRecord
	for next() {
		record, err := scanNotification(scan)
		if err != nil {
			return nil, unavailable("scan notification row", err)
		}
		records = append(records, record)
	}
	if err := rowsErr(); err != nil {
		return nil, unavailable("iterate notification rows", err)
	}
	return records, nil
}

func scanNotification(scan scanner) (storage.NotificationRecord, error) {
	var record storage.NotificationRecord
	var readFlag int
	var createdAt int64
	if err := scan(
		&record.ID,
		&record.RecipientID,
		&record.SenderID,
		&record.MessageType,
		&record.EventID,
		&record.Message,
		&readFlag,
		&createdAt,
	); err != nil {
		return storage.NotificationRecord{}, err
	}
	record.Read = readFlag != 0
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func normalizeNotificationRecord(record storage.NotificationRecord) (storage.NotificationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	record.RecipientID = strings.TrimSpace(record.RecipientID)
	record.SenderID = strings.TrimSpace(record.SenderID)
	record.MessageType = strings.TrimSpace(record.MessageType)
	record.EventID = strings.TrimSpace(record.EventID)
	record.Message = strings.TrimSpace(record.Message)
	if record.ID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("notification id is required")
	}
	if record.RecipientID == "" {
		return storage.NotificationRecord{}, fmt.Errorf("recipient id is required")
	}
	if record.MessageType == "" {
		return storage.NotificationRecord{}, fmt.Errorf("message type is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.NotificationRecord{}, fmt.Errorf("created_at is required")
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return record, nil
}
