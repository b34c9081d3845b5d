package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/plansocial/plans/internal/services/plans/storage"
)

// AppendQueuedOperation persists one deferred mutation at the tail of the
// replay queue and returns its assigned id.
func (s *Store) AppendQueuedOperation(ctx context.Context, record storage.QueuedOperationRecord) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	record.Kind = strings.TrimSpace(record.Kind)
	record.PayloadJSON = strings.TrimSpace(record.PayloadJSON)
	if record.Kind == "" {
		return 0, fmt.Errorf("operation kind is required")
	}
	if record.PayloadJSON == "" {
		record.PayloadJSON = "{}"
	}
	if record.SubmittedAt.IsZero() {
		return 0, fmt.Errorf("submitted_at is required")
	}
	if record.MaxAttempts <= 0 {
		return 0, fmt.Errorf("max attempts must be greater than zero")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO queued_operations (kind, payload_json, submitted_at, attempts, max_attempts)
VALUES (?, ?, ?, ?, ?)
`,
		record.Kind,
		record.PayloadJSON,
		toMillis(record.SubmittedAt),
		record.Attempts,
		record.MaxAttempts,
	)
	if err != nil {
		return 0, unavailable("append queued operation", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, unavailable("queued operation id", err)
	}
	return id, nil
}

// ListQueuedOperations returns the queue in submission order.
func (s *Store) ListQueuedOperations(ctx context.Context) ([]storage.QueuedOperationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, kind, payload_json, submitted_at, attempts, max_attempts
FROM queued_operations
ORDER BY id ASC
`)
	if err != nil {
		return nil, unavailable("list queued operations", err)
	}
	defer rows.Close()

	var records []storage.QueuedOperationRecord
	for rows.Next() {
		var record storage.QueuedOperationRecord
		var submittedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.Kind,
			&record.PayloadJSON,
			&submittedAt,
			&record.Attempts,
			&record.MaxAttempts,
		); err != nil {
			return nil, unavailable("scan queued operation", err)
		}
		record.SubmittedAt = fromMillis(submittedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate queued operations", err)
	}
	return records, nil
}

// SetQueuedOperationAttempts records a failed replay attempt count.
func (s *Store) SetQueuedOperationAttempts(ctx context.Context, id int64, attempts int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if attempts < 0 {
		return fmt.Errorf("attempts must be non-negative")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE queued_operations SET attempts = ? WHERE id = ?
`, attempts, id)
	if err != nil {
		return unavailable("set queued operation attempts", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("set queued operation attempts rows affected", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteQueuedOperation removes one operation after success or permanent
// failure.
func (s *Store) DeleteQueuedOperation(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM queued_operations WHERE id = ?", id)
	if err != nil {
		return unavailable("delete queued operation", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable("delete queued operation rows affected", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
