package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/plansocial/plans/internal/services/plans/domain"
	"github.com/plansocial/plans/internal/services/plans/storage"
)

// OperationKind names one deferrable membership mutation.
type OperationKind string

const (
	OpRequestJoin    OperationKind = "request_join"
	OpApproveRequest OperationKind = "approve_request"
	OpDenyRequest    OperationKind = "deny_request"
	OpRemoveAttendee OperationKind = "remove_attendee"
)

// MaxAttempts bounds replay retries per queued operation.
const MaxAttempts = 3

const (
	defaultBackoffBase = time.Second
	maxBackoff         = 30 * time.Second
)

// OperationPayload carries the identifiers a queued membership mutation
// needs to replay.
type OperationPayload struct {
	EventID   string `json:"event_id"`
	ActorID   string `json:"actor_id,omitempty"`
	ProfileID string `json:"profile_id"`
}

// Executor applies one operation against the live store.
type Executor func(ctx context.Context, kind OperationKind, payload OperationPayload) error

// SubmitOutcome says what happened to a submitted operation.
type SubmitOutcome string

const (
	// OutcomeApplied means the operation ran against the store immediately.
	OutcomeApplied SubmitOutcome = "applied"
	// OutcomeQueued means the operation was persisted for later replay.
	OutcomeQueued SubmitOutcome = "queued"
)

// FailureReport describes one queued operation abandoned during replay.
type FailureReport struct {
	Kind    OperationKind
	Payload OperationPayload
	Err     error
}

// OperationQueue persists mutations submitted while the store is
// unreachable and replays them in submission order on reconnect. A
// retryable failure keeps the head operation in place and backs the pass
// off; a permanent failure (or exhausted attempts) drops the operation and
// reports it.
type OperationQueue struct {
	store        storage.QueueStore
	exec         Executor
	connectivity *Connectivity
	logger       *slog.Logger
	onFailure    func(FailureReport)
	backoffBase  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	mu sync.Mutex
}

// NewOperationQueue constructs the queue. onFailure may be nil; abandoned
// operations are then only logged.
func NewOperationQueue(store storage.QueueStore, exec Executor, connectivity *Connectivity, logger *slog.Logger, onFailure func(FailureReport)) *OperationQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationQueue{
		store:        store,
		exec:         exec,
		connectivity: connectivity,
		logger:       logger,
		onFailure:    onFailure,
		backoffBase:  defaultBackoffBase,
		sleep:        sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Submit applies the operation immediately when online. When offline, or
// when the live attempt fails retryably, the operation is enqueued instead.
// Permanent failures are returned to the caller; queueing them could never
// succeed.
func (q *OperationQueue) Submit(ctx context.Context, kind OperationKind, payload OperationPayload) (SubmitOutcome, error) {
	if q == nil || q.store == nil || q.exec == nil {
		return "", domain.ErrStoreNotConfigured
	}
	if !q.connectivity.Online() {
		if err := q.enqueue(ctx, kind, payload); err != nil {
			return "", err
		}
		return OutcomeQueued, nil
	}
	err := q.exec(ctx, kind, payload)
	if err == nil {
		return OutcomeApplied, nil
	}
	if domain.IsPermanent(err) {
		return "", err
	}
	// A retryable failure on a live submit means the store just became
	// unreachable. Persist the operation before flipping offline so a
	// reconnect firing in between cannot drain past it.
	if err := q.enqueue(ctx, kind, payload); err != nil {
		return "", err
	}
	q.connectivity.SetOnline(false)
	return OutcomeQueued, nil
}

func (q *OperationQueue) enqueue(ctx context.Context, kind OperationKind, payload OperationPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode operation payload: %w", err)
	}
	_, err = q.store.AppendQueuedOperation(ctx, storage.QueuedOperationRecord{
		Kind:        string(kind),
		PayloadJSON: string(raw),
		SubmittedAt: time.Now().UTC(),
		MaxAttempts: MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("enqueue operation: %w", err)
	}
	q.logger.Info("operation queued", "kind", string(kind), "event_id", payload.EventID)
	return nil
}

// Pending returns how many operations await replay.
func (q *OperationQueue) Pending(ctx context.Context) (int, error) {
	if q == nil || q.store == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	records, err := q.store.ListQueuedOperations(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Start subscribes the queue to connectivity transitions and drains any
// leftover operations from a previous run. The returned cancel stops
// reacting to transitions.
func (q *OperationQueue) Start(ctx context.Context) (cancel func()) {
	if q == nil || q.connectivity == nil {
		return func() {}
	}
	unsubscribe := q.connectivity.Subscribe(func(online bool) {
		if online {
			go q.Drain(ctx)
		}
	})
	if q.connectivity.Online() {
		go q.Drain(ctx)
	}
	return unsubscribe
}

// Drain replays until the queue is empty, the context ends, or
// connectivity drops again. Passes that stop on a retryable failure are
// retried with doubling backoff.
func (q *OperationQueue) Drain(ctx context.Context) error {
	if q == nil || q.store == nil || q.exec == nil {
		return domain.ErrStoreNotConfigured
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	delay := q.backoffBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.connectivity.Online() {
			return nil
		}
		complete, err := q.replayPass(ctx)
		if err != nil {
			return err
		}
		if complete {
			return nil
		}
		if err := q.sleep(ctx, delay); err != nil {
			return err
		}
		if delay *= 2; delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

// replayPass walks the queue head-first. It reports complete=true when the
// queue emptied, and complete=false when a retryable failure left the head
// operation in place.
func (q *OperationQueue) replayPass(ctx context.Context) (complete bool, err error) {
	records, err := q.store.ListQueuedOperations(ctx)
	if err != nil {
		return false, err
	}
	for _, record := range records {
		var payload OperationPayload
		if err := json.Unmarshal([]byte(record.PayloadJSON), &payload); err != nil {
			q.abandon(record, payload, fmt.Errorf("decode operation payload: %w", err))
			if err := q.store.DeleteQueuedOperation(ctx, record.ID); err != nil {
				return false, err
			}
			continue
		}

		execErr := q.exec(ctx, OperationKind(record.Kind), payload)
		if execErr == nil {
			if err := q.store.DeleteQueuedOperation(ctx, record.ID); err != nil {
				return false, err
			}
			continue
		}

		// A failure during shutdown must not count against the operation;
		// keep it for the next run.
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		attempts := record.Attempts + 1
		if !domain.IsPermanent(execErr) && attempts < record.MaxAttempts {
			// Later operations may depend on this one, so the pass stops
			// here rather than skipping ahead.
			if err := q.store.SetQueuedOperationAttempts(ctx, record.ID, attempts); err != nil {
				return false, err
			}
			return false, nil
		}

		q.abandon(record, payload, execErr)
		if err := q.store.DeleteQueuedOperation(ctx, record.ID); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (q *OperationQueue) abandon(record storage.QueuedOperationRecord, payload OperationPayload, cause error) {
	q.logger.Warn("queued operation abandoned",
		"kind", record.Kind,
		"event_id", payload.EventID,
		"attempts", record.Attempts,
		"error", cause,
	)
	if q.onFailure != nil {
		q.onFailure(FailureReport{
			Kind:    OperationKind(record.Kind),
			Payload: payload,
			Err:     fmt.Errorf("%w: %w", domain.ErrQueueFailed, cause),
		})
	}
}
