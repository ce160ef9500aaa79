package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"suture/internal/services"
)

// Fields carries optional column updates applied together with a status
// transition. Nil pointers leave the column untouched.
type Fields struct {
	StartedAt      *time.Time
	CompletedAt    *time.Time
	LastError      *string
	ResultJSON     *string
	RetryCount     *int
	NotifyAttempts *int
	NotifiedAt     *time.Time
}

// Transition moves a submission from any of the listed source statuses to the
// target status in a single guarded update. When the row exists but is not in
// a source status the call fails with services.ErrConflict, so concurrent
// actors (dispatcher, API cancellation, network monitor) can race safely.
func (s *Store) Transition(ctx context.Context, id string, from []Status, to Status, fields Fields) (*Submission, error) {
	if len(from) == 0 {
		return nil, fmt.Errorf("transition to %s: no source statuses", to)
	}

	setClauses := []string{"status = ?", "updated_at = ?"}
	args := []any{to, time.Now().UTC().Format(time.RFC3339Nano)}

	if fields.StartedAt != nil {
		setClauses = append(setClauses, "started_at = ?")
		args = append(args, fields.StartedAt.UTC().Format(time.RFC3339Nano))
	}
	if fields.CompletedAt != nil {
		setClauses = append(setClauses, "completed_at = ?")
		args = append(args, fields.CompletedAt.UTC().Format(time.RFC3339Nano))
	}
	if fields.LastError != nil {
		setClauses = append(setClauses, "last_error = ?")
		args = append(args, nullableString(*fields.LastError))
	}
	if fields.ResultJSON != nil {
		setClauses = append(setClauses, "result_json = ?")
		args = append(args, nullableString(*fields.ResultJSON))
	}
	if fields.RetryCount != nil {
		setClauses = append(setClauses, "retry_count = ?")
		args = append(args, *fields.RetryCount)
	}
	if fields.NotifyAttempts != nil {
		setClauses = append(setClauses, "notify_attempts = ?")
		args = append(args, *fields.NotifyAttempts)
	}
	if fields.NotifiedAt != nil {
		setClauses = append(setClauses, "notified_at = ?")
		args = append(args, fields.NotifiedAt.UTC().Format(time.RFC3339Nano))
	}

	args = append(args, id)
	for _, status := range from {
		args = append(args, status)
	}

	query := `UPDATE submissions SET ` + strings.Join(setClauses, ", ") +
		` WHERE id = ? AND status IN (` + makePlaceholders(len(from)) + `)`

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "transition", "update submission status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "transition", "rows affected", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current == nil {
			return nil, services.Wrap(services.ErrNotFound, "queue", "transition",
				fmt.Sprintf("submission %s not found", id), nil)
		}
		return nil, services.Wrap(services.ErrConflict, "queue", "transition",
			fmt.Sprintf("submission %s is %s, expected one of %s", id, current.Status, joinStatuses(from)), nil)
	}
	return s.GetByID(ctx, id)
}

// TransitionAll moves every submission currently in a source status to the
// target status. Used for bulk outage handling and returns the affected
// submissions in queue order.
func (s *Store) TransitionAll(ctx context.Context, from []Status, to Status) ([]*Submission, error) {
	if len(from) == 0 {
		return nil, nil
	}

	args := []any{to, time.Now().UTC().Format(time.RFC3339Nano)}
	for _, status := range from {
		args = append(args, status)
	}
	query := `UPDATE submissions SET status = ?, updated_at = ? WHERE status IN (` +
		makePlaceholders(len(from)) + `)`

	if _, err := s.execWithRetry(ctx, query, args...); err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "transition_all", "bulk status update", err)
	}
	return s.List(ctx, to)
}

// ResetInterrupted re-queues submissions left in the processing state by an
// unclean shutdown. Runs once at daemon startup before the queue is rebuilt.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE submissions SET status = ?, started_at = NULL, updated_at = ? WHERE status = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "queue", "reset_interrupted", "requeue processing submissions", err)
	}
	return res.RowsAffected()
}

// OrderedPending returns queued and waiting submissions in queue order for
// rebuilding the in-memory queue at startup.
func (s *Store) OrderedPending(ctx context.Context) ([]*Submission, error) {
	return s.List(ctx, StatusQueued, StatusWaitingForInternet)
}

func joinStatuses(statuses []Status) string {
	parts := make([]string, len(statuses))
	for i, status := range statuses {
		parts[i] = string(status)
	}
	return strings.Join(parts, "|")
}
