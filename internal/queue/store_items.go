package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"suture/internal/services"
)

// Create inserts a new submission in the queued state and assigns its queue
// sequence. The sequence is monotonic over the life of the database so
// rebuilt queues keep the original order.
func (s *Store) Create(ctx context.Context, sub NewSubmission) (*Submission, error) {
	if strings.TrimSpace(sub.Email) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "create", "submission email is required", nil)
	}
	if strings.TrimSpace(sub.VideoHandle) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "create", "submission video handle is required", nil)
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO submissions (
            id, name, email, program, iteration_number, additional_info,
            video_handle, status, queue_seq, submitted_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?,
            (SELECT COALESCE(MAX(queue_seq), 0) + 1 FROM submissions), ?, ?)`,
		id,
		sub.Name,
		sub.Email,
		sub.Program,
		sub.Iteration,
		nullableString(sub.AdditionalInfo),
		sub.VideoHandle,
		StatusQueued,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a submission by identifier. Returns (nil, nil) when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// List returns submissions filtered by status set (or all submissions when no
// status is provided), ordered by queue sequence.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Submission, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + submissionColumns + ` FROM submissions`
	orderClause := ` ORDER BY queue_seq`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Stats returns a count of submissions grouped by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("submission stats: %w", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Remove deletes a submission record. Part of the external retention surface;
// the dispatcher never calls this.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearTerminal removes completed, failed, and cancelled records.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM submissions WHERE status IN (?, ?, ?)`,
		StatusCompleted, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal submissions: %w", err)
	}
	return res.RowsAffected()
}

const submissionColumns = "id, name, email, program, iteration_number, additional_info, video_handle, status, queue_seq, submitted_at, started_at, completed_at, retry_count, notify_attempts, notified_at, last_error, result_json, updated_at"

func scanSubmission(scanner interface{ Scan(dest ...any) error }) (*Submission, error) {
	var (
		id           string
		name         string
		email        string
		program      string
		iteration    int
		additional   sql.NullString
		videoHandle  string
		statusStr    string
		queueSeq     int64
		submittedRaw sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		retryCount   int
		notifyCount  int
		notifiedRaw  sql.NullString
		lastError    sql.NullString
		resultJSON   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&email,
		&program,
		&iteration,
		&additional,
		&videoHandle,
		&statusStr,
		&queueSeq,
		&submittedRaw,
		&startedRaw,
		&completedRaw,
		&retryCount,
		&notifyCount,
		&notifiedRaw,
		&lastError,
		&resultJSON,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sub := &Submission{
		ID:             id,
		Name:           name,
		Email:          email,
		Program:        program,
		Iteration:      iteration,
		AdditionalInfo: additional.String,
		VideoHandle:    videoHandle,
		Status:         Status(statusStr),
		QueueSeq:       queueSeq,
		RetryCount:     retryCount,
		NotifyAttempts: notifyCount,
		LastError:      lastError.String,
		ResultJSON:     resultJSON.String,
	}
	if submitted, err := parseTimeString(submittedRaw.String); err == nil {
		sub.SubmittedAt = submitted
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sub.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			sub.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			sub.CompletedAt = &completed
		}
	}
	if notifiedRaw.Valid {
		if notified, err := parseTimeString(notifiedRaw.String); err == nil {
			sub.NotifiedAt = &notified
		}
	}
	return sub, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
