package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"interview-copilot-service/src/db"
	"interview-copilot-service/src/models"
)

// InterviewRepository handles database operations for scheduled AI interviews.
type InterviewRepository struct {
	db *db.DB
}

// NewInterviewRepository creates a new interview repository
func NewInterviewRepository(database *db.DB) *InterviewRepository {
	return &InterviewRepository{
		db: database,
	}
}

// GetByID retrieves one interview.
func (r *InterviewRepository) GetByID(ctx context.Context, interviewID string) (*models.Interview, error) {
	query := `
		SELECT id, user_id, title, scheduled_at, duration_minutes, expires_at,
		       status, session_started_at, session_ended_at, credit_charged,
		       credit_refunded, total_session_seconds, billed_seconds,
		       created_at, updated_at
		FROM interviews
		WHERE id = $1
	`
	var iv models.Interview
	err := r.db.GetConnection().QueryRowContext(ctx, query, interviewID).Scan(
		&iv.ID, &iv.UserID, &iv.Title, &iv.ScheduledAt, &iv.DurationMinutes, &iv.ExpiresAt,
		&iv.Status, &iv.SessionStartedAt, &iv.SessionEndedAt, &iv.CreditCharged,
		&iv.CreditRefunded, &iv.TotalSessionSeconds, &iv.BilledSeconds,
		&iv.CreatedAt, &iv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrInterviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	return &iv, nil
}

// MarkInProgress records that a linked copilot session started against this
// interview. Usage seconds are forced to at least 1 so expiry/refund jobs can
// never classify it as never-used, even if the user forgets to end it.
func (r *InterviewRepository) MarkInProgress(ctx context.Context, interviewID string) error {
	query := `
		UPDATE interviews
		SET status = 'IN_PROGRESS',
		    total_session_seconds = GREATEST(total_session_seconds, 1),
		    updated_at = now()
		WHERE id = $1 AND status <> 'COMPLETED'
	`
	if _, err := r.db.GetConnection().ExecContext(ctx, query, interviewID); err != nil {
		return fmt.Errorf("failed to mark interview in progress: %w", err)
	}
	return nil
}

// MarkCompleted records that a linked copilot session finalized against this
// interview, marking it used.
func (r *InterviewRepository) MarkCompleted(ctx context.Context, interviewID string, elapsedSeconds int) error {
	if elapsedSeconds < 1 {
		elapsedSeconds = 1
	}
	query := `
		UPDATE interviews
		SET status = 'COMPLETED',
		    total_session_seconds = GREATEST(total_session_seconds, $2),
		    updated_at = now()
		WHERE id = $1 AND status <> 'COMPLETED'
	`
	if _, err := r.db.GetConnection().ExecContext(ctx, query, interviewID, elapsedSeconds); err != nil {
		return fmt.Errorf("failed to mark interview completed: %w", err)
	}

	slog.Info("Marked linked interview completed", "interview_id", interviewID)
	return nil
}

// UpdateStatus updates the status of an interview
func (r *InterviewRepository) UpdateStatus(ctx context.Context, interviewID string, status models.InterviewStatus) error {
	result, err := r.db.GetConnection().ExecContext(ctx,
		`UPDATE interviews SET status = $2, updated_at = now() WHERE id = $1`, interviewID, status)
	if err != nil {
		return fmt.Errorf("failed to update interview status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrInterviewNotFound
	}
	return nil
}

// ListExpiredCandidates returns interviews in non-terminal statuses whose
// expiry deadline has passed.
func (r *InterviewRepository) ListExpiredCandidates(ctx context.Context, now time.Time) ([]models.Interview, error) {
	query := `
		SELECT id, user_id, status, total_session_seconds
		FROM interviews
		WHERE status IN ('SCHEDULED', 'PENDING', 'APPROVED', 'IN_PROGRESS')
		  AND expires_at IS NOT NULL AND expires_at <= $1
	`
	rows, err := r.db.GetConnection().QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired interviews: %w", err)
	}
	defer rows.Close()

	var interviews []models.Interview
	for rows.Next() {
		var iv models.Interview
		if err := rows.Scan(&iv.ID, &iv.UserID, &iv.Status, &iv.TotalSessionSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan expired interview: %w", err)
		}
		interviews = append(interviews, iv)
	}
	return interviews, rows.Err()
}
