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

// MeetingRepository handles database operations for scheduled mentor meetings.
type MeetingRepository struct {
	db *db.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(database *db.DB) *MeetingRepository {
	return &MeetingRepository{
		db: database,
	}
}

// GetByID retrieves one meeting.
func (r *MeetingRepository) GetByID(ctx context.Context, meetingID string) (*models.Meeting, error) {
	query := `
		SELECT id, mentor_id, technology, COALESCE(attendee_id::text, ''), attendee_name,
		       scheduled_at, duration_minutes, expires_at, meeting_key, status,
		       mentor_joined_at, attendee_joined_at, session_started_at, session_ended_at,
		       credit_charged, credit_refunded, total_session_seconds, billed_seconds,
		       transcript, created_at, updated_at
		FROM meetings
		WHERE id = $1
	`
	var m models.Meeting
	err := r.db.GetConnection().QueryRowContext(ctx, query, meetingID).Scan(
		&m.ID, &m.MentorID, &m.Technology, &m.AttendeeID, &m.AttendeeName,
		&m.ScheduledAt, &m.DurationMinutes, &m.ExpiresAt, &m.MeetingKey, &m.Status,
		&m.MentorJoinedAt, &m.AttendeeJoinedAt, &m.SessionStartedAt, &m.SessionEndedAt,
		&m.CreditCharged, &m.CreditRefunded, &m.TotalSessionSeconds, &m.BilledSeconds,
		&m.Transcript, &m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return &m, nil
}

// MarkMentorJoined stamps the host's first join and promotes pre-live
// statuses to IN_PROGRESS. Both effects are first-join-wins.
func (r *MeetingRepository) MarkMentorJoined(ctx context.Context, meetingID string, now time.Time) (models.MeetingStatus, error) {
	query := `
		UPDATE meetings
		SET mentor_joined_at = COALESCE(mentor_joined_at, $2),
		    session_started_at = COALESCE(session_started_at, $2),
		    status = CASE WHEN status IN ('SCHEDULED', 'PENDING', 'APPROVED') THEN 'IN_PROGRESS' ELSE status END,
		    updated_at = now()
		WHERE id = $1
		RETURNING status
	`
	var status models.MeetingStatus
	err := r.db.GetConnection().QueryRowContext(ctx, query, meetingID, now).Scan(&status)
	if err == sql.ErrNoRows {
		return "", models.ErrMeetingNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to mark mentor joined: %w", err)
	}
	return status, nil
}

// ClaimAttendee binds the single attendee slot to userID. The guard keeps the
// first claimant: a different identity already holding the slot makes the
// UPDATE match nothing and the claim fails.
func (r *MeetingRepository) ClaimAttendee(ctx context.Context, meetingID, userID string, now time.Time) error {
	query := `
		UPDATE meetings
		SET attendee_id = COALESCE(attendee_id, $2),
		    attendee_joined_at = COALESCE(attendee_joined_at, $3),
		    updated_at = now()
		WHERE id = $1 AND (attendee_id IS NULL OR attendee_id = $2)
	`
	result, err := r.db.GetConnection().ExecContext(ctx, query, meetingID, userID, now)
	if err != nil {
		return fmt.Errorf("failed to claim attendee slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrAttendeeSlotTaken
	}
	return nil
}

// UpdateStatus updates the status of a meeting
func (r *MeetingRepository) UpdateStatus(ctx context.Context, meetingID string, status models.MeetingStatus) error {
	result, err := r.db.GetConnection().ExecContext(ctx,
		`UPDATE meetings SET status = $2, updated_at = now() WHERE id = $1`, meetingID, status)
	if err != nil {
		return fmt.Errorf("failed to update meeting status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrMeetingNotFound
	}

	slog.Info("Updated meeting status",
		"meeting_id", meetingID,
		"status", status)

	return nil
}

// AppendTranscript appends the flushed fragment batch to the persisted
// transcript in one statement, against the current stored value. A non-empty
// forceStatus is set atomically with the flush; otherwise a live meeting is
// kept IN_PROGRESS.
func (r *MeetingRepository) AppendTranscript(ctx context.Context, meetingID, combined string, forceStatus models.MeetingStatus) error {
	query := `
		UPDATE meetings
		SET transcript = CASE WHEN transcript = '' THEN $2 ELSE transcript || E'\n' || $2 END,
		    status = CASE
		        WHEN $3 <> '' THEN $3
		        WHEN status <> 'COMPLETED' THEN 'IN_PROGRESS'
		        ELSE status
		    END,
		    updated_at = now()
		WHERE id = $1
	`
	result, err := r.db.GetConnection().ExecContext(ctx, query, meetingID, combined, string(forceStatus))
	if err != nil {
		return fmt.Errorf("failed to append meeting transcript: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrMeetingNotFound
	}
	return nil
}

// ListExpiredCandidates returns meetings in non-terminal statuses whose
// expiry deadline has passed.
func (r *MeetingRepository) ListExpiredCandidates(ctx context.Context, now time.Time) ([]models.Meeting, error) {
	query := `
		SELECT id, mentor_id, status, mentor_joined_at, attendee_joined_at, total_session_seconds
		FROM meetings
		WHERE status IN ('SCHEDULED', 'PENDING', 'APPROVED', 'IN_PROGRESS')
		  AND expires_at IS NOT NULL AND expires_at <= $1
	`
	rows, err := r.db.GetConnection().QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired meetings: %w", err)
	}
	defer rows.Close()

	var meetings []models.Meeting
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.ID, &m.MentorID, &m.Status, &m.MentorJoinedAt, &m.AttendeeJoinedAt, &m.TotalSessionSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan expired meeting: %w", err)
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}
