package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"interview-copilot-service/src/db"
	"interview-copilot-service/src/models"

	"github.com/google/uuid"
)

const copilotSessionColumns = `
	id, owner_user_id, title, scenario_type, target_url, status,
	COALESCE(join_code, ''), metadata, transcript, topics, ai_messages,
	session_started_at, session_ended_at, total_session_seconds,
	billed_seconds, credit_charged, summary_text, summary_data,
	summary_updated_at, connected_devices, created_at, updated_at`

// CopilotSessionRepository handles all database operations for copilot sessions.
// List fields (transcript, devices) and monotonic counters are mutated with
// single-statement atomic SQL so interleaved socket handlers never race a
// read-modify-write.
type CopilotSessionRepository struct {
	db *db.DB
}

// NewCopilotSessionRepository creates a new copilot session repository
func NewCopilotSessionRepository(database *db.DB) *CopilotSessionRepository {
	return &CopilotSessionRepository{
		db: database,
	}
}

func scanCopilotSession(row interface{ Scan(...any) error }) (*models.CopilotSession, error) {
	var (
		s                                              models.CopilotSession
		metadata, transcript, topics, messages, devices []byte
		summaryData                                    []byte
	)
	err := row.Scan(
		&s.ID, &s.OwnerUserID, &s.Title, &s.Scenario, &s.TargetURL, &s.Status,
		&s.JoinCode, &metadata, &transcript, &topics, &messages,
		&s.SessionStartedAt, &s.SessionEndedAt, &s.TotalSessionSeconds,
		&s.BilledSeconds, &s.CreditCharged, &s.SummaryText, &summaryData,
		&s.SummaryUpdatedAt, &devices, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode session metadata: %w", err)
	}
	if err := json.Unmarshal(transcript, &s.Transcript); err != nil {
		return nil, fmt.Errorf("failed to decode session transcript: %w", err)
	}
	if err := json.Unmarshal(topics, &s.Topics); err != nil {
		return nil, fmt.Errorf("failed to decode session topics: %w", err)
	}
	if err := json.Unmarshal(messages, &s.AIMessages); err != nil {
		return nil, fmt.Errorf("failed to decode session ai messages: %w", err)
	}
	if err := json.Unmarshal(devices, &s.ConnectedDevices); err != nil {
		return nil, fmt.Errorf("failed to decode connected devices: %w", err)
	}
	s.SummaryData = summaryData
	return &s, nil
}

// Create inserts a new DRAFT session for the owner.
func (r *CopilotSessionRepository) Create(ctx context.Context, ownerUserID, title, targetURL string, scenario models.ScenarioType, meta models.SessionMetadata) (*models.CopilotSession, error) {
	if title == "" {
		title = "Copilot Session"
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session metadata: %w", err)
	}

	sessionID := uuid.New().String()
	query := `
		INSERT INTO copilot_sessions (id, owner_user_id, title, scenario_type, target_url, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + copilotSessionColumns

	session, err := scanCopilotSession(r.db.GetConnection().QueryRowContext(
		ctx, query, sessionID, ownerUserID, title, scenario, targetURL, models.CopilotStatusDraft, metaJSON,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create copilot session: %w", err)
	}

	slog.Info("Created copilot session",
		"owner_user_id", ownerUserID,
		"session_id", session.ID)

	return session, nil
}

// GetByID retrieves a session regardless of ownership (socket join path).
func (r *CopilotSessionRepository) GetByID(ctx context.Context, sessionID string) (*models.CopilotSession, error) {
	query := `SELECT ` + copilotSessionColumns + ` FROM copilot_sessions WHERE id = $1`
	session, err := scanCopilotSession(r.db.GetConnection().QueryRowContext(ctx, query, sessionID))
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get copilot session: %w", err)
	}
	return session, nil
}

// GetOwned retrieves a session scoped to its owner (HTTP path).
func (r *CopilotSessionRepository) GetOwned(ctx context.Context, sessionID, ownerUserID string) (*models.CopilotSession, error) {
	query := `SELECT ` + copilotSessionColumns + ` FROM copilot_sessions WHERE id = $1 AND owner_user_id = $2`
	session, err := scanCopilotSession(r.db.GetConnection().QueryRowContext(ctx, query, sessionID, ownerUserID))
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get copilot session: %w", err)
	}
	return session, nil
}

// ListByOwner returns the owner's sessions, newest first, without the heavy
// list fields (the extension expects a light listing).
func (r *CopilotSessionRepository) ListByOwner(ctx context.Context, ownerUserID string) ([]models.CopilotSession, error) {
	query := `
		SELECT id, owner_user_id, title, scenario_type, target_url, status,
		       session_started_at, session_ended_at, total_session_seconds,
		       billed_seconds, credit_charged, created_at, updated_at
		FROM copilot_sessions
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.GetConnection().QueryContext(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list copilot sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.CopilotSession
	for rows.Next() {
		var s models.CopilotSession
		if err := rows.Scan(
			&s.ID, &s.OwnerUserID, &s.Title, &s.Scenario, &s.TargetURL, &s.Status,
			&s.SessionStartedAt, &s.SessionEndedAt, &s.TotalSessionSeconds,
			&s.BilledSeconds, &s.CreditCharged, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan copilot session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateDetails updates the editable fields of an owned session.
func (r *CopilotSessionRepository) UpdateDetails(ctx context.Context, sessionID, ownerUserID string, title, targetURL *string, scenario *models.ScenarioType, meta *models.SessionMetadata) (*models.CopilotSession, error) {
	var metaJSON []byte
	if meta != nil {
		encoded, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session metadata: %w", err)
		}
		metaJSON = encoded
	}

	query := `
		UPDATE copilot_sessions
		SET title = COALESCE($3, title),
		    target_url = COALESCE($4, target_url),
		    scenario_type = COALESCE($5, scenario_type),
		    metadata = COALESCE($6, metadata),
		    updated_at = now()
		WHERE id = $1 AND owner_user_id = $2
		RETURNING ` + copilotSessionColumns

	var scenarioArg *string
	if scenario != nil {
		v := string(*scenario)
		scenarioArg = &v
	}

	session, err := scanCopilotSession(r.db.GetConnection().QueryRowContext(
		ctx, query, sessionID, ownerUserID, title, targetURL, scenarioArg, metaJSON,
	))
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update copilot session: %w", err)
	}
	return session, nil
}

// Delete removes an owned session.
func (r *CopilotSessionRepository) Delete(ctx context.Context, sessionID, ownerUserID string) error {
	result, err := r.db.GetConnection().ExecContext(ctx,
		`DELETE FROM copilot_sessions WHERE id = $1 AND owner_user_id = $2`, sessionID, ownerUserID)
	if err != nil {
		return fmt.Errorf("failed to delete copilot session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// Start activates an owned session: issues a join code if none exists and
// stamps session_started_at exactly once (first start wins).
func (r *CopilotSessionRepository) Start(ctx context.Context, sessionID, ownerUserID, joinCode string, now time.Time) (*models.CopilotSession, error) {
	query := `
		UPDATE copilot_sessions
		SET status = $4,
		    join_code = COALESCE(join_code, $3),
		    session_started_at = COALESCE(session_started_at, $5),
		    session_ended_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND owner_user_id = $2
		RETURNING ` + copilotSessionColumns

	session, err := scanCopilotSession(r.db.GetConnection().QueryRowContext(
		ctx, query, sessionID, ownerUserID, joinCode, models.CopilotStatusActive, now,
	))
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start copilot session: %w", err)
	}

	slog.Info("Started copilot session",
		"session_id", sessionID,
		"owner_user_id", ownerUserID)

	return session, nil
}

// AppendTranscript pushes one transcript entry atomically.
func (r *CopilotSessionRepository) AppendTranscript(ctx context.Context, sessionID string, entry models.TranscriptEntry) error {
	return r.appendJSONB(ctx, sessionID, "transcript", entry)
}

// AppendTopic pushes one topic event atomically.
func (r *CopilotSessionRepository) AppendTopic(ctx context.Context, sessionID string, topic models.TopicEvent) error {
	return r.appendJSONB(ctx, sessionID, "topics", topic)
}

// AppendAIMessage pushes one AI exchange entry atomically.
func (r *CopilotSessionRepository) AppendAIMessage(ctx context.Context, sessionID string, msg models.AIMessage) error {
	return r.appendJSONB(ctx, sessionID, "ai_messages", msg)
}

func (r *CopilotSessionRepository) appendJSONB(ctx context.Context, sessionID, column string, entry any) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", column, err)
	}
	// column names come from the three fixed callers above
	query := fmt.Sprintf(`
		UPDATE copilot_sessions
		SET %s = %s || $2::jsonb, updated_at = now()
		WHERE id = $1
	`, column, column)
	result, err := r.db.GetConnection().ExecContext(ctx, query, sessionID, payload)
	if err != nil {
		return fmt.Errorf("failed to append %s entry: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}

// ReplaceDevices rewrites the connected-device list (join path: the caller
// has already pruned the reconnecting device and capped the list).
func (r *CopilotSessionRepository) ReplaceDevices(ctx context.Context, sessionID string, devices []models.ConnectedDevice) (int, error) {
	if devices == nil {
		devices = []models.ConnectedDevice{}
	}
	payload, err := json.Marshal(devices)
	if err != nil {
		return 0, fmt.Errorf("failed to encode device list: %w", err)
	}
	query := `
		UPDATE copilot_sessions
		SET connected_devices = $2::jsonb, updated_at = now()
		WHERE id = $1
		RETURNING jsonb_array_length(connected_devices)
	`
	var count int
	err = r.db.GetConnection().QueryRowContext(ctx, query, sessionID, payload).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, models.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to replace device list: %w", err)
	}
	return count, nil
}

// RemoveDevice prunes one connection from the device list atomically and
// returns the remaining presence count.
func (r *CopilotSessionRepository) RemoveDevice(ctx context.Context, sessionID, connectionID string) (int, error) {
	query := `
		UPDATE copilot_sessions
		SET connected_devices = (
		        SELECT COALESCE(jsonb_agg(d), '[]'::jsonb)
		        FROM jsonb_array_elements(connected_devices) d
		        WHERE d->>'connectionId' <> $2
		    ),
		    updated_at = now()
		WHERE id = $1
		RETURNING jsonb_array_length(connected_devices)
	`
	var count int
	err := r.db.GetConnection().QueryRowContext(ctx, query, sessionID, connectionID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, models.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to remove device: %w", err)
	}
	return count, nil
}

// FinalizeUpdate carries the persisted outcome of one finalize pass.
type FinalizeUpdate struct {
	Status              models.CopilotSessionStatus
	SessionStartedAt    time.Time
	SessionEndedAt      time.Time
	TotalSessionSeconds int
	BilledSeconds       int // applied via GREATEST, monotonically non-decreasing
	CreditCharged       bool

	SummaryText      string
	SummaryData      []byte
	SummaryUpdatedAt *time.Time
}

// ApplyFinalize persists a finalize outcome in one statement. billed_seconds
// only ever grows and credit_charged never resets, so duplicate finalize
// invocations cannot roll either back.
func (r *CopilotSessionRepository) ApplyFinalize(ctx context.Context, sessionID string, upd FinalizeUpdate) error {
	query := `
		UPDATE copilot_sessions
		SET status = $2,
		    session_started_at = COALESCE(session_started_at, $3),
		    session_ended_at = $4,
		    total_session_seconds = $5,
		    billed_seconds = GREATEST(billed_seconds, $6),
		    credit_charged = credit_charged OR $7,
		    join_code = NULL,
		    connected_devices = '[]'::jsonb,
		    summary_text = CASE WHEN $8 <> '' THEN $8 ELSE summary_text END,
		    summary_data = COALESCE($9, summary_data),
		    summary_updated_at = COALESCE($10, summary_updated_at),
		    updated_at = now()
		WHERE id = $1
	`
	result, err := r.db.GetConnection().ExecContext(ctx, query,
		sessionID, upd.Status, upd.SessionStartedAt, upd.SessionEndedAt,
		upd.TotalSessionSeconds, upd.BilledSeconds, upd.CreditCharged,
		upd.SummaryText, upd.SummaryData, upd.SummaryUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize copilot session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrSessionNotFound
	}

	slog.Info("Finalized copilot session",
		"session_id", sessionID,
		"status", upd.Status,
		"billed_seconds", upd.BilledSeconds)

	return nil
}

// SaveSummary stores a regenerated session recap.
func (r *CopilotSessionRepository) SaveSummary(ctx context.Context, sessionID, summaryText string, summaryData []byte, updatedAt time.Time) error {
	result, err := r.db.GetConnection().ExecContext(ctx, `
		UPDATE copilot_sessions
		SET summary_text = $2, summary_data = $3, summary_updated_at = $4, updated_at = now()
		WHERE id = $1
	`, sessionID, summaryText, summaryData, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session summary: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}
