package repository

import (
	"context"
	"fmt"

	"interview-copilot-service/src/db"
	"interview-copilot-service/src/models"
)

// SettingsRepository reads and writes the single admin settings row.
type SettingsRepository struct {
	db *db.DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(database *db.DB) *SettingsRepository {
	return &SettingsRepository{
		db: database,
	}
}

// Get returns the settings row.
func (r *SettingsRepository) Get(ctx context.Context) (*models.AdminSettings, error) {
	query := `
		SELECT session_grace_minutes, session_hard_stop_enabled, default_provider,
		       openai_api_key, openai_model, deepseek_api_key, deepseek_model,
		       gemini_api_key, gemini_model, updated_at
		FROM admin_settings
		WHERE id = 1
	`
	var s models.AdminSettings
	err := r.db.GetConnection().QueryRowContext(ctx, query).Scan(
		&s.SessionGraceMinutes, &s.SessionHardStopEnabled, &s.DefaultProvider,
		&s.OpenAIAPIKey, &s.OpenAIModel, &s.DeepSeekAPIKey, &s.DeepSeekModel,
		&s.GeminiAPIKey, &s.GeminiModel, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin settings: %w", err)
	}
	return &s, nil
}

// Update overwrites the settings row.
func (r *SettingsRepository) Update(ctx context.Context, s *models.AdminSettings) error {
	query := `
		UPDATE admin_settings
		SET session_grace_minutes = $1,
		    session_hard_stop_enabled = $2,
		    default_provider = $3,
		    openai_api_key = $4,
		    openai_model = $5,
		    deepseek_api_key = $6,
		    deepseek_model = $7,
		    gemini_api_key = $8,
		    gemini_model = $9,
		    updated_at = now()
		WHERE id = 1
	`
	_, err := r.db.GetConnection().ExecContext(ctx, query,
		s.SessionGraceMinutes, s.SessionHardStopEnabled, s.DefaultProvider,
		s.OpenAIAPIKey, s.OpenAIModel, s.DeepSeekAPIKey, s.DeepSeekModel,
		s.GeminiAPIKey, s.GeminiModel,
	)
	if err != nil {
		return fmt.Errorf("failed to update admin settings: %w", err)
	}
	return nil
}
