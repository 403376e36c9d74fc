package models

import "time"

// AdminSettings is the single read-mostly configuration row maintained by
// administrators. Billing reads it at finalize time, so policy changes apply
// to sessions ending after the change.
type AdminSettings struct {
	SessionGraceMinutes    int    `json:"sessionGraceMinutes"`
	SessionHardStopEnabled bool   `json:"sessionHardStopEnabled"`
	DefaultProvider        string `json:"defaultProvider"`

	OpenAIAPIKey   string `json:"-"`
	OpenAIModel    string `json:"openaiModel,omitempty"`
	DeepSeekAPIKey string `json:"-"`
	DeepSeekModel  string `json:"deepseekModel,omitempty"`
	GeminiAPIKey   string `json:"-"`
	GeminiModel    string `json:"geminiModel,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// BillingConfig is the slice of AdminSettings the finalize path consumes.
type BillingConfig struct {
	GraceSeconds    int
	HardStopEnabled bool
}

// Billing derives the billing parameters from the settings row.
func (s AdminSettings) Billing() BillingConfig {
	grace := s.SessionGraceMinutes
	if grace < 0 {
		grace = 0
	}
	return BillingConfig{
		GraceSeconds:    grace * 60,
		HardStopEnabled: s.SessionHardStopEnabled,
	}
}
