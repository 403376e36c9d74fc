package models

import "time"

// SessionFinalizedEvent is published to the session event feed when a session
// reaches a terminal state through any termination path.
type SessionFinalizedEvent struct {
	SessionID       string    `json:"session_id"`
	OwnerUserID     string    `json:"owner_user_id"`
	Status          string    `json:"status"`
	ElapsedSeconds  int       `json:"elapsed_seconds"`
	BillableSeconds int       `json:"billable_seconds"`
	ChargedMinutes  int       `json:"charged_minutes"`
	CreditShortfall bool      `json:"credit_shortfall"`
	EndedAt         time.Time `json:"ended_at"`
}

// WalletChargedEvent is published when a conditional decrement succeeds.
type WalletChargedEvent struct {
	UserID     string    `json:"user_id"`
	Pool       string    `json:"pool"`
	Amount     int       `json:"amount"`
	NewBalance int       `json:"new_balance"`
	ChargedAt  time.Time `json:"charged_at"`
}
