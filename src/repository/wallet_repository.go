package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"interview-copilot-service/src/db"
	"interview-copilot-service/src/models"
)

// WalletRepository handles the per-user credit pools. The compare-then-
// decrement is a single conditional UPDATE so a balance can never go negative
// under concurrent charges.
type WalletRepository struct {
	db *db.DB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(database *db.DB) *WalletRepository {
	return &WalletRepository{
		db: database,
	}
}

func poolColumn(pool models.CreditPool) (string, error) {
	switch pool {
	case models.PoolAIInterview:
		return "ai_interview_credits", nil
	case models.PoolMentorSession:
		return "mentor_session_credits", nil
	}
	return "", fmt.Errorf("unknown credit pool: %s", pool)
}

// Get returns both pool balances for a user.
func (r *WalletRepository) Get(ctx context.Context, userID string) (*models.Wallet, error) {
	query := `SELECT id, ai_interview_credits, mentor_session_credits FROM users WHERE id = $1`

	var w models.Wallet
	err := r.db.GetConnection().QueryRowContext(ctx, query, userID).Scan(
		&w.UserID, &w.AIInterviewCredits, &w.MentorSessionCredits,
	)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &w, nil
}

// ConditionalDecrement charges amount from the pool only if the balance
// covers it, returning the new balance. Returns ErrInsufficientCredits when
// the guard fails (or the user does not exist).
func (r *WalletRepository) ConditionalDecrement(ctx context.Context, userID string, pool models.CreditPool, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("decrement amount must be positive, got %d", amount)
	}
	column, err := poolColumn(pool)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %s = %s - $2, updated_at = now()
		WHERE id = $1 AND %s >= $2
		RETURNING %s
	`, column, column, column, column)

	var newBalance int
	err = r.db.GetConnection().QueryRowContext(ctx, query, userID, amount).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, models.ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("failed to decrement wallet: %w", err)
	}

	slog.Info("Charged wallet",
		"user_id", userID,
		"pool", pool,
		"amount", amount,
		"new_balance", newBalance)

	return newBalance, nil
}

// Increment adds credits to the pool, returning the new balance.
func (r *WalletRepository) Increment(ctx context.Context, userID string, pool models.CreditPool, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("increment amount must be positive, got %d", amount)
	}
	column, err := poolColumn(pool)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		UPDATE users
		SET %s = %s + $2, updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, column, column, column)

	var newBalance int
	err = r.db.GetConnection().QueryRowContext(ctx, query, userID, amount).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, models.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment wallet: %w", err)
	}
	return newBalance, nil
}
