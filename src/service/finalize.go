package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"interview-copilot-service/src/billing"
	"interview-copilot-service/src/config"
	"interview-copilot-service/src/models"
	"interview-copilot-service/src/repository"
)

// FinalizeSessionStore is the session persistence the finalizer needs.
type FinalizeSessionStore interface {
	GetByID(ctx context.Context, sessionID string) (*models.CopilotSession, error)
	ApplyFinalize(ctx context.Context, sessionID string, upd repository.FinalizeUpdate) error
}

// WalletStore performs conditional credit decrements. ConditionalDecrement
// returns models.ErrInsufficientCredits when the balance is below amount.
type WalletStore interface {
	ConditionalDecrement(ctx context.Context, userID string, pool models.CreditPool, amount int) (int, error)
}

// LinkedInterviewStore marks a linked interview record as used.
type LinkedInterviewStore interface {
	GetByID(ctx context.Context, interviewID string) (*models.Interview, error)
	MarkCompleted(ctx context.Context, interviewID string, elapsedSeconds int) error
}

// BillingConfigSource supplies the billing parameters in effect right now.
type BillingConfigSource interface {
	BillingConfig(ctx context.Context) (models.BillingConfig, error)
}

// EventPublisher publishes a JSON-serializable event to a named exchange.
type EventPublisher interface {
	Publish(exchange string, event any) error
}

// FinalizeResult reports the outcome of one finalize pass. Repeated passes
// over the same session converge on the same result with zero new charges.
type FinalizeResult struct {
	SessionID       string    `json:"sessionId"`
	Status          string    `json:"status"`
	ElapsedSeconds  int       `json:"elapsedSeconds"`
	BillableSeconds int       `json:"billableSeconds"`
	BillableMinutes int       `json:"billableMinutes"`
	ChargedMinutes  int       `json:"chargedMinutes"`
	CreditShortfall bool      `json:"creditShortfall"`
	EndedAt         time.Time `json:"endedAt"`
}

// Finalizer drives session termination and billing. All termination paths
// (explicit end, last disconnect, expiry sweep) funnel through Finalize, and
// the charge is delta-based so concurrent or repeated invocations never
// double-charge.
type Finalizer struct {
	sessions   FinalizeSessionStore
	wallets    WalletStore
	interviews LinkedInterviewStore
	billingCfg BillingConfigSource
	publisher  EventPublisher
	exchange   string

	now func() time.Time
}

func NewFinalizer(
	sessions FinalizeSessionStore,
	wallets WalletStore,
	interviews LinkedInterviewStore,
	billingCfg BillingConfigSource,
	publisher EventPublisher,
	exchange string,
) *Finalizer {
	return &Finalizer{
		sessions:   sessions,
		wallets:    wallets,
		interviews: interviews,
		billingCfg: billingCfg,
		publisher:  publisher,
		exchange:   exchange,
		now:        time.Now,
	}
}

// Finalize terminates the session and settles its usage charge. It is safe to
// call any number of times for the same session: already-terminal sessions are
// recomputed from persisted state without touching the wallet again, and the
// persisted billed_seconds floor means a racing duplicate charges at most the
// delta the other pass has not yet recorded.
func (f *Finalizer) Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error) {
	session, err := f.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cfg, err := f.billingCfg.BillingConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load billing config: %w", err)
	}

	now := f.now()
	startedAt := session.SessionStartedAt
	if startedAt == nil {
		startedAt = &now
	}
	endedAt := now
	if session.Status.Terminal() && session.SessionEndedAt != nil {
		endedAt = *session.SessionEndedAt
	}

	durationMinutes := 0
	var linked *models.Interview
	if session.Metadata.InterviewID != "" && f.interviews != nil {
		linked, err = f.interviews.GetByID(ctx, session.Metadata.InterviewID)
		if err != nil && !errors.Is(err, models.ErrInterviewNotFound) {
			log.WithError(err).WithField("interview_id", session.Metadata.InterviewID).
				Warn("Failed to load linked interview, billing without hard-stop cap")
		}
		if linked != nil {
			durationMinutes = linked.DurationMinutes
		}
	}

	elapsed := billing.ComputeElapsedSeconds(startedAt, &endedAt, durationMinutes, cfg.HardStopEnabled)
	billableSeconds := billing.ComputeBillableSeconds(elapsed, cfg.GraceSeconds)
	billableMinutes := billing.ComputeBillableMinutes(billableSeconds)

	// Charge only the minutes not already covered by a previous pass.
	alreadyBilledMinutes := billing.ComputeBillableMinutes(session.BilledSeconds)
	newChargeMinutes := billableMinutes - alreadyBilledMinutes
	if newChargeMinutes < 0 {
		newChargeMinutes = 0
	}

	result := &FinalizeResult{
		SessionID:       session.ID,
		Status:          string(models.CopilotStatusEnded),
		ElapsedSeconds:  elapsed,
		BillableSeconds: billableSeconds,
		BillableMinutes: billableMinutes,
		EndedAt:         endedAt,
	}

	if session.Status.Terminal() && newChargeMinutes == 0 {
		// Nothing left to settle. Report the recomputed figures.
		return result, nil
	}

	chargedNow := false
	if newChargeMinutes > 0 {
		balance, err := f.wallets.ConditionalDecrement(ctx, session.OwnerUserID, models.PoolAIInterview, newChargeMinutes)
		switch {
		case errors.Is(err, models.ErrInsufficientCredits):
			result.CreditShortfall = true
			log.WithFields(log.Fields{
				"session_id": session.ID,
				"user_id":    session.OwnerUserID,
				"minutes":    newChargeMinutes,
			}).Warn("Insufficient credits at finalize, ending session without charge")
		case err != nil:
			return nil, fmt.Errorf("failed to charge wallet: %w", err)
		default:
			chargedNow = true
			result.ChargedMinutes = newChargeMinutes
			f.publishCharged(session.OwnerUserID, newChargeMinutes, balance, now)
		}
	}

	upd := repository.FinalizeUpdate{
		Status:              models.CopilotStatusEnded,
		SessionStartedAt:    *startedAt,
		SessionEndedAt:      endedAt,
		TotalSessionSeconds: elapsed,
		BilledSeconds:       session.BilledSeconds,
		CreditCharged:       session.CreditCharged || chargedNow,
	}
	if chargedNow {
		// Only advance the billed floor for seconds actually paid for, so a
		// shortfall pass leaves the delta chargeable by a later retry.
		upd.BilledSeconds = billableSeconds
	}
	if err := f.sessions.ApplyFinalize(ctx, session.ID, upd); err != nil {
		return nil, err
	}

	if linked != nil && !linked.Status.Terminal() {
		usage := elapsed
		if usage < 1 {
			usage = 1
		}
		if err := f.interviews.MarkCompleted(ctx, linked.ID, usage); err != nil {
			log.WithError(err).WithField("interview_id", linked.ID).
				Warn("Failed to mark linked interview completed")
		}
	}

	f.publishFinalized(session, result)

	return result, nil
}

func (f *Finalizer) publishCharged(userID string, minutes, newBalance int, at time.Time) {
	if f.publisher == nil {
		return
	}
	event := models.WalletChargedEvent{
		UserID:     userID,
		Pool:       string(models.PoolAIInterview),
		Amount:     minutes,
		NewBalance: newBalance,
		ChargedAt:  at,
	}
	if err := f.publisher.Publish(config.WALLET_EVENTS_EXCHANGE, event); err != nil {
		log.WithError(err).WithField("user_id", userID).
			Warn("Failed to publish wallet charged event")
	}
}

func (f *Finalizer) publishFinalized(session *models.CopilotSession, result *FinalizeResult) {
	if f.publisher == nil {
		return
	}
	event := models.SessionFinalizedEvent{
		SessionID:       session.ID,
		OwnerUserID:     session.OwnerUserID,
		Status:          result.Status,
		ElapsedSeconds:  result.ElapsedSeconds,
		BillableSeconds: result.BillableSeconds,
		ChargedMinutes:  result.ChargedMinutes,
		CreditShortfall: result.CreditShortfall,
		EndedAt:         result.EndedAt,
	}
	if err := f.publisher.Publish(f.exchange, event); err != nil {
		log.WithError(err).WithField("session_id", session.ID).
			Warn("Failed to publish session finalized event")
	}
}
