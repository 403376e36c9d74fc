package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"interview-copilot-service/src/ai"
	"interview-copilot-service/src/models"
)

// joinCodeLength is the number of hex characters in a pairing code.
const joinCodeLength = 6

// CopilotSessionStore is the full session persistence surface the service
// orchestrates.
type CopilotSessionStore interface {
	Create(ctx context.Context, ownerUserID, title, targetURL string, scenario models.ScenarioType, meta models.SessionMetadata) (*models.CopilotSession, error)
	GetByID(ctx context.Context, sessionID string) (*models.CopilotSession, error)
	GetOwned(ctx context.Context, sessionID, ownerUserID string) (*models.CopilotSession, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]models.CopilotSession, error)
	UpdateDetails(ctx context.Context, sessionID, ownerUserID string, title, targetURL *string, scenario *models.ScenarioType, meta *models.SessionMetadata) (*models.CopilotSession, error)
	Delete(ctx context.Context, sessionID, ownerUserID string) error
	Start(ctx context.Context, sessionID, ownerUserID, joinCode string, now time.Time) (*models.CopilotSession, error)
	SaveSummary(ctx context.Context, sessionID, summaryText string, summaryData []byte, updatedAt time.Time) error
}

// CompletionCaller performs one non-streaming AI completion.
type CompletionCaller interface {
	Call(ctx context.Context, provider string, messages []ai.Message) (string, error)
}

// StartedInterviewStore marks a linked interview record as in progress.
type StartedInterviewStore interface {
	MarkInProgress(ctx context.Context, interviewID string) error
}

// CopilotSessionService orchestrates session lifecycle around the store:
// pairing codes on start, finalization on end, AI-generated recaps.
type CopilotSessionService struct {
	store      CopilotSessionStore
	finalizer  *Finalizer
	completer  CompletionCaller
	interviews StartedInterviewStore

	now func() time.Time
}

func NewCopilotSessionService(store CopilotSessionStore, finalizer *Finalizer, completer CompletionCaller, interviews StartedInterviewStore) *CopilotSessionService {
	return &CopilotSessionService{
		store:      store,
		finalizer:  finalizer,
		completer:  completer,
		interviews: interviews,
		now:        time.Now,
	}
}

func (s *CopilotSessionService) List(ctx context.Context, ownerUserID string) ([]models.CopilotSession, error) {
	return s.store.ListByOwner(ctx, ownerUserID)
}

func (s *CopilotSessionService) Create(ctx context.Context, ownerUserID, title, targetURL, scenario string, meta models.SessionMetadata) (*models.CopilotSession, error) {
	return s.store.Create(ctx, ownerUserID, title, targetURL, models.NormalizeScenarioType(scenario), meta)
}

func (s *CopilotSessionService) Get(ctx context.Context, sessionID, ownerUserID string) (*models.CopilotSession, error) {
	return s.store.GetOwned(ctx, sessionID, ownerUserID)
}

func (s *CopilotSessionService) Update(ctx context.Context, sessionID, ownerUserID string, title, targetURL, scenario *string, meta *models.SessionMetadata) (*models.CopilotSession, error) {
	var normalized *models.ScenarioType
	if scenario != nil {
		st := models.NormalizeScenarioType(*scenario)
		normalized = &st
	}
	return s.store.UpdateDetails(ctx, sessionID, ownerUserID, title, targetURL, normalized, meta)
}

func (s *CopilotSessionService) Delete(ctx context.Context, sessionID, ownerUserID string) error {
	return s.store.Delete(ctx, sessionID, ownerUserID)
}

// Start activates the session and issues its pairing code. Restarting an
// already-active session keeps the existing code and original start time.
func (s *CopilotSessionService) Start(ctx context.Context, sessionID, ownerUserID string) (*models.CopilotSession, error) {
	existing, err := s.store.GetOwned(ctx, sessionID, ownerUserID)
	if err != nil {
		return nil, err
	}
	if existing.Status.Terminal() {
		return nil, models.ErrSessionEnded
	}

	code, err := generateJoinCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate join code: %w", err)
	}
	session, err := s.store.Start(ctx, sessionID, ownerUserID, code, s.now())
	if err != nil {
		return nil, err
	}

	// Starting also marks the linked interview used, so a crash before end
	// still leaves it ineligible for an unused-session refund.
	if linked := session.Metadata.InterviewID; linked != "" && s.interviews != nil {
		if err := s.interviews.MarkInProgress(ctx, linked); err != nil {
			log.WithFields(log.Fields{"session_id": sessionID, "interview_id": linked}).
				WithError(err).Warn("Failed to mark linked interview in progress")
		}
	}

	log.WithFields(log.Fields{"session_id": sessionID, "user_id": ownerUserID}).Info("Copilot session started")
	return session, nil
}

// End finalizes the session, settling its charge. Ending a session that never
// started or already ended is not an error; the result reports zero charge.
func (s *CopilotSessionService) End(ctx context.Context, sessionID, ownerUserID string) (*FinalizeResult, error) {
	session, err := s.store.GetOwned(ctx, sessionID, ownerUserID)
	if err != nil {
		return nil, err
	}
	result, err := s.finalizer.Finalize(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.SummaryUpdatedAt == nil && len(session.Transcript) > 0 && s.completer != nil {
		go s.generateSummaryAsync(sessionID, ownerUserID)
	}
	return result, nil
}

// generateSummaryAsync produces the recap in the background after an end; the
// caller's response does not wait on the model.
func (s *CopilotSessionService) generateSummaryAsync(sessionID, ownerUserID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if _, err := s.GenerateSummary(ctx, sessionID, ownerUserID, ""); err != nil {
		log.WithError(err).WithField("session_id", sessionID).Warn("Post-end summary generation failed")
	}
}

// GenerateSummary produces and stores an AI recap of the session transcript.
func (s *CopilotSessionService) GenerateSummary(ctx context.Context, sessionID, ownerUserID, provider string) (*SessionSummary, error) {
	session, err := s.store.GetOwned(ctx, sessionID, ownerUserID)
	if err != nil {
		return nil, err
	}
	if len(session.Transcript) == 0 {
		return nil, fmt.Errorf("session has no transcript to summarize")
	}

	prompts := BuildSummaryPrompt(session)
	messages := []ai.Message{
		{Role: "system", Content: prompts[0]},
		{Role: "user", Content: prompts[1]},
	}

	answer, err := s.completer.Call(ctx, provider, messages)
	if err != nil {
		return nil, err
	}

	summary := ParseSummaryAnswer(answer)
	data, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSummary(ctx, sessionID, summary.Overview, data, s.now()); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ValidateJoinCode matches a presented pairing code against the session's
// stored code, case-insensitively.
func ValidateJoinCode(session *models.CopilotSession, presented string) error {
	if session.JoinCode == "" {
		return models.ErrInvalidJoinCode
	}
	if !strings.EqualFold(session.JoinCode, strings.TrimSpace(presented)) {
		return models.ErrInvalidJoinCode
	}
	return nil
}

func generateJoinCode() (string, error) {
	buf := make([]byte, joinCodeLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
