package controller

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"interview-copilot-service/src/middleware"
	"interview-copilot-service/src/models"
	"interview-copilot-service/src/schemas"
	"interview-copilot-service/src/service"
)

type CopilotSessionController struct {
	Service *service.CopilotSessionService
}

func NewCopilotSessionController(svc *service.CopilotSessionService) *CopilotSessionController {
	return &CopilotSessionController{Service: svc}
}

// CreateSessionRequest represents the request body for creating a session
type CreateSessionRequest struct {
	Title        string                  `json:"title"`
	TargetURL    string                  `json:"targetUrl"`
	ScenarioType string                  `json:"scenarioType"`
	Metadata     *models.SessionMetadata `json:"metadata"`
}

// UpdateSessionRequest represents the request body for updating a session
type UpdateSessionRequest struct {
	Title        *string                 `json:"title"`
	TargetURL    *string                 `json:"targetUrl"`
	ScenarioType *string                 `json:"scenarioType"`
	Metadata     *models.SessionMetadata `json:"metadata"`
}

// SummaryRequest represents the request body for generating a summary
type SummaryRequest struct {
	Provider string `json:"provider"`
}

// EndSessionResponse reports the billing outcome of ending a session
type EndSessionResponse struct {
	OK     bool                    `json:"ok"`
	Result *service.FinalizeResult `json:"result"`
}

// @Summary List copilot sessions
// @Description Lists the caller's copilot sessions, newest first
// @Tags copilot-sessions
// @Produce json
// @Success 200 {array} models.CopilotSession
// @Failure 401 {object} schemas.ErrorResponse
// @Router /copilot-sessions [get]
func (cc *CopilotSessionController) List(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	sessions, err := cc.Service.List(ctx.Request.Context(), identity.UserID)
	if err != nil {
		slog.Error("Failed to list copilot sessions", "user_id", identity.UserID, "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to list sessions", ctx.FullPath()))
		return
	}
	ctx.JSON(http.StatusOK, sessions)
}

// @Summary Create a copilot session
// @Description Creates a new draft copilot session owned by the caller
// @Tags copilot-sessions
// @Accept json
// @Produce json
// @Param CreateSessionRequest body CreateSessionRequest true "Session details"
// @Success 201 {object} models.CopilotSession
// @Failure 400 {object} schemas.ErrorResponse
// @Router /copilot-sessions [post]
func (cc *CopilotSessionController) Create(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	var req CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest,
			schemas.NewBadRequestError("Invalid JSON format: "+err.Error(), ctx.FullPath()))
		return
	}

	meta := models.SessionMetadata{}
	if req.Metadata != nil {
		meta = *req.Metadata
	}
	session, err := cc.Service.Create(ctx.Request.Context(), identity.UserID, req.Title, req.TargetURL, req.ScenarioType, meta)
	if err != nil {
		slog.Error("Failed to create copilot session", "user_id", identity.UserID, "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to create session", ctx.FullPath()))
		return
	}

	slog.Info("Copilot session created", "session_id", session.ID, "user_id", identity.UserID)
	ctx.JSON(http.StatusCreated, session)
}

// @Summary Get a copilot session
// @Tags copilot-sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.CopilotSession
// @Failure 404 {object} schemas.ErrorResponse
// @Router /copilot-sessions/{id} [get]
func (cc *CopilotSessionController) Get(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	session, err := cc.Service.Get(ctx.Request.Context(), ctx.Param("id"), identity.UserID)
	if err != nil {
		cc.writeSessionError(ctx, err, "Failed to load session")
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// @Summary Update a copilot session
// @Description Updates mutable details of a session the caller owns
// @Tags copilot-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param UpdateSessionRequest body UpdateSessionRequest true "Fields to update"
// @Success 200 {object} models.CopilotSession
// @Failure 404 {object} schemas.ErrorResponse
// @Router /copilot-sessions/{id} [patch]
func (cc *CopilotSessionController) Update(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	var req UpdateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest,
			schemas.NewBadRequestError("Invalid JSON format: "+err.Error(), ctx.FullPath()))
		return
	}

	session, err := cc.Service.Update(ctx.Request.Context(), ctx.Param("id"), identity.UserID,
		req.Title, req.TargetURL, req.ScenarioType, req.Metadata)
	if err != nil {
		cc.writeSessionError(ctx, err, "Failed to update session")
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// @Summary Delete a copilot session
// @Tags copilot-sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} schemas.ErrorResponse
// @Router /copilot-sessions/{id} [delete]
func (cc *CopilotSessionController) Delete(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	if err := cc.Service.Delete(ctx.Request.Context(), ctx.Param("id"), identity.UserID); err != nil {
		cc.writeSessionError(ctx, err, "Failed to delete session")
		return
	}
	ctx.Status(http.StatusNoContent)
}

// @Summary Start a copilot session
// @Description Activates the session and issues its device pairing code
// @Tags copilot-sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.CopilotSession
// @Failure 404 {object} schemas.ErrorResponse
// @Failure 409 {object} schemas.ErrorResponse
// @Router /copilot-sessions/{id}/start [post]
func (cc *CopilotSessionController) Start(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	session, err := cc.Service.Start(ctx.Request.Context(), ctx.Param("id"), identity.UserID)
	if err != nil {
		if errors.Is(err, models.ErrSessionEnded) {
			ctx.JSON(http.StatusConflict,
				schemas.SessionNotActiveError("Session already ended", ctx.FullPath()))
			return
		}
		cc.writeSessionError(ctx, err, "Failed to start session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"id":           session.ID,
		"status":       session.Status,
		"joinCode":     session.JoinCode,
		"targetUrl":    session.TargetURL,
		"title":        session.Title,
		"scenarioType": session.Scenario,
	})
}

// @Summary End a copilot session
// @Description Terminates the session and settles its usage charge. Safe to call repeatedly.
// @Tags copilot-sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} EndSessionResponse
// @Failure 402 {object} schemas.ErrorResponse
// @Failure 404 {object} schemas.ErrorResponse
// @Router /copilot-sessions/{id}/end [post]
func (cc *CopilotSessionController) End(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	result, err := cc.Service.End(ctx.Request.Context(), ctx.Param("id"), identity.UserID)
	if err != nil {
		cc.writeSessionError(ctx, err, "Failed to end session")
		return
	}

	// The session is terminal either way; a shortfall means the usage charge
	// could not be collected.
	if result.CreditShortfall {
		ctx.JSON(http.StatusPaymentRequired,
			schemas.NewPaymentRequiredError("Insufficient AI credits for this session", ctx.FullPath()))
		return
	}

	slog.Info("Copilot session ended",
		"session_id", result.SessionID,
		"charged_minutes", result.ChargedMinutes,
		"elapsed_seconds", result.ElapsedSeconds)
	ctx.JSON(http.StatusOK, EndSessionResponse{OK: true, Result: result})
}

// @Summary Generate a session summary
// @Description Produces and stores an AI recap of the session transcript
// @Tags copilot-sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param SummaryRequest body SummaryRequest false "Provider override"
// @Success 200 {object} service.SessionSummary
// @Failure 404 {object} schemas.ErrorResponse
// @Router /copilot-sessions/{id}/summary [post]
func (cc *CopilotSessionController) Summary(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	var req SummaryRequest
	_ = ctx.ShouldBindJSON(&req)

	summary, err := cc.Service.GenerateSummary(ctx.Request.Context(), ctx.Param("id"), identity.UserID, req.Provider)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			ctx.JSON(http.StatusNotFound,
				schemas.NewNotFoundError("Session not found", ctx.FullPath()))
			return
		}
		if errors.Is(err, models.ErrProviderNotConfigured) {
			ctx.JSON(http.StatusBadRequest,
				schemas.NewBadRequestError("AI provider not configured", ctx.FullPath()))
			return
		}
		slog.Error("Failed to generate summary", "session_id", ctx.Param("id"), "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to generate summary", ctx.FullPath()))
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

func (cc *CopilotSessionController) writeSessionError(ctx *gin.Context, err error, fallback string) {
	if errors.Is(err, models.ErrSessionNotFound) {
		ctx.JSON(http.StatusNotFound,
			schemas.NewNotFoundError("Session not found", ctx.FullPath()))
		return
	}
	slog.Error(fallback, "session_id", ctx.Param("id"), "error", err.Error())
	ctx.JSON(http.StatusInternalServerError, schemas.NewInternalError(fallback, ctx.FullPath()))
}
