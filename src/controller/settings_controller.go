package controller

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"interview-copilot-service/src/models"
	"interview-copilot-service/src/repository"
	"interview-copilot-service/src/schemas"
	"interview-copilot-service/src/service"
)

type SettingsController struct {
	Settings *repository.SettingsRepository
	Cache    *service.SettingsCache
}

func NewSettingsController(settings *repository.SettingsRepository, cache *service.SettingsCache) *SettingsController {
	return &SettingsController{Settings: settings, Cache: cache}
}

// UpdateSettingsRequest represents the request body for updating admin settings
type UpdateSettingsRequest struct {
	SessionGraceMinutes    *int    `json:"sessionGraceMinutes"`
	SessionHardStopEnabled *bool   `json:"sessionHardStopEnabled"`
	DefaultProvider        *string `json:"defaultProvider"`
	OpenAIAPIKey           *string `json:"openaiApiKey"`
	OpenAIModel            *string `json:"openaiModel"`
	DeepSeekAPIKey         *string `json:"deepseekApiKey"`
	DeepSeekModel          *string `json:"deepseekModel"`
	GeminiAPIKey           *string `json:"geminiApiKey"`
	GeminiModel            *string `json:"geminiModel"`
}

// @Summary Get admin settings
// @Description Returns the current billing and provider configuration. Admin only. API keys are never returned.
// @Tags settings
// @Produce json
// @Success 200 {object} models.AdminSettings
// @Failure 403 {object} schemas.ErrorResponse
// @Router /settings [get]
func (sc *SettingsController) Get(ctx *gin.Context) {
	settings, err := sc.Settings.Get(ctx.Request.Context())
	if err != nil {
		slog.Error("Failed to load settings", "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to load settings", ctx.FullPath()))
		return
	}
	ctx.JSON(http.StatusOK, settings)
}

// @Summary Update admin settings
// @Description Applies partial updates to billing and provider configuration. Admin only.
// @Tags settings
// @Accept json
// @Produce json
// @Param UpdateSettingsRequest body UpdateSettingsRequest true "Fields to update"
// @Success 200 {object} models.AdminSettings
// @Failure 400 {object} schemas.ErrorResponse
// @Failure 403 {object} schemas.ErrorResponse
// @Router /settings [put]
func (sc *SettingsController) Update(ctx *gin.Context) {
	var req UpdateSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest,
			schemas.NewBadRequestError("Invalid JSON format: "+err.Error(), ctx.FullPath()))
		return
	}
	if req.SessionGraceMinutes != nil && *req.SessionGraceMinutes < 0 {
		ctx.JSON(http.StatusBadRequest,
			schemas.NewBadRequestError("sessionGraceMinutes must not be negative", ctx.FullPath()))
		return
	}

	settings, err := sc.Settings.Get(ctx.Request.Context())
	if err != nil {
		slog.Error("Failed to load settings", "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to load settings", ctx.FullPath()))
		return
	}

	applySettingsPatch(settings, req)
	if err := sc.Settings.Update(ctx.Request.Context(), settings); err != nil {
		slog.Error("Failed to update settings", "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to update settings", ctx.FullPath()))
		return
	}
	sc.Cache.Invalidate()

	slog.Info("Admin settings updated")
	ctx.JSON(http.StatusOK, settings)
}

func applySettingsPatch(s *models.AdminSettings, req UpdateSettingsRequest) {
	if req.SessionGraceMinutes != nil {
		s.SessionGraceMinutes = *req.SessionGraceMinutes
	}
	if req.SessionHardStopEnabled != nil {
		s.SessionHardStopEnabled = *req.SessionHardStopEnabled
	}
	if req.DefaultProvider != nil {
		s.DefaultProvider = *req.DefaultProvider
	}
	if req.OpenAIAPIKey != nil {
		s.OpenAIAPIKey = *req.OpenAIAPIKey
	}
	if req.OpenAIModel != nil {
		s.OpenAIModel = *req.OpenAIModel
	}
	if req.DeepSeekAPIKey != nil {
		s.DeepSeekAPIKey = *req.DeepSeekAPIKey
	}
	if req.DeepSeekModel != nil {
		s.DeepSeekModel = *req.DeepSeekModel
	}
	if req.GeminiAPIKey != nil {
		s.GeminiAPIKey = *req.GeminiAPIKey
	}
	if req.GeminiModel != nil {
		s.GeminiModel = *req.GeminiModel
	}
}
