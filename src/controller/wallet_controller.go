package controller

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"interview-copilot-service/src/middleware"
	"interview-copilot-service/src/models"
	"interview-copilot-service/src/repository"
	"interview-copilot-service/src/schemas"
)

type WalletController struct {
	Wallets *repository.WalletRepository
}

func NewWalletController(wallets *repository.WalletRepository) *WalletController {
	return &WalletController{Wallets: wallets}
}

// GrantCreditsRequest represents the request body for granting credits
type GrantCreditsRequest struct {
	UserID string `json:"userId" binding:"required"`
	Pool   string `json:"pool" binding:"required"`
	Amount int    `json:"amount" binding:"required"`
}

// GrantCreditsResponse reports the balance after a grant
type GrantCreditsResponse struct {
	UserID  string `json:"userId"`
	Pool    string `json:"pool"`
	Balance int    `json:"balance"`
}

// @Summary Get the caller's wallet
// @Description Returns the caller's credit balances
// @Tags wallet
// @Produce json
// @Success 200 {object} models.Wallet
// @Failure 401 {object} schemas.ErrorResponse
// @Router /wallet [get]
func (wc *WalletController) Get(ctx *gin.Context) {
	identity, _ := middleware.IdentityFrom(ctx)

	wallet, err := wc.Wallets.Get(ctx.Request.Context(), identity.UserID)
	if err != nil {
		slog.Error("Failed to load wallet", "user_id", identity.UserID, "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to load wallet", ctx.FullPath()))
		return
	}
	ctx.JSON(http.StatusOK, wallet)
}

// @Summary Grant credits to a user
// @Description Adds credits to one pool of a user's wallet. Admin only.
// @Tags wallet
// @Accept json
// @Produce json
// @Param GrantCreditsRequest body GrantCreditsRequest true "Grant details"
// @Success 200 {object} GrantCreditsResponse
// @Failure 400 {object} schemas.ErrorResponse
// @Failure 403 {object} schemas.ErrorResponse
// @Router /wallet/grant [post]
func (wc *WalletController) Grant(ctx *gin.Context) {
	var req GrantCreditsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest,
			schemas.NewBadRequestError("Invalid JSON format: "+err.Error(), ctx.FullPath()))
		return
	}
	if req.Amount <= 0 {
		ctx.JSON(http.StatusBadRequest,
			schemas.NewBadRequestError("Amount must be positive", ctx.FullPath()))
		return
	}

	pool := models.CreditPool(req.Pool)
	if pool != models.PoolAIInterview && pool != models.PoolMentorSession {
		ctx.JSON(http.StatusBadRequest,
			schemas.NewBadRequestError("Unknown credit pool: "+req.Pool, ctx.FullPath()))
		return
	}

	balance, err := wc.Wallets.Increment(ctx.Request.Context(), req.UserID, pool, req.Amount)
	if err != nil {
		slog.Error("Failed to grant credits", "user_id", req.UserID, "pool", req.Pool, "error", err.Error())
		ctx.JSON(http.StatusInternalServerError,
			schemas.NewInternalError("Failed to grant credits", ctx.FullPath()))
		return
	}

	slog.Info("Credits granted", "user_id", req.UserID, "pool", req.Pool, "amount", req.Amount)
	ctx.JSON(http.StatusOK, GrantCreditsResponse{UserID: req.UserID, Pool: req.Pool, Balance: balance})
}
