package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"interview-copilot-service/src/controller"
	"interview-copilot-service/src/middleware"
)

// Controllers bundles the HTTP controllers the router mounts.
type Controllers struct {
	Sessions *controller.CopilotSessionController
	Wallet   *controller.WalletController
	Settings *controller.SettingsController
}

// NewRouter sets up the gin engine: REST routes behind token auth, the
// websocket endpoint, swagger, and the health probe.
func NewRouter(verifier middleware.Verifier, ctrl Controllers, wsHandler http.Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// The websocket handler authenticates its own token (query param or
	// header), so it mounts outside the auth middleware.
	r.GET("/ws", gin.WrapH(wsHandler))

	authRequired := middleware.AuthRequired(verifier)

	sessions := r.Group("/copilot-sessions", authRequired)
	{
		sessions.GET("", ctrl.Sessions.List)
		sessions.POST("", ctrl.Sessions.Create)
		sessions.GET("/:id", ctrl.Sessions.Get)
		sessions.PATCH("/:id", ctrl.Sessions.Update)
		sessions.DELETE("/:id", ctrl.Sessions.Delete)
		sessions.POST("/:id/start", ctrl.Sessions.Start)
		sessions.POST("/:id/end", ctrl.Sessions.End)
		sessions.POST("/:id/summary", ctrl.Sessions.Summary)
	}

	wallet := r.Group("/wallet", authRequired)
	{
		wallet.GET("", ctrl.Wallet.Get)
		wallet.POST("/grant", middleware.AdminRequired(), ctrl.Wallet.Grant)
	}

	settings := r.Group("/settings", authRequired, middleware.AdminRequired())
	{
		settings.GET("", ctrl.Settings.Get)
		settings.PUT("", ctrl.Settings.Update)
	}

	return r
}
