package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/api/middleware"
)

// RegisterRoutes 注册 /api/v1 路由
func RegisterRoutes(r *gin.Engine, h *LinkHandler, authCfg middleware.AuthConfig, logger *zap.Logger) {
	if r == nil || h == nil {
		return
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequestTracing(logger))
	if authCfg.Enabled {
		v1.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	v1.GET("/commands", h.ListCommands)
	v1.GET("/links", h.ListLinks)
	v1.POST("/links/:id/commands", h.SendCommand)
	v1.GET("/links/:id/frames", h.ListFrames)
	v1.GET("/links/:id/events", h.ListEvents)
	v1.GET("/events/stream", h.StreamEvents)
}
