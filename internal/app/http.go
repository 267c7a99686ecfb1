package app

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/api"
	"github.com/taoyao-code/dfplayer-server/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/health"
	"github.com/taoyao-code/dfplayer-server/internal/httpserver"
)

// NewHTTPServer 创建 HTTP 服务：健康检查、指标与 /api/v1
func NewHTTPServer(cfg *cfgpkg.Config, metricsHandler http.Handler, agg *health.Aggregator, h *api.LinkHandler, log *zap.Logger) *httpserver.Server {
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	readyFn := func() bool { return agg.Ready(context.Background()) }
	return httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, readyFn, func(r *gin.Engine) {
		authCfg := middleware.AuthConfig{APIKeys: cfg.API.APIKeys, Enabled: cfg.API.AuthEnabled}
		api.RegisterRoutes(r, h, authCfg, log)
		health.RegisterHTTPRoutes(r, agg)
	})
}
