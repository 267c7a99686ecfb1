package app

import (
	"context"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	redisstorage "github.com/taoyao-code/dfplayer-server/internal/storage/redis"
)

// OpenEvents 连接 Redis 事件发布，未启用时返回 nil
func OpenEvents(ctx context.Context, cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.EventPublisher, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, link events are not published")
		return nil, nil
	}
	p, err := redisstorage.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("redis event publisher ready",
		zap.String("addr", cfg.Addr),
		zap.String("channel", p.Channel()),
		zap.Int("keep", cfg.RecentEvents))
	return p, nil
}
