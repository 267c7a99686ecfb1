package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	pgstorage "github.com/taoyao-code/dfplayer-server/internal/storage/pg"
)

// ConnectJournal 建立数据库连接、打开帧日志并按需建表
func ConnectJournal(ctx context.Context, cfg cfgpkg.DatabaseConfig, log *zap.Logger) (*pgxpool.Pool, *pgstorage.Journal, error) {
	dbpool, err := pgstorage.NewPool(ctx, cfg, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, nil, err
	}
	db, err := pgstorage.OpenGorm(dbpool)
	if err != nil {
		dbpool.Close()
		return nil, nil, err
	}
	journal := pgstorage.NewJournal(db, dbpool)
	if cfg.AutoMigrate {
		if err := journal.Migrate(ctx); err != nil {
			log.Error("db migrate error", zap.Error(err))
			dbpool.Close()
			return nil, nil, err
		}
		log.Info("frame_log table migrated")
	}
	return dbpool, journal, nil
}
