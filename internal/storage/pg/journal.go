package pg

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/storage/models"
)

// OpenGorm 在 pgx 连接池之上打开 GORM（共用同一个池）
func OpenGorm(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}

// Journal 帧日志，实现 link.Sink
type Journal struct {
	db   *gorm.DB
	pool *pgxpool.Pool

	written atomic.Int64
	mu      sync.Mutex
	lastErr error // 最近一次写入的错误，成功写入后清空
}

// NewJournal db 应由 OpenGorm(pool) 打开
func NewJournal(db *gorm.DB, pool *pgxpool.Pool) *Journal { return &Journal{db: db, pool: pool} }

// Ping 探活
func (j *Journal) Ping(ctx context.Context) error { return j.pool.Ping(ctx) }

// PoolUsage 连接池已占用/上限
func (j *Journal) PoolUsage() (acquired, limit int32) {
	st := j.pool.Stat()
	return st.AcquiredConns(), st.MaxConns()
}

// Written 累计写入行数
func (j *Journal) Written() int64 { return j.written.Load() }

// LastError 最近一次写入错误
func (j *Journal) LastError() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastErr
}

// Migrate 建表
func (j *Journal) Migrate(ctx context.Context) error {
	return j.db.WithContext(ctx).AutoMigrate(&models.FrameLog{})
}

// Record 写入一条帧日志
func (j *Journal) Record(ctx context.Context, ev link.Event) error {
	row := toFrameLog(ev)
	err := j.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		err = fmt.Errorf("insert frame log: %w", err)
	} else {
		j.written.Add(1)
	}
	j.mu.Lock()
	j.lastErr = err
	j.mu.Unlock()
	return err
}

// Recent 返回某条链路最近 limit 条帧日志（新的在前）；linkID 为空时不过滤
func (j *Journal) Recent(ctx context.Context, linkID string, limit int) ([]models.FrameLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := j.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
	if linkID != "" {
		q = q.Where("link_id = ?", linkID)
	}
	var rows []models.FrameLog
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func toFrameLog(ev link.Event) models.FrameLog {
	row := models.FrameLog{
		LinkID:    ev.LinkID,
		Direction: string(ev.Direction),
		Code:      int16(ev.Code),
		Name:      ev.Name,
		Param:     int32(ev.Param),
		Feedback:  ev.Feedback,
		Result:    ev.Result,
		CreatedAt: ev.At,
	}
	if ev.Error != "" {
		e := ev.Error
		row.Error = &e
	}
	if ev.Frame != "" {
		if b, err := hex.DecodeString(ev.Frame); err == nil {
			row.Frame = b
		}
	}
	return row
}
