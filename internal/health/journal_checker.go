package health

import (
	"context"
	"fmt"
	"time"
)

// JournalStats 帧日志状态（*pg.Journal）
type JournalStats interface {
	Ping(ctx context.Context) error
	PoolUsage() (acquired, limit int32)
	Written() int64
	LastError() error
}

// JournalChecker 帧日志检查：库不可达为不健康；最近一次写入失败或连接池将满为降级
type JournalChecker struct {
	j JournalStats
}

func NewJournalChecker(j JournalStats) *JournalChecker {
	return &JournalChecker{j: j}
}

func (c *JournalChecker) Name() string { return "journal" }

func (c *JournalChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.j.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("database unreachable: %v", err),
			Latency: time.Since(start),
		}
	}

	acquired, maxConns := c.j.PoolUsage()
	utilization := 0.0
	if maxConns > 0 {
		utilization = float64(acquired) / float64(maxConns)
	}
	status, message := utilizationStatus(utilization, 0.9, 1.0)
	details := map[string]interface{}{
		"frames_written":   c.j.Written(),
		"pool_utilization": fmt.Sprintf("%.1f%%", utilization*100),
	}
	if err := c.j.LastError(); err != nil {
		details["last_error"] = err.Error()
		if status == StatusHealthy {
			status, message = StatusDegraded, "last write failed"
		}
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
