package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventBus 事件发布通道（*redis.EventPublisher）
type EventBus interface {
	Channel() string
	Ping(ctx context.Context) error
	PoolStats() *redis.PoolStats
}

// EventsChecker 事件发布检查。Redis 只承载旁路事件，不可用时降级而非不健康
type EventsChecker struct {
	bus EventBus
}

func NewEventsChecker(bus EventBus) *EventsChecker {
	return &EventsChecker{bus: bus}
}

func (c *EventsChecker) Name() string { return "events" }

func (c *EventsChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]interface{}{"channel": c.bus.Channel()}
	if err := c.bus.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("events not published: %v", err),
			Details: details,
			Latency: time.Since(start),
		}
	}
	if st := c.bus.PoolStats(); st != nil {
		details["pool_conns"] = st.TotalConns
		details["pool_timeouts"] = st.Timeouts
	}
	return CheckResult{Status: StatusHealthy, Message: "ok", Details: details, Latency: time.Since(start)}
}
