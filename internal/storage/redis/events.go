package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/link"
)

const recentKeyPrefix = "dfplayer:recent:"

// ErrDisabled 配置未启用 Redis
var ErrDisabled = errors.New("redis is not enabled")

// EventPublisher 把链路事件发布到 Redis 频道，并为每条链路保留最近 N 条，实现 link.Sink
type EventPublisher struct {
	rdb     *redis.Client
	channel string
	keep    int64
}

// Open 按配置连接 Redis 并返回事件发布器，连接探活失败时返回错误
func Open(ctx context.Context, cfg cfgpkg.RedisConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewEventPublisher(rdb, cfg.EventsChannel, cfg.RecentEvents), nil
}

// NewEventPublisher keep <= 0 时只发布不保留
func NewEventPublisher(rdb *redis.Client, channel string, keep int) *EventPublisher {
	if channel == "" {
		channel = "dfplayer:events"
	}
	return &EventPublisher{rdb: rdb, channel: channel, keep: int64(keep)}
}

// Channel 发布频道
func (p *EventPublisher) Channel() string { return p.channel }

// Ping 探活
func (p *EventPublisher) Ping(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

// PoolStats 连接池统计
func (p *EventPublisher) PoolStats() *redis.PoolStats { return p.rdb.PoolStats() }

// Close 关闭连接
func (p *EventPublisher) Close() error { return p.rdb.Close() }

func recentKey(linkID string) string { return recentKeyPrefix + linkID }

// Record 发布事件
func (p *EventPublisher) Record(ctx context.Context, ev link.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pipe := p.rdb.Pipeline()
	pipe.Publish(ctx, p.channel, b)
	if p.keep > 0 {
		key := recentKey(ev.LinkID)
		pipe.LPush(ctx, key, b)
		pipe.LTrim(ctx, key, 0, p.keep-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Recent 返回链路最近 n 条事件（新的在前）
func (p *EventPublisher) Recent(ctx context.Context, linkID string, n int) ([]link.Event, error) {
	if n <= 0 {
		n = int(p.keep)
	}
	vals, err := p.rdb.LRange(ctx, recentKey(linkID), 0, int64(n)-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]link.Event, 0, len(vals))
	for _, v := range vals {
		var ev link.Event
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Subscribe 订阅事件频道，ctx 结束时关闭
func (p *EventPublisher) Subscribe(ctx context.Context) <-chan link.Event {
	sub := p.rdb.Subscribe(ctx, p.channel)
	out := make(chan link.Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev link.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Forget 删除链路保留的事件
func (p *EventPublisher) Forget(ctx context.Context, linkID string) error {
	return p.rdb.Del(ctx, recentKey(linkID)).Err()
}
