package health

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

type fakeJournal struct {
	pingErr       error
	acquired, max int32
	written       int64
	lastErr       error
}

func (f *fakeJournal) Ping(context.Context) error         { return f.pingErr }
func (f *fakeJournal) PoolUsage() (acquired, limit int32) { return f.acquired, f.max }
func (f *fakeJournal) Written() int64                     { return f.written }
func (f *fakeJournal) LastError() error                   { return f.lastErr }

func TestJournalChecker(t *testing.T) {
	tests := []struct {
		name string
		j    *fakeJournal
		want Status
	}{
		{"正常", &fakeJournal{acquired: 1, max: 10, written: 42}, StatusHealthy},
		{"数据库不可达", &fakeJournal{pingErr: errors.New("refused")}, StatusUnhealthy},
		{"最近写入失败", &fakeJournal{acquired: 1, max: 10, lastErr: errors.New("insert")}, StatusDegraded},
		{"连接池耗尽", &fakeJournal{acquired: 10, max: 10}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewJournalChecker(tt.j).Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("期望%v，实际: %v (%s)", tt.want, r.Status, r.Message)
			}
		})
	}
}

type fakeBus struct {
	pingErr error
}

func (f *fakeBus) Channel() string             { return "dfplayer:events" }
func (f *fakeBus) Ping(context.Context) error  { return f.pingErr }
func (f *fakeBus) PoolStats() *redis.PoolStats { return &redis.PoolStats{TotalConns: 2} }

func TestEventsChecker(t *testing.T) {
	r := NewEventsChecker(&fakeBus{}).Check(context.Background())
	if r.Status != StatusHealthy || r.Details["channel"] != "dfplayer:events" {
		t.Errorf("unexpected result: %+v", r)
	}

	r = NewEventsChecker(&fakeBus{pingErr: errors.New("timeout")}).Check(context.Background())
	if r.Status != StatusDegraded {
		t.Errorf("Redis不可用应降级，实际: %v", r.Status)
	}
}
