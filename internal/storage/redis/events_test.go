package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/link"
)

// 注意: 集成测试需要Redis服务器运行（TEST_REDIS_ADDR），否则跳过

func setupPublisher(t *testing.T, channel string, keep int) *EventPublisher {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("需要Redis服务器，跳过测试")
	}
	p, err := Open(context.Background(), cfgpkg.RedisConfig{
		Enabled:       true,
		Addr:          addr,
		DialTimeout:   time.Second,
		EventsChannel: channel,
		RecentEvents:  keep,
	})
	if err != nil {
		t.Skipf("Redis不可用: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestOpen_Disabled(t *testing.T) {
	_, err := Open(context.Background(), cfgpkg.RedisConfig{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestNewEventPublisher_DefaultChannel(t *testing.T) {
	p := NewEventPublisher(nil, "", 0)
	assert.Equal(t, "dfplayer:events", p.Channel())
}

func TestRecentKey(t *testing.T) {
	assert.Equal(t, "dfplayer:recent:abc", recentKey("abc"))
}

func TestEventPublisher_RecordRecent(t *testing.T) {
	p := setupPublisher(t, "dfplayer:test:events", 2)
	ctx := context.Background()
	require.NoError(t, p.Ping(ctx))
	linkID := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = p.Forget(ctx, linkID) })

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := p.Subscribe(subCtx)
	time.Sleep(50 * time.Millisecond)

	for i := 1; i <= 3; i++ {
		require.NoError(t, p.Record(ctx, link.Event{LinkID: linkID, Name: "track", Param: uint16(i), Result: link.ResultOK}))
	}

	recent, err := p.Recent(ctx, linkID, 0)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, uint16(3), recent[0].Param)
	assert.Equal(t, uint16(2), recent[1].Param)

	select {
	case ev := <-events:
		assert.Equal(t, linkID, ev.LinkID)
	case <-time.After(2 * time.Second):
		t.Fatal("订阅未收到事件")
	}

	require.NoError(t, p.Forget(ctx, linkID))
	recent, err = p.Recent(ctx, linkID, 0)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
