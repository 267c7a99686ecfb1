package session

import (
	"sort"
	"sync"
	"time"
)

// Manager 在线链路表：id -> 连接对象，并记录最近一次收到完整消息的时间
type Manager[T any] struct {
	mu       sync.RWMutex
	lastSeen map[string]time.Time
	timeout  time.Duration
	conns    map[string]T
	onChange func(count int)
}

func New[T any](timeout time.Duration) *Manager[T] {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Manager[T]{lastSeen: make(map[string]time.Time), timeout: timeout, conns: make(map[string]T)}
}

// OnChange 绑定数量变化时回调（用于在线数指标）
func (m *Manager[T]) OnChange(fn func(count int)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// OnSeen 更新最近活跃时间
func (m *Manager[T]) OnSeen(id string, t time.Time) {
	m.mu.Lock()
	m.lastSeen[id] = t
	m.mu.Unlock()
}

// Bind 绑定 id 到连接对象，重复绑定将覆盖
func (m *Manager[T]) Bind(id string, conn T) {
	m.mu.Lock()
	m.conns[id] = conn
	n, fn := len(m.conns), m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Unbind 解除绑定
func (m *Manager[T]) Unbind(id string) {
	m.mu.Lock()
	delete(m.conns, id)
	delete(m.lastSeen, id)
	n, fn := len(m.conns), m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// Get 返回绑定的连接对象
func (m *Manager[T]) Get(id string) (T, bool) {
	m.mu.RLock()
	c, ok := m.conns[id]
	m.mu.RUnlock()
	return c, ok
}

// List 按 id 排序返回全部连接对象
func (m *Manager[T]) List() []T {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.conns[id])
	}
	m.mu.RUnlock()
	return out
}

// Count 当前绑定数量
func (m *Manager[T]) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// IsOnline 判断最近 timeout 内是否有活跃
func (m *Manager[T]) IsOnline(id string, now time.Time) bool {
	m.mu.RLock()
	ts, ok := m.lastSeen[id]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return now.Sub(ts) <= m.timeout
}

// OnlineCount 返回活跃数量
func (m *Manager[T]) OnlineCount(now time.Time) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, ts := range m.lastSeen {
		if now.Sub(ts) <= m.timeout {
			count++
		}
	}
	return count
}
