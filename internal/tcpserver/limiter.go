package tcpserver

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ConnectionLimiter 并发连接上限（信号量），接入循环中非阻塞获取
type ConnectionLimiter struct {
	sem      chan struct{}
	active   atomic.Int64
	rejected atomic.Int64
}

// NewConnectionLimiter maxConn <= 0 时默认 64（透传桥数量通常很少）
func NewConnectionLimiter(maxConn int) *ConnectionLimiter {
	if maxConn <= 0 {
		maxConn = 64
	}
	return &ConnectionLimiter{sem: make(chan struct{}, maxConn)}
}

// TryAcquire 获取许可，已满时立即返回 false
func (l *ConnectionLimiter) TryAcquire() bool {
	select {
	case l.sem <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		l.rejected.Add(1)
		return false
	}
}

// Release 释放许可
func (l *ConnectionLimiter) Release() {
	select {
	case <-l.sem:
		l.active.Add(-1)
	default:
	}
}

// Current 当前活跃连接数
func (l *ConnectionLimiter) Current() int { return int(l.active.Load()) }

// Max 最大连接数
func (l *ConnectionLimiter) Max() int { return cap(l.sem) }

// Rejected 累计拒绝数
func (l *ConnectionLimiter) Rejected() int64 { return l.rejected.Load() }

// AcceptRateLimiter 接入速率限制（令牌桶）
type AcceptRateLimiter struct {
	limiter  *rate.Limiter
	rejected atomic.Int64
}

// NewAcceptRateLimiter ratePerSec <= 0 表示不限速；burst <= 0 时取 2 倍速率
func NewAcceptRateLimiter(ratePerSec, burst int) *AcceptRateLimiter {
	if ratePerSec <= 0 {
		return &AcceptRateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	if burst <= 0 {
		burst = ratePerSec * 2
	}
	return &AcceptRateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Allow 非阻塞检查
func (l *AcceptRateLimiter) Allow() bool {
	if l.limiter.Allow() {
		return true
	}
	l.rejected.Add(1)
	return false
}

// Rejected 累计拒绝数
func (l *AcceptRateLimiter) Rejected() int64 { return l.rejected.Load() }
