package health

import (
	"context"
	"fmt"
	"time"
)

// ConnCounter 提供连接数统计（*tcpserver.Server）
type ConnCounter interface {
	ActiveConnections() int
	MaxConnections() int
	RejectedConnections() int64
}

// TCPChecker 透传桥接入检查
type TCPChecker struct {
	server ConnCounter
}

func NewTCPChecker(server ConnCounter) *TCPChecker {
	return &TCPChecker{server: server}
}

func (c *TCPChecker) Name() string { return "tcp" }

func (c *TCPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	active, maxConns := c.server.ActiveConnections(), c.server.MaxConnections()
	utilization := 0.0
	if maxConns > 0 {
		utilization = float64(active) / float64(maxConns)
	}
	status, message := utilizationStatus(utilization, 0.8, 1.0)
	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"active_connections": active,
			"max_connections":    maxConns,
			"rejected_total":     c.server.RejectedConnections(),
			"utilization":        fmt.Sprintf("%.1f%%", utilization*100),
		},
		Latency: time.Since(start),
	}
}
