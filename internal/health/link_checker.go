package health

import (
	"context"
	"time"

	"github.com/taoyao-code/dfplayer-server/internal/link"
)

// LinkChecker 链路检查：无在线链路或有熔断中的链路时降级
type LinkChecker struct {
	list func() []link.Info
}

func NewLinkChecker(list func() []link.Info) *LinkChecker {
	return &LinkChecker{list: list}
}

func (c *LinkChecker) Name() string { return "links" }

func (c *LinkChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	infos := c.list()
	var open []string
	active := 0
	for _, in := range infos {
		if in.Breaker == "open" {
			open = append(open, in.ID)
		}
		if in.Online {
			active++
		}
	}

	status, message := StatusHealthy, "ok"
	switch {
	case len(infos) == 0:
		status, message = StatusDegraded, "no peripheral connected"
	case len(open) > 0:
		status, message = StatusDegraded, "circuit breaker open"
	}
	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"connected":    len(infos),
			"active":       active,
			"breaker_open": open,
		},
		Latency: time.Since(start),
	}
}
