package app

import (
	"time"

	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/session"
)

// NewLinkRegistry 在线链路表，数量变化同步到在线链路指标
func NewLinkRegistry(timeout time.Duration, appm *metrics.AppMetrics) *session.Manager[*link.Link] {
	reg := session.New[*link.Link](timeout)
	if appm != nil {
		reg.OnChange(func(n int) { appm.OnlineLinks.Set(float64(n)) })
	}
	return reg
}

// LinkInfos 链路快照列表，Online 表示会话超时内收到过上行消息
func LinkInfos(reg *session.Manager[*link.Link], now time.Time) []link.Info {
	links := reg.List()
	out := make([]link.Info, 0, len(links))
	for _, l := range links {
		info := l.Info()
		info.Online = reg.IsOnline(info.ID, now)
		out = append(out, info)
	}
	return out
}
