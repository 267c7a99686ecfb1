package app

import (
	"time"

	"github.com/taoyao-code/dfplayer-server/internal/health"
	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/session"
	pgstorage "github.com/taoyao-code/dfplayer-server/internal/storage/pg"
	redisstorage "github.com/taoyao-code/dfplayer-server/internal/storage/redis"
	"github.com/taoyao-code/dfplayer-server/internal/tcpserver"
)

// NewHealthAggregator 创建健康检查聚合器；journal、events、tcpSrv 可为 nil
func NewHealthAggregator(reg *session.Manager[*link.Link], journal *pgstorage.Journal, events *redisstorage.EventPublisher, tcpSrv *tcpserver.Server) *health.Aggregator {
	agg := health.NewAggregator(health.NewLinkChecker(func() []link.Info { return LinkInfos(reg, time.Now()) }))
	if journal != nil {
		agg.AddChecker(health.NewJournalChecker(journal))
	}
	if events != nil {
		agg.AddChecker(health.NewEventsChecker(events))
	}
	if tcpSrv != nil {
		agg.AddChecker(health.NewTCPChecker(tcpSrv))
	}
	return agg
}
