package app

import (
	"context"
	"net"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/tcpserver"
)

// NewTCPServer 创建透传桥 TCP 服务，每条连接交给 runner 驱动
func NewTCPServer(cfg cfgpkg.TCPConfig, runner *LinkRunner, appm *metrics.AppMetrics, log *zap.Logger) *tcpserver.Server {
	runner.SetWriteTimeout("tcp", cfg.WriteTimeout)
	srv := tcpserver.New(cfg, log, appm)
	srv.SetHandler(func(ctx context.Context, c net.Conn) {
		if err := runner.Serve(ctx, c, "tcp", c.RemoteAddr().String()); err != nil {
			log.Warn("tcp link ended with error", zap.String("remote", c.RemoteAddr().String()), zap.Error(err))
		}
	})
	return srv
}
