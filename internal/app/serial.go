package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	serialport "github.com/taoyao-code/dfplayer-server/internal/transport/serial"
)

// RunSerial 驱动本地串口链路，端口打开失败或掉线后按退避重连，直到 ctx 取消
func RunSerial(ctx context.Context, cfg cfgpkg.SerialConfig, runner *LinkRunner, log *zap.Logger) {
	backoff := time.Second
	for {
		port, err := serialport.Open(cfg)
		if err != nil {
			log.Warn("serial open failed", zap.String("port", cfg.Port), zap.Duration("retry_in", backoff), zap.Error(err))
		} else {
			backoff = time.Second
			if err := runner.Serve(ctx, port, "serial", cfg.Port); err != nil {
				log.Warn("serial link lost", zap.String("port", cfg.Port), zap.Error(err))
			}
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
