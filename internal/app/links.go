package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfplayer"
	"github.com/taoyao-code/dfplayer-server/internal/script"
	"github.com/taoyao-code/dfplayer-server/internal/session"
)

// LinkRunner 把一条字节流（串口或 TCP 连接）接入为链路：登记、执行启动脚本、跑读循环、注销
type LinkRunner struct {
	base    link.Options
	reg     *session.Manager[*link.Link]
	startup []script.Step
	log     *zap.Logger

	writeTimeouts map[string]time.Duration // 按来源
	onOffline     []func(linkID string)
}

// NewLinkRunner 加载启动脚本（若配置）并准备链路参数
func NewLinkRunner(cfg cfgpkg.PlayerConfig, reg *session.Manager[*link.Link], sinks []link.Sink, appm *metrics.AppMetrics, log *zap.Logger) (*LinkRunner, error) {
	base := link.OptionsFromConfig(cfg)
	base.Logger = log
	base.Metrics = appm
	base.Sinks = sinks

	r := &LinkRunner{base: base, reg: reg, log: log, writeTimeouts: make(map[string]time.Duration)}
	if cfg.StartupScript != "" {
		sc, err := script.Load(cfg.StartupScript)
		if err != nil {
			return nil, fmt.Errorf("load startup script: %w", err)
		}
		r.startup = sc.Steps
		log.Info("startup script loaded", zap.String("path", cfg.StartupScript), zap.Int("steps", len(sc.Steps)))
	}
	return r, nil
}

// SetWriteTimeout 设置某一来源链路的写超时，需在 Serve 之前调用
func (r *LinkRunner) SetWriteTimeout(source string, d time.Duration) {
	r.writeTimeouts[source] = d
}

// OnOffline 注册链路下线回调（在 Serve 返回前调用），需在 Serve 之前注册
func (r *LinkRunner) OnOffline(fn func(linkID string)) {
	r.onOffline = append(r.onOffline, fn)
}

// registerHandlers 模块主动上报的异常类消息
func (r *LinkRunner) registerHandlers(l *link.Link) {
	id := l.ID()
	a := l.Adapter()
	a.Register(dfplayer.CodeModuleError, func(m dfplayer.Message) error {
		e, _ := m.ModuleError()
		r.log.Warn("module error reported", zap.String("link", id), zap.Stringer("error", e))
		return nil
	})
	a.Register(dfplayer.CodeDiskRemoved, func(m dfplayer.Message) error {
		d, _ := m.Disk()
		r.log.Warn("storage device removed", zap.String("link", id), zap.Stringer("disk", d))
		return nil
	})
	a.Register(dfplayer.CodeDiskInserted, func(m dfplayer.Message) error {
		d, _ := m.Disk()
		r.log.Info("storage device inserted", zap.String("link", id), zap.Stringer("disk", d))
		return nil
	})
	// 码表外的命令码：固件版本差异，记录后忽略
	a.SetFallback(func(m dfplayer.Message) error {
		if m.Kind == dfplayer.KindUnknown {
			r.log.Info("unknown command from module", zap.String("link", id), zap.Stringer("message", m))
		}
		return nil
	})
}

// Serve 阻塞直到链路断开或 ctx 取消
func (r *LinkRunner) Serve(ctx context.Context, conn io.ReadWriteCloser, source, remote string) error {
	opts := r.base
	opts.Source = source
	opts.Remote = remote
	opts.WriteTimeout = r.writeTimeouts[source]
	opts.OnMessage = func(id string, _ dfplayer.Message) {
		r.reg.OnSeen(id, time.Now())
	}
	l := link.New(conn, opts)
	defer l.Close()
	r.registerHandlers(l)

	r.reg.Bind(l.ID(), l)
	defer func() {
		r.reg.Unbind(l.ID())
		for _, fn := range r.onOffline {
			fn(l.ID())
		}
	}()
	r.log.Info("link online", zap.String("link", l.ID()), zap.String("source", source), zap.String("remote", remote))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if len(r.startup) > 0 {
		go func() {
			err := script.Run(ctx, l, r.startup, func(st script.Step, _ []byte, err error) {
				if err != nil {
					r.log.Warn("startup step failed", zap.String("link", l.ID()), zap.String("command", st.Command), zap.Error(err))
				}
			})
			if err != nil && ctx.Err() == nil {
				r.log.Warn("startup script aborted", zap.String("link", l.ID()), zap.Error(err))
			}
		}()
	}

	err := l.Run(ctx)
	r.log.Info("link offline", zap.String("link", l.ID()), zap.Error(err))
	return err
}
