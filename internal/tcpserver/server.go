package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/metrics"
)

// ConnHandler 处理一条透传连接，返回后连接被关闭。ctx 在 Shutdown 时取消。
type ConnHandler func(ctx context.Context, c net.Conn)

// Server 串口透传桥（ser2net 等）接入的 TCP 服务
type Server struct {
	cfg     cfgpkg.TCPConfig
	ln      net.Listener
	wg      sync.WaitGroup
	stopC   chan struct{}
	handler ConnHandler
	log     *zap.Logger
	m       *metrics.AppMetrics

	conns  *ConnectionLimiter
	accept *AcceptRateLimiter

	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建 TCP 服务；log、m 可为 nil
func New(cfg cfgpkg.TCPConfig, log *zap.Logger, m *metrics.AppMetrics) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		stopC:  make(chan struct{}),
		log:    log,
		m:      m,
		conns:  NewConnectionLimiter(cfg.MaxConnections),
		accept: NewAcceptRateLimiter(cfg.AcceptRate, cfg.AcceptBurst),
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetHandler 设置连接处理回调
func (s *Server) SetHandler(h ConnHandler) { s.handler = h }

// Addr 实际监听地址（Start 之后有效）
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				select {
				case <-s.stopC:
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				// 短暂错误等待后重试
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if !s.accept.Allow() || !s.conns.TryAcquire() {
				s.log.Warn("tcp connection rejected", zap.String("remote", conn.RemoteAddr().String()))
				if s.m != nil {
					s.m.TCPRejected.Inc()
				}
				_ = conn.Close()
				continue
			}
			if s.m != nil {
				s.m.TCPAccepted.Inc()
			}

			s.wg.Add(1)
			go s.serve(conn)
		}
	}()
	return nil
}

func (s *Server) serve(c net.Conn) {
	defer s.wg.Done()
	defer s.conns.Release()
	defer c.Close()

	// 模块可能长时间静默，用 keepalive 发现断线而不是读超时
	if tc, ok := c.(*net.TCPConn); ok && s.cfg.ReadTimeout > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(s.cfg.ReadTimeout)
	}
	s.log.Info("tcp connection accepted", zap.String("remote", c.RemoteAddr().String()))
	if s.handler != nil {
		s.handler(s.ctx, c)
	}
	s.log.Info("tcp connection closed", zap.String("remote", c.RemoteAddr().String()))
}

// Shutdown 优雅关闭监听并等待连接退出
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.stopC)
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// ActiveConnections 当前连接数
func (s *Server) ActiveConnections() int { return s.conns.Current() }

// MaxConnections 连接上限
func (s *Server) MaxConnections() int { return s.conns.Max() }

// RejectedConnections 因连接数或接入速率被拒绝的累计数
func (s *Server) RejectedConnections() int64 { return s.conns.Rejected() + s.accept.Rejected() }
