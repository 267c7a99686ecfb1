package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfplayer"
)

var (
	// ErrAckTimeout 请求了 ACK 但在超时内未收到（不会重发）
	ErrAckTimeout = errors.New("ack timeout")
	// ErrModuleRejected 模块以错误帧（0x40）回应
	ErrModuleRejected = errors.New("module rejected command")
	// ErrClosed 链路已关闭
	ErrClosed = errors.New("link closed")
)

// Options 链路参数
type Options struct {
	ID     string // 为空时生成 uuid
	Source string // serial | tcp
	Remote string // 串口名或对端地址

	RequestAck       bool
	AckTimeout       time.Duration
	CommandInterval  time.Duration
	StallTimeout     time.Duration
	WriteTimeout     time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration

	Logger  *zap.Logger
	Metrics *metrics.AppMetrics
	Sinks   []Sink

	// OnMessage 每条完整上行消息的回调（在读循环内调用，不可阻塞）
	OnMessage func(linkID string, m dfplayer.Message)
}

// OptionsFromConfig 由播放器配置生成链路参数
func OptionsFromConfig(cfg config.PlayerConfig) Options {
	return Options{
		RequestAck:       cfg.RequestAck,
		AckTimeout:       cfg.AckTimeout,
		CommandInterval:  cfg.CommandInterval,
		StallTimeout:     cfg.StallTimeout,
		BreakerThreshold: cfg.BreakerThreshold,
		BreakerCooldown:  cfg.BreakerCooldown,
	}
}

// Info 链路快照
type Info struct {
	ID            string     `json:"id"`
	Source        string     `json:"source"`
	Remote        string     `json:"remote"`
	ConnectedAt   time.Time  `json:"connected_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Breaker       string     `json:"breaker"`
	BreakerTrips  int64      `json:"breaker_trips"`
	Online        bool       `json:"online"` // 会话超时内收到过消息
}

// Link 一条到 DFPlayer 模块的双向字节流（本地串口或 TCP 透传桥）。
// Run 独占读方向；Send 可并发调用，内部串行化。
type Link struct {
	conn    io.ReadWriteCloser
	opts    Options
	log     *zap.Logger
	adapter *dfplayer.Adapter
	limiter *rate.Limiter
	breaker *Breaker

	connectedAt time.Time
	lastMessage atomic.Int64 // unix nano
	lastByte    time.Time    // 仅读循环访问
	sniffed     bool         // 仅读循环访问

	sendMu sync.Mutex
	ackCh  chan dfplayer.Message

	runCtx    context.Context // 仅读循环访问
	closeOnce sync.Once
	closed    chan struct{}
}

// New 创建链路，调用方需随后启动 Run
func New(conn io.ReadWriteCloser, opts Options) *Link {
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.CommandInterval > 0 {
		limit = rate.Every(opts.CommandInterval)
	}
	l := &Link{
		conn:        conn,
		opts:        opts,
		log:         opts.Logger.With(zap.String("link", opts.ID), zap.String("source", opts.Source)),
		adapter:     dfplayer.NewAdapter(),
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     NewBreaker(opts.BreakerThreshold, opts.BreakerCooldown),
		connectedAt: time.Now(),
		ackCh:       make(chan dfplayer.Message, 1),
		runCtx:      context.Background(),
		closed:      make(chan struct{}),
	}
	l.adapter.SetHooks(l.onResult, l.onParseError, l.onMessage)
	return l
}

// ID 链路标识
func (l *Link) ID() string { return l.opts.ID }

// Adapter 上行协议适配器，可在 Run 之前注册指令处理器
func (l *Link) Adapter() *dfplayer.Adapter { return l.adapter }

// Info 返回链路快照
func (l *Link) Info() Info {
	info := Info{
		ID:           l.opts.ID,
		Source:       l.opts.Source,
		Remote:       l.opts.Remote,
		ConnectedAt:  l.connectedAt,
		Breaker:      l.breaker.State().String(),
		BreakerTrips: l.breaker.Trips(),
	}
	if ns := l.lastMessage.Load(); ns > 0 {
		t := time.Unix(0, ns)
		info.LastMessageAt = &t
	}
	return info
}

// Done 链路关闭后返回的 channel
func (l *Link) Done() <-chan struct{} { return l.closed }

// Close 关闭底层连接（幂等）
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.conn.Close()
	})
	return err
}

// Run 读循环：把收到的字节逐个喂给解析器，直到 ctx 取消或连接关闭。
// 对端正常断开返回 nil。
func (l *Link) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.runCtx = ctx

	go func() {
		select {
		case <-ctx.Done():
		case <-l.closed:
		}
		_ = l.Close()
	}()

	buf := make([]byte, 256)
	for {
		n, err := l.conn.Read(buf)
		if n > 0 {
			l.consume(buf[:n])
		}
		if err != nil {
			if ctx.Err() != nil || l.isClosed() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("link %s read: %w", l.opts.ID, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Link) isClosed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

func (l *Link) consume(p []byte) {
	now := time.Now()
	if l.opts.StallTimeout > 0 && l.adapter.State() != dfplayer.StateAwaitStart && now.Sub(l.lastByte) > l.opts.StallTimeout {
		l.log.Debug("parser stalled, reset", zap.Stringer("state", l.adapter.State()))
		l.adapter.Reset()
		if l.opts.Metrics != nil {
			l.opts.Metrics.ParserStallTotal.Inc()
		}
	}
	l.lastByte = now
	if !l.sniffed {
		l.sniffed = true
		if !l.adapter.Sniff(p) {
			l.log.Warn("first bytes do not look like a DFPlayer frame, check baud rate or wiring",
				zap.Binary("head", p[:min(len(p), 10)]))
		}
	}
	if l.opts.Metrics != nil {
		l.opts.Metrics.BytesReceived.WithLabelValues(l.opts.Source).Add(float64(len(p)))
	}
	if err := l.adapter.ProcessBytes(p); err != nil {
		l.log.Warn("message handler failed", zap.Error(err))
	}
}

func (l *Link) onResult(s dfplayer.Status) {
	if l.opts.Metrics == nil {
		return
	}
	switch s {
	case dfplayer.StatusComplete:
		l.opts.Metrics.ParseTotal.WithLabelValues(ResultOK).Inc()
	case dfplayer.StatusDiscarded:
		l.opts.Metrics.ParseTotal.WithLabelValues("discarded").Inc()
	}
}

func (l *Link) onParseError(err error) {
	result := ResultFraming
	if errors.Is(err, dfplayer.ErrChecksumMismatch) {
		result = ResultChecksum
	}
	if l.opts.Metrics != nil {
		l.opts.Metrics.ParseTotal.WithLabelValues(result).Inc()
	}
	l.log.Debug("parse error", zap.Error(err))
	l.record(parseErrorEvent(l.opts.ID, result, err))
}

func (l *Link) onMessage(m dfplayer.Message) {
	l.lastMessage.Store(time.Now().UnixNano())
	if l.opts.Metrics != nil {
		l.opts.Metrics.MessagesTotal.WithLabelValues(m.Kind.String()).Inc()
	}
	l.log.Debug("message received", zap.Stringer("msg", m))

	if m.Kind == dfplayer.KindAck || m.Kind == dfplayer.KindModuleError {
		select {
		case l.ackCh <- m:
		default:
		}
	}
	l.record(receivedEvent(l.opts.ID, m))
	if l.opts.OnMessage != nil {
		l.opts.OnMessage(l.opts.ID, m)
	}
}

func (l *Link) record(ev Event) {
	for _, s := range l.opts.Sinks {
		if err := s.Record(l.runCtx, ev); err != nil {
			l.log.Warn("record event failed", zap.Error(err))
		}
	}
}

// Send 编码并写出一条命令，返回写出的帧。
// 按 CommandInterval 限速；RequestAck 打开时等待 ACK，超时返回 ErrAckTimeout。
func (l *Link) Send(ctx context.Context, cmd dfplayer.Command) ([]byte, error) {
	l.sendMu.Lock()
	defer l.sendMu.Unlock()

	if l.isClosed() {
		return nil, ErrClosed
	}
	if err := l.breaker.Allow(); err != nil {
		return nil, err
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ack := dfplayer.RequestAckNo
	if l.opts.RequestAck {
		ack = dfplayer.RequestAckYes
		// 丢弃上一条命令遗留的 ACK
		select {
		case <-l.ackCh:
		default:
		}
	}
	frame := dfplayer.Build(cmd, ack)

	if err := l.write(frame); err != nil {
		l.breaker.Record(err)
		l.recordSent(cmd, frame, ResultWriteError, err)
		return frame, fmt.Errorf("link %s write: %w", l.opts.ID, err)
	}
	if l.opts.Metrics != nil {
		name, _ := dfplayer.CommandName(cmd.Code())
		l.opts.Metrics.FramesSent.WithLabelValues(name).Inc()
	}

	if !l.opts.RequestAck {
		l.breaker.Record(nil)
		l.recordSent(cmd, frame, ResultOK, nil)
		return frame, nil
	}

	err := l.waitAck(ctx)
	result := ResultOK
	switch {
	case err == nil:
	case errors.Is(err, ErrAckTimeout):
		result = ResultAckTimeout
		if l.opts.Metrics != nil {
			l.opts.Metrics.AckTimeoutTotal.Inc()
		}
	case errors.Is(err, ErrModuleRejected):
		result = ResultRejected
	case errors.Is(err, ErrClosed):
		result = ResultClosed
	default:
		// ctx 取消：帧已写出但结果未知，不计成败
		l.breaker.Abandon()
		l.recordSent(cmd, frame, ResultCancelled, err)
		return frame, err
	}
	l.breaker.Record(err)
	l.recordSent(cmd, frame, result, err)
	return frame, err
}

func (l *Link) write(frame []byte) error {
	if l.opts.WriteTimeout > 0 {
		if dc, ok := l.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
			_ = dc.SetWriteDeadline(time.Now().Add(l.opts.WriteTimeout))
			defer func() { _ = dc.SetWriteDeadline(time.Time{}) }()
		}
	}
	_, err := l.conn.Write(frame)
	return err
}

func (l *Link) waitAck(ctx context.Context) error {
	timer := time.NewTimer(l.opts.AckTimeout)
	defer timer.Stop()
	select {
	case m := <-l.ackCh:
		if m.Kind == dfplayer.KindModuleError {
			return fmt.Errorf("%w: %s", ErrModuleRejected, m)
		}
		return nil
	case <-timer.C:
		return ErrAckTimeout
	case <-l.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Link) recordSent(cmd dfplayer.Command, frame []byte, result string, err error) {
	ev := sentEvent(l.opts.ID, cmd, frame, result, err)
	for _, s := range l.opts.Sinks {
		if rerr := s.Record(context.Background(), ev); rerr != nil {
			l.log.Warn("record event failed", zap.Error(rerr))
		}
	}
}
