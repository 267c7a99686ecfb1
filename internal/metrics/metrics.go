package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPRejected      prometheus.Counter
	BytesReceived    *prometheus.CounterVec // labels: source=serial|tcp
	FramesSent       *prometheus.CounterVec // labels: cmd
	ParseTotal       *prometheus.CounterVec // labels: result=ok|discarded|checksum|framing
	MessagesTotal    *prometheus.CounterVec // labels: kind
	AckTimeoutTotal  prometheus.Counter
	ParserStallTotal prometheus.Counter
	OnlineLinks      prometheus.Gauge // 当前在线链路数
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted bridge TCP connections.",
		}),
		TCPRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_reject_total",
			Help: "Bridge TCP connections rejected by rate or connection limits.",
		}),
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dfplayer_bytes_received_total",
			Help: "Total bytes received from peripherals.",
		}, []string{"source"}),
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dfplayer_frames_sent_total",
			Help: "Frames written to peripherals by command.",
		}, []string{"cmd"}),
		ParseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dfplayer_parse_total",
			Help: "Parser outcomes (complete frames, discarded bytes and errors).",
		}, []string{"result"}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dfplayer_messages_total",
			Help: "Decoded messages by kind.",
		}, []string{"kind"}),
		AckTimeoutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dfplayer_ack_timeout_total",
			Help: "Commands whose ACK did not arrive in time.",
		}),
		ParserStallTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dfplayer_parser_stall_reset_total",
			Help: "Parser resets caused by a stalled partial frame.",
		}),
		OnlineLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dfplayer_online_links",
			Help: "Current number of connected peripheral links.",
		}),
	}
	reg.MustRegister(m.TCPAccepted, m.TCPRejected, m.BytesReceived, m.FramesSent, m.ParseTotal,
		m.MessagesTotal, m.AckTimeoutTotal, m.ParserStallTotal, m.OnlineLinks)
	return m
}
