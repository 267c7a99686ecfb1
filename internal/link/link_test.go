package link

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taoyao-code/dfplayer-server/internal/metrics"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfplayer"
)

type memSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *memSink) Record(_ context.Context, ev Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *memSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// upFrame 构造模块上行帧
func upFrame(code byte, param uint16) []byte {
	f := []byte{0x7E, 0xFF, 0x06, code, 0x00, byte(param >> 8), byte(param), 0, 0, 0xEF}
	sum := dfplayer.Checksum(f[1:7])
	f[7], f[8] = byte(sum>>8), byte(sum)
	return f
}

func startLink(t *testing.T, opts Options) (*Link, net.Conn, <-chan error) {
	t.Helper()
	a, b := net.Pipe()
	l := New(a, opts)
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	t.Cleanup(func() {
		_ = b.Close()
		_ = l.Close()
	})
	return l, b, done
}

func readFrame(peer net.Conn) ([]byte, error) {
	buf := make([]byte, dfplayer.FrameSize)
	_ = peer.SetReadDeadline(time.Now().Add(time.Second))
	_, err := io.ReadFull(peer, buf)
	return buf, err
}

func TestLink_SendWithoutAck(t *testing.T) {
	sink := &memSink{}
	l, peer, _ := startLink(t, Options{ID: "l1", Source: "tcp", Sinks: []Sink{sink}})

	got := make(chan []byte, 1)
	go func() {
		f, _ := readFrame(peer)
		got <- f
	}()

	frame, err := l.Send(context.Background(), dfplayer.Track(1))
	require.NoError(t, err)
	want := []byte{0x7E, 0xFF, 0x06, 0x03, 0x00, 0x00, 0x01, 0xFE, 0xF7, 0xEF}
	assert.Equal(t, want, frame)
	assert.Equal(t, want, <-got)

	evs := sink.snapshot()
	require.Len(t, evs, 1)
	assert.Equal(t, DirectionDown, evs[0].Direction)
	assert.Equal(t, "track", evs[0].Name)
	assert.Equal(t, ResultOK, evs[0].Result)
	assert.Equal(t, "7eff0603000001fef7ef", evs[0].Frame)
}

func TestLink_SendWaitsForAck(t *testing.T) {
	l, peer, _ := startLink(t, Options{ID: "l2", RequestAck: true, AckTimeout: time.Second})

	go func() {
		f, err := readFrame(peer)
		if err != nil || f[4] != 0x01 {
			return
		}
		_, _ = peer.Write(upFrame(0x41, 0))
	}()

	frame, err := l.Send(context.Background(), dfplayer.SetVolume(20))
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), frame[4])
	assert.Equal(t, "closed", l.Info().Breaker)
	assert.NotNil(t, l.Info().LastMessageAt)
}

func TestLink_ModuleErrorReply(t *testing.T) {
	sink := &memSink{}
	l, peer, _ := startLink(t, Options{RequestAck: true, AckTimeout: time.Second, Sinks: []Sink{sink}})

	go func() {
		if _, err := readFrame(peer); err != nil {
			return
		}
		_, _ = peer.Write(upFrame(0x40, 0x04)) // checksum error
	}()

	_, err := l.Send(context.Background(), dfplayer.Next())
	assert.ErrorIs(t, err, ErrModuleRejected)

	// 下行记录标为模块拒绝（上行的 0x40 消息另有一条）
	var down []Event
	for _, ev := range sink.snapshot() {
		if ev.Direction == DirectionDown {
			down = append(down, ev)
		}
	}
	require.Len(t, down, 1)
	assert.Equal(t, ResultRejected, down[0].Result)
	assert.NotEmpty(t, down[0].Error)
}

func TestLink_CancelledHalfOpenSendReopensBreaker(t *testing.T) {
	sink := &memSink{}
	l, peer, _ := startLink(t, Options{
		RequestAck:       true,
		AckTimeout:       100 * time.Millisecond,
		BreakerThreshold: 1,
		BreakerCooldown:  10 * time.Millisecond,
		Sinks:            []Sink{sink},
	})
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := peer.Read(buf); err != nil {
				return
			}
		}
	}()

	_, err := l.Send(context.Background(), dfplayer.Pause())
	require.ErrorIs(t, err, ErrAckTimeout)
	assert.Equal(t, "open", l.Info().Breaker)
	time.Sleep(20 * time.Millisecond)

	// 冷却后的试探在等待 ACK 时被调用方取消
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Send(ctx, dfplayer.Pause())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "open", l.Info().Breaker)
	assert.Equal(t, int64(1), l.Info().BreakerTrips)

	evs := sink.snapshot()
	require.Len(t, evs, 2)
	assert.Equal(t, ResultAckTimeout, evs[0].Result)
	assert.Equal(t, ResultCancelled, evs[1].Result)
}

func TestLink_AckTimeoutAndBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAppMetrics(reg)
	sink := &memSink{}
	l, peer, _ := startLink(t, Options{
		RequestAck:       true,
		AckTimeout:       30 * time.Millisecond,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Hour,
		Metrics:          m,
		Sinks:            []Sink{sink},
	})
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := peer.Read(buf); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 2; i++ {
		_, err := l.Send(context.Background(), dfplayer.Pause())
		assert.ErrorIs(t, err, ErrAckTimeout)
	}
	_, err := l.Send(context.Background(), dfplayer.Pause())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "open", l.Info().Breaker)
	assert.Equal(t, int64(1), l.Info().BreakerTrips)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AckTimeoutTotal))
	evs := sink.snapshot()
	require.Len(t, evs, 2)
	assert.Equal(t, ResultAckTimeout, evs[1].Result)
}

func TestLink_RunResyncsAndDelivers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAppMetrics(reg)
	msgs := make(chan dfplayer.Message, 4)
	_, peer, done := startLink(t, Options{
		ID:      "l3",
		Source:  "serial",
		Metrics: m,
		OnMessage: func(id string, msg dfplayer.Message) {
			if id == "l3" {
				msgs <- msg
			}
		},
	})

	stream := append([]byte{0x00, 0x13}, upFrame(0x3D, 7)...)
	_, err := peer.Write(stream)
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, dfplayer.KindTfFinished, msg.Kind)
		track, ok := msg.Track()
		assert.True(t, ok)
		assert.Equal(t, uint16(7), track)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, peer.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after peer closed")
	}
	assert.Equal(t, 12.0, testutil.ToFloat64(m.BytesReceived.WithLabelValues("serial")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ParseTotal.WithLabelValues("discarded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParseTotal.WithLabelValues(ResultOK)))
}

func TestLink_StallResetsParser(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewAppMetrics(reg)
	msgs := make(chan dfplayer.Message, 4)
	_, peer, _ := startLink(t, Options{
		StallTimeout: 20 * time.Millisecond,
		Metrics:      m,
		OnMessage:    func(_ string, msg dfplayer.Message) { msgs <- msg },
	})

	_, err := peer.Write([]byte{0x7E, 0xFF, 0x06})
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = peer.Write(upFrame(0x3A, 2))
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, dfplayer.KindDiskInserted, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("frame after stall not delivered")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ParserStallTotal))
}

func TestLink_SendAfterClose(t *testing.T) {
	l, _, _ := startLink(t, Options{})
	require.NoError(t, l.Close())
	_, err := l.Send(context.Background(), dfplayer.Next())
	assert.ErrorIs(t, err, ErrClosed)
	select {
	case <-l.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestLink_WarnsWhenStreamDoesNotSniff(t *testing.T) {
	tests := []struct {
		name  string
		first []byte
		warns int
	}{
		{"帧头开头", upFrame(0x3F, 2), 0},
		{"波特率错误的杂字节", []byte{0x00, 0xF8, 0x80}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			_, peer, done := startLink(t, Options{Logger: zap.New(core)})
			_, err := peer.Write(tt.first)
			require.NoError(t, err)
			// 之后的字节不再检查
			_, err = peer.Write([]byte{0x00})
			require.NoError(t, err)
			require.NoError(t, peer.Close())
			<-done
			assert.Equal(t, tt.warns, logs.FilterMessageSnippet("do not look like").Len())
		})
	}
}
