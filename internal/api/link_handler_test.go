package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/api/middleware"
	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/session"
	"github.com/taoyao-code/dfplayer-server/internal/storage/models"
)

type fakeFrames struct {
	rows []models.FrameLog
	err  error
}

func (f *fakeFrames) Recent(_ context.Context, linkID string, limit int) ([]models.FrameLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.FrameLog
	for _, r := range f.rows {
		if r.LinkID == linkID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

// newTestLink 建立一条内存链路，对端读走所有帧；ack=true 时对每帧回 ACK
func newTestLink(t *testing.T, id string, opts link.Options, ack bool) *link.Link {
	t.Helper()
	a, b := net.Pipe()
	opts.ID = id
	l := link.New(a, opts)
	go func() { _ = l.Run(context.Background()) }()
	go func() {
		buf := make([]byte, 10)
		for {
			if _, err := io.ReadFull(b, buf); err != nil {
				return
			}
			if ack {
				_, _ = b.Write([]byte{0x7E, 0xFF, 0x06, 0x41, 0x00, 0x00, 0x00, 0xFE, 0xBA, 0xEF})
			}
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		_ = b.Close()
	})
	return l
}

type fakeEvents struct {
	stream []link.Event
}

func (f *fakeEvents) Recent(_ context.Context, linkID string, n int) ([]link.Event, error) {
	var out []link.Event
	for _, ev := range f.stream {
		if ev.LinkID == linkID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Subscribe 推送全部事件后关闭
func (f *fakeEvents) Subscribe(_ context.Context) <-chan link.Event {
	ch := make(chan link.Event, len(f.stream))
	for _, ev := range f.stream {
		ch <- ev
	}
	close(ch)
	return ch
}

func setupRouter(t *testing.T, frames FrameStore) (*gin.Engine, *session.Manager[*link.Link]) {
	return setupRouterWithEvents(t, frames, nil)
}

func setupRouterWithEvents(t *testing.T, frames FrameStore, events EventStore) (*gin.Engine, *session.Manager[*link.Link]) {
	gin.SetMode(gin.TestMode)
	reg := session.New[*link.Link](time.Minute)
	h := NewLinkHandler(reg, frames, events, 200*time.Millisecond, zap.NewNop())
	r := gin.New()
	RegisterRoutes(r, h, middleware.AuthConfig{}, zap.NewNop())
	return r, reg
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestListCommands(t *testing.T) {
	r, _ := setupRouter(t, nil)
	rr := do(r, http.MethodGet, "/api/v1/commands", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Commands []commandEntry `json:"commands"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Commands)
	assert.Equal(t, commandEntry{Code: "0x01", Name: "next"}, resp.Commands[0])
}

func TestListLinks(t *testing.T) {
	r, reg := setupRouter(t, nil)
	reg.Bind("b", newTestLink(t, "b", link.Options{Source: "tcp", Remote: "10.0.0.2:5000"}, false))
	reg.Bind("a", newTestLink(t, "a", link.Options{Source: "serial", Remote: "/dev/ttyUSB0"}, false))
	reg.OnSeen("a", time.Now())
	reg.OnSeen("b", time.Now().Add(-time.Hour))

	rr := do(r, http.MethodGet, "/api/v1/links", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Links  []link.Info `json:"links"`
		Count  int         `json:"count"`
		Online int         `json:"online"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 1, resp.Online)
	assert.Equal(t, "a", resp.Links[0].ID)
	assert.True(t, resp.Links[0].Online)
	assert.False(t, resp.Links[1].Online)
	assert.Equal(t, "serial", resp.Links[0].Source)
	assert.Equal(t, "10.0.0.2:5000", resp.Links[1].Remote)
}

func TestSendCommand(t *testing.T) {
	r, reg := setupRouter(t, nil)
	reg.Bind("plain", newTestLink(t, "plain", link.Options{}, false))
	reg.Bind("acked", newTestLink(t, "acked", link.Options{RequestAck: true, AckTimeout: time.Second}, true))
	reg.Bind("silent", newTestLink(t, "silent", link.Options{RequestAck: true, AckTimeout: 30 * time.Millisecond}, false))

	tests := []struct {
		name      string
		path      string
		body      string
		wantCode  int
		wantFrame string
	}{
		{"播放曲目", "/api/v1/links/plain/commands", `{"command":"track","param":1}`, http.StatusAccepted, "7eff0603000001fef7ef"},
		{"文件夹", "/api/v1/links/plain/commands", `{"command":"set_folder","folder":1,"file":2}`, http.StatusAccepted, "7eff060f000102fee9ef"},
		{"收到ACK", "/api/v1/links/acked/commands", `{"command":"next"}`, http.StatusAccepted, "7eff0601010000fef9ef"},
		{"ACK超时", "/api/v1/links/silent/commands", `{"command":"pause"}`, http.StatusGatewayTimeout, ""},
		{"未知链路", "/api/v1/links/nope/commands", `{"command":"next"}`, http.StatusNotFound, ""},
		{"未知命令", "/api/v1/links/plain/commands", `{"command":"jump"}`, http.StatusBadRequest, ""},
		{"非法JSON", "/api/v1/links/plain/commands", `{`, http.StatusBadRequest, ""},
		{"参数越界", "/api/v1/links/plain/commands", `{"command":"track","param":70000}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(r, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
			if tt.wantFrame != "" {
				var resp map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantFrame, resp["frame"])
			}
		})
	}
}

func TestListFrames(t *testing.T) {
	t.Run("未启用", func(t *testing.T) {
		r, _ := setupRouter(t, nil)
		rr := do(r, http.MethodGet, "/api/v1/links/a/frames", "")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})

	t.Run("查询", func(t *testing.T) {
		frames := &fakeFrames{rows: []models.FrameLog{
			{LinkID: "a", Name: "track"}, {LinkID: "a", Name: "pause"}, {LinkID: "b", Name: "next"},
		}}
		r, _ := setupRouter(t, frames)
		rr := do(r, http.MethodGet, "/api/v1/links/a/frames?limit=1", "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("存储错误", func(t *testing.T) {
		r, _ := setupRouter(t, &fakeFrames{err: errors.New("db down")})
		rr := do(r, http.MethodGet, "/api/v1/links/a/frames", "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestSendErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, sendErrorStatus(link.ErrAckTimeout))
	assert.Equal(t, http.StatusBadGateway, sendErrorStatus(link.ErrModuleRejected))
	assert.Equal(t, http.StatusServiceUnavailable, sendErrorStatus(link.ErrCircuitOpen))
	assert.Equal(t, http.StatusInternalServerError, sendErrorStatus(errors.New("x")))
}

func TestEvents(t *testing.T) {
	events := &fakeEvents{stream: []link.Event{
		{LinkID: "a", Direction: link.DirectionDown, Name: "track", Param: 3, Result: link.ResultOK},
		{LinkID: "b", Direction: link.DirectionUp, Name: "ack", Result: link.ResultOK},
		{LinkID: "a", Direction: link.DirectionUp, Name: "tf_finished", Param: 3, Result: link.ResultOK},
	}}

	t.Run("未启用", func(t *testing.T) {
		r, _ := setupRouter(t, nil)
		assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/links/a/events", "").Code)
		assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/api/v1/events/stream", "").Code)
	})

	t.Run("最近事件", func(t *testing.T) {
		r, _ := setupRouterWithEvents(t, nil, events)
		rr := do(r, http.MethodGet, "/api/v1/links/a/events", "")
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("实时推送按链路过滤", func(t *testing.T) {
		r, _ := setupRouterWithEvents(t, nil, events)
		rr := do(r, http.MethodGet, "/api/v1/events/stream?link=a", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
		body := rr.Body.String()
		assert.Contains(t, body, "event:down")
		assert.Contains(t, body, `"name":"tf_finished"`)
		assert.NotContains(t, body, `"link_id":"b"`)
	})
}
