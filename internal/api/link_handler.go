package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfplayer"
	"github.com/taoyao-code/dfplayer-server/internal/script"
	"github.com/taoyao-code/dfplayer-server/internal/storage/models"
)

// LinkRegistry 在线链路表
type LinkRegistry interface {
	Get(id string) (*link.Link, bool)
	List() []*link.Link
	IsOnline(id string, now time.Time) bool
	OnlineCount(now time.Time) int
}

// FrameStore 帧日志查询（PostgreSQL）
type FrameStore interface {
	Recent(ctx context.Context, linkID string, limit int) ([]models.FrameLog, error)
}

// EventStore 最近事件查询与实时订阅（Redis）
type EventStore interface {
	Recent(ctx context.Context, linkID string, n int) ([]link.Event, error)
	Subscribe(ctx context.Context) <-chan link.Event
}

// LinkHandler 链路与命令 API
type LinkHandler struct {
	links       LinkRegistry
	frames      FrameStore // 可为 nil
	events      EventStore // 可为 nil
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewLinkHandler frames、events 未启用时传 nil
func NewLinkHandler(links LinkRegistry, frames FrameStore, events EventStore, sendTimeout time.Duration, logger *zap.Logger) *LinkHandler {
	if sendTimeout <= 0 {
		sendTimeout = 3 * time.Second
	}
	return &LinkHandler{links: links, frames: frames, events: events, sendTimeout: sendTimeout, logger: logger}
}

// ListLinks 列出已连接链路；online 为会话超时内收到过上行消息的数量
func (h *LinkHandler) ListLinks(c *gin.Context) {
	now := time.Now()
	all := h.links.List()
	out := make([]link.Info, 0, len(all))
	for _, l := range all {
		info := l.Info()
		info.Online = h.links.IsOnline(info.ID, now)
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"links": out, "count": len(out), "online": h.links.OnlineCount(now)})
}

// SendCommand 向链路发送一条命令
//
// 请求体: {"command":"track","param":3} 或 {"command":"set_folder","folder":1,"file":2}
func (h *LinkHandler) SendCommand(c *gin.Context) {
	id := c.Param("id")
	l, ok := h.links.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return
	}

	var step script.Step
	if err := c.ShouldBindJSON(&step); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}
	cmd, err := step.Build()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid command", "detail": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.sendTimeout)
	defer cancel()
	frame, err := l.Send(ctx, cmd)
	if err != nil {
		status := sendErrorStatus(err)
		h.logger.Warn("send command failed",
			zap.String("link", id),
			zap.Stringer("cmd", cmd),
			zap.Int("status", status),
			zap.Error(err),
		)
		body := gin.H{"error": err.Error()}
		if frame != nil {
			body["frame"] = hex.EncodeToString(frame)
		}
		c.JSON(status, body)
		return
	}

	h.logger.Info("command sent", zap.String("link", id), zap.Stringer("cmd", cmd))
	c.JSON(http.StatusAccepted, gin.H{
		"link":    id,
		"command": cmd.String(),
		"frame":   hex.EncodeToString(frame),
	})
}

func sendErrorStatus(err error) int {
	switch {
	case errors.Is(err, link.ErrAckTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, link.ErrModuleRejected):
		return http.StatusBadGateway
	case errors.Is(err, link.ErrCircuitOpen), errors.Is(err, link.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type commandEntry struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	HasParam bool   `json:"has_param"`
}

// ListCommands 下行命令码表
func (h *LinkHandler) ListCommands(c *gin.Context) {
	codes := dfplayer.Codes()
	out := make([]commandEntry, 0, len(codes))
	for _, code := range codes {
		name, _ := dfplayer.CommandName(code)
		out = append(out, commandEntry{
			Code:     fmt.Sprintf("0x%02X", byte(code)),
			Name:     name,
			HasParam: dfplayer.HasParam(code),
		})
	}
	c.JSON(http.StatusOK, gin.H{"commands": out})
}

// ListFrames 查询链路帧日志
func (h *LinkHandler) ListFrames(c *gin.Context) {
	if h.frames == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "frame journal disabled"})
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil {
			limit = vv
		}
	}
	rows, err := h.frames.Recent(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query frames", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"frames": rows, "count": len(rows)})
}

// ListEvents 查询链路最近事件
func (h *LinkHandler) ListEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event store disabled"})
		return
	}
	n := 0
	if v := c.Query("limit"); v != "" {
		if vv, e := strconv.Atoi(v); e == nil {
			n = vv
		}
	}
	evs, err := h.events.Recent(c.Request.Context(), c.Param("id"), n)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query events", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs, "count": len(evs)})
}

// StreamEvents 以 SSE 推送实时链路事件，?link= 只推送指定链路
func (h *LinkHandler) StreamEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event store disabled"})
		return
	}
	linkID := c.Query("link")
	ctx := c.Request.Context()
	ch := h.events.Subscribe(ctx)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.Flush()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if linkID != "" && ev.LinkID != linkID {
				continue
			}
			c.SSEvent(string(ev.Direction), ev)
			c.Writer.Flush()
		}
	}
}
