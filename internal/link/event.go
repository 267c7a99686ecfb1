package link

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfplayer"
)

// Direction 帧方向
type Direction string

const (
	DirectionUp   Direction = "up"   // 模块 -> 主机
	DirectionDown Direction = "down" // 主机 -> 模块
)

// 事件结果
const (
	ResultOK         = "ok"
	ResultChecksum   = "checksum"
	ResultFraming    = "framing"
	ResultWriteError = "write_error"
	ResultAckTimeout = "ack_timeout"
	ResultRejected   = "module_error" // 模块以 0x40 回应
	ResultClosed     = "closed"
	ResultCancelled  = "cancelled" // 等待 ACK 时调用方取消
)

// Event 链路上的一次收发记录，供帧日志与事件发布使用
type Event struct {
	LinkID    string    `json:"link_id"`
	Direction Direction `json:"direction"`
	Code      uint8     `json:"code"`
	Name      string    `json:"name"`
	Param     uint16    `json:"param"`
	Feedback  bool      `json:"feedback"`
	Result    string    `json:"result"`
	Error     string    `json:"error,omitempty"`
	Frame     string    `json:"frame,omitempty"` // hex
	At        time.Time `json:"at"`
}

// Sink 事件接收方（帧日志、Redis 发布等），实现需并发安全
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

func sentEvent(linkID string, cmd dfplayer.Command, frame []byte, result string, err error) Event {
	name, _ := dfplayer.CommandName(cmd.Code())
	ev := Event{
		LinkID:    linkID,
		Direction: DirectionDown,
		Code:      uint8(cmd.Code()),
		Name:      name,
		Param:     cmd.Param(),
		Feedback:  frame[4] == byte(dfplayer.RequestAckYes),
		Result:    result,
		Frame:     hex.EncodeToString(frame),
		At:        time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

func receivedEvent(linkID string, m dfplayer.Message) Event {
	return Event{
		LinkID:    linkID,
		Direction: DirectionUp,
		Code:      uint8(m.Code),
		Name:      m.Kind.String(),
		Param:     m.Param,
		Feedback:  m.Feedback,
		Result:    ResultOK,
		Frame:     hex.EncodeToString(m.Frame()),
		At:        time.Now(),
	}
}

func parseErrorEvent(linkID string, result string, err error) Event {
	return Event{
		LinkID:    linkID,
		Direction: DirectionUp,
		Name:      "parse_error",
		Result:    result,
		Error:     err.Error(),
		At:        time.Now(),
	}
}
