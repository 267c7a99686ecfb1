package dfplayer

import (
	"errors"
	"fmt"
)

var (
	// ErrBufferTooSmall 输出缓冲区不足 FrameSize
	ErrBufferTooSmall = errors.New("buffer too small")
	// ErrChecksumMismatch 结构完整但校验和不一致
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrFraming 版本/长度/结束标志不符
	ErrFraming = errors.New("framing error")
	// ErrShortFrame 不足一帧
	ErrShortFrame = errors.New("short frame")
	// ErrUnknownCommandName 命令名无法识别（仅用于文本解析）
	ErrUnknownCommandName = errors.New("unknown command name")
)

// ParseError 解析器在某一字节上报告的错误，Err 为上面的哨兵错误之一
type ParseError struct {
	Err   error
	State State // 出错时所处状态
	Byte  byte  // 触发错误的字节
	Want  uint16
	Got   uint16
}

func (e *ParseError) Error() string {
	if errors.Is(e.Err, ErrChecksumMismatch) {
		return fmt.Sprintf("%v: want 0x%04X, got 0x%04X", e.Err, e.Want, e.Got)
	}
	return fmt.Sprintf("%v: unexpected byte 0x%02X in %s", e.Err, e.Byte, e.State)
}

func (e *ParseError) Unwrap() error { return e.Err }
