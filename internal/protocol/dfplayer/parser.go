package dfplayer

import (
	"encoding/binary"
	"fmt"
)

// State 解析器状态，数值即已缓存的字节数（当前等待的帧偏移）
type State uint8

const (
	StateAwaitStart State = iota
	StateAwaitVersion
	StateAwaitLength
	StateAwaitCommand
	StateAwaitFeedback
	StateAwaitParamHigh
	StateAwaitParamLow
	StateAwaitChecksumHigh
	StateAwaitChecksumLow
	StateAwaitEnd
)

var stateNames = [...]string{
	"AwaitStart", "AwaitVersion", "AwaitLength", "AwaitCommand", "AwaitFeedback",
	"AwaitParamHigh", "AwaitParamLow", "AwaitChecksumHigh", "AwaitChecksumLow", "AwaitEnd",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Status 单字节处理结果
type Status uint8

const (
	// StatusIncomplete 帧未结束
	StatusIncomplete Status = iota
	// StatusDiscarded 等待起始标志时丢弃的杂字节（重同步），不是错误
	StatusDiscarded
	// StatusComplete 收到一帧完整且校验通过的消息
	StatusComplete
	// StatusError 畸形输入，已丢弃当前帧
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIncomplete:
		return "incomplete"
	case StatusDiscarded:
		return "discarded"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ParseResult ProcessByte 的返回值，仅 StatusComplete 时 Message 有效
type ParseResult struct {
	Status  Status
	Message Message
}

// Parser 逐字节状态机：定长缓冲 + 位置计数，无堆分配。
// 一个 Parser 只服务一条接收流，并发使用需由调用方互斥。
type Parser struct {
	buf [FrameSize]byte
	pos int
	err ParseError // 最近一次错误，ProcessByte 返回其指针
}

// NewParser 创建解析器
func NewParser() *Parser { return &Parser{} }

// State 返回当前状态
func (p *Parser) State() State { return State(p.pos) }

// Reset 丢弃已缓存字节，回到 AwaitStart（调用方检测到半帧停滞时使用）
func (p *Parser) Reset() { p.pos = 0 }

// ProcessByte 处理一个字节。出错时 error 为 *ParseError，解析器已复位，可继续喂入下一字节。
// 返回的 *ParseError 归 Parser 所有，下一次出错时被覆盖；需要保留请复制 *ParseError 的值。
// 版本/长度字节不符时不把该字节当作新的起始标志重新检查。
func (p *Parser) ProcessByte(b byte) (ParseResult, error) {
	switch State(p.pos) {
	case StateAwaitStart:
		if b != StartByte {
			return ParseResult{Status: StatusDiscarded}, nil
		}
	case StateAwaitVersion:
		if b != VersionByte {
			return p.fail(ErrFraming, b)
		}
	case StateAwaitLength:
		if b != LengthByte {
			return p.fail(ErrFraming, b)
		}
	case StateAwaitEnd:
		return p.finish(b)
	}
	p.buf[p.pos] = b
	p.pos++
	return ParseResult{Status: StatusIncomplete}, nil
}

// finish 处理最后一个字节：先校验和，再结束标志
func (p *Parser) finish(b byte) (ParseResult, error) {
	p.buf[offEnd] = b
	want := frameChecksum(p.buf[:])
	got := binary.BigEndian.Uint16(p.buf[offSumH : offSumL+1])
	if want != got {
		p.err = ParseError{Err: ErrChecksumMismatch, State: p.State(), Byte: b, Want: want, Got: got}
		p.Reset()
		return ParseResult{Status: StatusError}, &p.err
	}
	if b != EndByte {
		return p.fail(ErrFraming, b)
	}
	msg := Decode(Code(p.buf[offCmd]), p.buf[offFeedback], binary.BigEndian.Uint16(p.buf[offParamH:offParamL+1]))
	p.Reset()
	return ParseResult{Status: StatusComplete, Message: msg}, nil
}

func (p *Parser) fail(err error, b byte) (ParseResult, error) {
	p.err = ParseError{Err: err, State: p.State(), Byte: b}
	p.Reset()
	return ParseResult{Status: StatusError}, &p.err
}

// ParseFrame 解析一个完整的 10 字节帧（非流式场景）
func ParseFrame(frame []byte) (Message, error) {
	if err := VerifyFrame(frame); err != nil {
		return Message{}, err
	}
	return Decode(Code(frame[offCmd]), frame[offFeedback], binary.BigEndian.Uint16(frame[offParamH:offParamL+1])), nil
}
