package dfplayer

import "fmt"

// 上行（模块 -> 主机）消息码，与部分下行码重叠，解码时以上行含义为准
const (
	CodeDiskInserted  Code = 0x3A
	CodeDiskRemoved   Code = 0x3B
	CodeUDiskFinished Code = 0x3C
	CodeTfFinished    Code = 0x3D
	CodeFlashFinished Code = 0x3E
	CodeDiskOnline    Code = 0x3F
	CodeModuleError   Code = 0x40
	CodeAck           Code = 0x41
)

// Kind 消息种类
type Kind uint8

const (
	KindUnknown Kind = iota // 码表外的命令码，前向兼容，不是错误
	KindCommand             // 下行码表内的命令码（例如回显）
	KindAck
	KindDiskInserted
	KindDiskRemoved
	KindUDiskFinished
	KindTfFinished
	KindFlashFinished
	KindDiskOnline
	KindModuleError
	KindQueryReply // 查询命令（0x42..0x4D）的应答
)

var kindNames = [...]string{
	KindUnknown:       "unknown_command",
	KindCommand:       "command",
	KindAck:           "ack",
	KindDiskInserted:  "disk_inserted",
	KindDiskRemoved:   "disk_removed",
	KindUDiskFinished: "udisk_finished",
	KindTfFinished:    "tf_finished",
	KindFlashFinished: "flash_finished",
	KindDiskOnline:    "disk_online",
	KindModuleError:   "module_error",
	KindQueryReply:    "query_reply",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Disk 存储设备
type Disk uint8

const (
	DiskUDisk         Disk = 0x01
	DiskTf            Disk = 0x02
	DiskPc            Disk = 0x03
	DiskFlash         Disk = 0x04
	DiskUDiskAndFlash Disk = 0x05
)

func (d Disk) String() string {
	switch d {
	case DiskUDisk:
		return "udisk"
	case DiskTf:
		return "tf"
	case DiskPc:
		return "pc"
	case DiskFlash:
		return "flash"
	case DiskUDiskAndFlash:
		return "udisk+flash"
	}
	return fmt.Sprintf("disk(0x%02X)", uint8(d))
}

// ModuleErrorType 模块上报的错误类型
type ModuleErrorType uint8

const (
	ModuleBusy            ModuleErrorType = 0x00
	ModuleIncompleteFrame ModuleErrorType = 0x01
	ModuleChecksumError   ModuleErrorType = 0x02
)

func (e ModuleErrorType) String() string {
	switch e {
	case ModuleBusy:
		return "busy"
	case ModuleIncompleteFrame:
		return "incomplete_frame"
	case ModuleChecksumError:
		return "checksum_error"
	}
	return fmt.Sprintf("module_error(0x%02X)", uint8(e))
}

// Message 一帧校验通过的解码结果
type Message struct {
	Kind     Kind
	Code     Code
	Feedback bool
	Param    uint16
}

// Decode 按码表解码命令码与参数。未知码返回 KindUnknown，从不失败。
func Decode(code Code, feedback byte, param uint16) Message {
	m := Message{Code: code, Feedback: feedback != 0, Param: param}
	switch code {
	case CodeAck:
		m.Kind = KindAck
	case CodeDiskInserted:
		m.Kind = KindDiskInserted
	case CodeDiskRemoved:
		m.Kind = KindDiskRemoved
	case CodeUDiskFinished:
		m.Kind = KindUDiskFinished
	case CodeTfFinished:
		m.Kind = KindTfFinished
	case CodeFlashFinished:
		m.Kind = KindFlashFinished
	case CodeDiskOnline:
		m.Kind = KindDiskOnline
	case CodeModuleError:
		m.Kind = KindModuleError
	default:
		switch {
		case code >= CodeGetStatus && code <= CodeGetFlashCurrentTrack && code != CodeKeepOn:
			m.Kind = KindQueryReply
		default:
			if _, ok := commandTable[code]; ok {
				m.Kind = KindCommand
			} else {
				m.Kind = KindUnknown
			}
		}
	}
	return m
}

// Command 将消息还原为码表内的命令
func (m Message) Command() (Command, bool) { return LookupCommand(m.Code, m.Param) }

// Disk 磁盘类消息的设备（参数低字节），参数越界时 ok=false
func (m Message) Disk() (Disk, bool) {
	switch m.Kind {
	case KindDiskInserted, KindDiskRemoved, KindDiskOnline:
	default:
		return 0, false
	}
	d := Disk(m.Param & 0xFF)
	if d < DiskUDisk || d > DiskUDiskAndFlash {
		return d, false
	}
	return d, true
}

// ModuleError 模块错误类型（参数低字节）
func (m Message) ModuleError() (ModuleErrorType, bool) {
	if m.Kind != KindModuleError {
		return 0, false
	}
	e := ModuleErrorType(m.Param & 0xFF)
	return e, e <= ModuleChecksumError
}

// Track 播放结束消息中的曲目号
func (m Message) Track() (uint16, bool) {
	switch m.Kind {
	case KindUDiskFinished, KindTfFinished, KindFlashFinished:
		return m.Param, true
	}
	return 0, false
}

func (m Message) String() string {
	switch m.Kind {
	case KindAck:
		return "ack"
	case KindDiskInserted, KindDiskRemoved, KindDiskOnline:
		d, _ := m.Disk()
		return fmt.Sprintf("%s(%s)", m.Kind, d)
	case KindModuleError:
		e, _ := m.ModuleError()
		return fmt.Sprintf("%s(%s)", m.Kind, e)
	case KindCommand:
		c, _ := m.Command()
		return c.String()
	case KindQueryReply:
		name, _ := CommandName(m.Code)
		return fmt.Sprintf("%s=%d", name, m.Param)
	case KindUnknown:
		return fmt.Sprintf("unknown_command(0x%02X, %d)", byte(m.Code), m.Param)
	}
	return fmt.Sprintf("%s(%d)", m.Kind, m.Param)
}

// Frame 还原该消息对应的 10 字节帧
func (m Message) Frame() []byte {
	var feedback RequestAck
	if m.Feedback {
		feedback = RequestAckYes
	}
	return Build(Command{code: m.Code, param: m.Param}, feedback)
}
