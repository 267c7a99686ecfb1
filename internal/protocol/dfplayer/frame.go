package dfplayer

// 帧结构（定长 10 字节，多字节字段均为大端）：
// start[1]=0x7E | ver[1]=0xFF | len[1]=0x06 | cmd[1] | feedback[1] | paramH[1] | paramL[1] | sumH[1] | sumL[1] | end[1]=0xEF
// 校验和覆盖 ver..paramL（偏移 1..6），取 16 位累加和的补码。
const (
	StartByte   byte = 0x7E
	VersionByte byte = 0xFF
	LengthByte  byte = 0x06
	EndByte     byte = 0xEF

	// FrameSize 完整帧长度，Serialize 要求的最小缓冲区长度
	FrameSize = 10
)

// 字段偏移
const (
	offStart = iota
	offVersion
	offLength
	offCmd
	offFeedback
	offParamH
	offParamL
	offSumH
	offSumL
	offEnd
)

// RequestAck 反馈标志：是否要求模块回 ACK
type RequestAck byte

const (
	RequestAckNo  RequestAck = 0x00
	RequestAckYes RequestAck = 0x01
)
