package dfplayer

import "encoding/binary"

// Serialize 将命令写入 buf（至少 FrameSize 字节），不请求 ACK，返回写入字节数。
// buf 不足时返回 ErrBufferTooSmall，buf 内容不作保证。
func Serialize(cmd Command, buf []byte) (int, error) {
	return SerializeWithAck(cmd, buf, RequestAckNo)
}

// SerializeWithAck 同 Serialize，可指定反馈标志
func SerializeWithAck(cmd Command, buf []byte, ack RequestAck) (int, error) {
	if len(buf) < FrameSize {
		return 0, ErrBufferTooSmall
	}
	buf[offStart] = StartByte
	buf[offVersion] = VersionByte
	buf[offLength] = LengthByte
	buf[offCmd] = byte(cmd.code)
	buf[offFeedback] = byte(ack)
	binary.BigEndian.PutUint16(buf[offParamH:], cmd.param)
	binary.BigEndian.PutUint16(buf[offSumH:], frameChecksum(buf))
	buf[offEnd] = EndByte
	return FrameSize, nil
}

// Build 分配并返回一帧，便于直接写入传输层
func Build(cmd Command, ack RequestAck) []byte {
	buf := make([]byte, FrameSize)
	_, _ = SerializeWithAck(cmd, buf, ack)
	return buf
}
