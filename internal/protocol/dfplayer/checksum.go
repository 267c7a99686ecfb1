package dfplayer

import "encoding/binary"

// Checksum 计算校验和：对 ver..paramL 六个字节做 16 位无符号累加（溢出回绕），再取补码 (0 - sum)。
// 注意：数据手册中的示例校验值是错的（如 Track(1) 手册写 0xFFE6，实际为 0xFEF7），以此算法为准。
func Checksum(body []byte) uint16 {
	var sum uint16
	for _, b := range body {
		sum += uint16(b)
	}
	return -sum
}

// frameChecksum 计算整帧（至少 offParamL+1 字节）的校验和
func frameChecksum(frame []byte) uint16 {
	return Checksum(frame[offVersion : offParamL+1])
}

// VerifyFrame 校验一个完整帧：起止标志、版本、长度与校验和
func VerifyFrame(frame []byte) error {
	if len(frame) < FrameSize {
		return ErrShortFrame
	}
	if frame[offStart] != StartByte || frame[offVersion] != VersionByte ||
		frame[offLength] != LengthByte || frame[offEnd] != EndByte {
		return ErrFraming
	}
	if binary.BigEndian.Uint16(frame[offSumH:offSumL+1]) != frameChecksum(frame) {
		return ErrChecksumMismatch
	}
	return nil
}
