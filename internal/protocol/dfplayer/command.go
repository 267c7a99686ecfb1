package dfplayer

import "fmt"

// Code 命令码
type Code byte

// 控制类命令
const (
	CodeNext              Code = 0x01
	CodePrevious          Code = 0x02
	CodeTrack             Code = 0x03
	CodeIncreaseVolume    Code = 0x04
	CodeDecreaseVolume    Code = 0x05
	CodeSetVolume         Code = 0x06
	CodeSetEq             Code = 0x07
	CodeSetPlaybackMode   Code = 0x08
	CodeSetPlaybackSource Code = 0x09
	CodeStandby           Code = 0x0A
	CodeWake              Code = 0x0B
	CodeReset             Code = 0x0C
	CodePlayback          Code = 0x0D
	CodePause             Code = 0x0E
	CodeSetFolder         Code = 0x0F
	CodeSetVolumeAdjust   Code = 0x10
	CodeRepeatPlay        Code = 0x11
)

// 查询/指令类命令
const (
	CodeStay1                 Code = 0x3C
	CodeStay2                 Code = 0x3D
	CodeStay3                 Code = 0x3E
	CodeInitParameters        Code = 0x3F
	CodeRequestRetransmission Code = 0x40
	CodeReply                 Code = 0x41
	CodeGetStatus             Code = 0x42
	CodeGetVolume             Code = 0x43
	CodeGetEq                 Code = 0x44
	CodeGetPlaybackMode       Code = 0x45
	CodeGetSoftwareVersion    Code = 0x46
	CodeGetTfFileCount        Code = 0x47
	CodeGetUDiskFileCount     Code = 0x48
	CodeGetFlashFileCount     Code = 0x49
	CodeKeepOn                Code = 0x4A
	CodeGetTfCurrentTrack     Code = 0x4B
	CodeGetUDiskCurrentTrack  Code = 0x4C
	CodeGetFlashCurrentTrack  Code = 0x4D
)

// EqMode 均衡器预设
type EqMode uint16

const (
	EqNormal  EqMode = 0x00
	EqPop     EqMode = 0x01
	EqRock    EqMode = 0x02
	EqJazz    EqMode = 0x03
	EqClassic EqMode = 0x04
	EqBass    EqMode = 0x05
)

// PlaybackMode 循环模式
type PlaybackMode uint16

const (
	PlaybackRepeat       PlaybackMode = 0x00
	PlaybackFolderRepeat PlaybackMode = 0x01
	PlaybackSingleRepeat PlaybackMode = 0x02
	PlaybackRandom       PlaybackMode = 0x03
)

// PlaybackSource 播放源
type PlaybackSource uint16

const (
	SourceUDisk PlaybackSource = 0x00
	SourceTf    PlaybackSource = 0x01
	SourceAux   PlaybackSource = 0x02
	SourceSleep PlaybackSource = 0x03
	SourceFlash PlaybackSource = 0x04
)

// Command 下行命令：命令码 + 16 位参数（无参数的命令参数为 0）。
// 字段不导出，只能通过下面的构造函数或 LookupCommand 得到，保证命令码一定在码表内。
type Command struct {
	code  Code
	param uint16
}

func Next() Command              { return Command{code: CodeNext} }
func Previous() Command          { return Command{code: CodePrevious} }
func Track(n uint16) Command     { return Command{code: CodeTrack, param: n} }
func IncreaseVolume() Command    { return Command{code: CodeIncreaseVolume} }
func DecreaseVolume() Command    { return Command{code: CodeDecreaseVolume} }
func SetVolume(v uint16) Command { return Command{code: CodeSetVolume, param: v} }
func SetEq(m EqMode) Command     { return Command{code: CodeSetEq, param: uint16(m)} }
func SetPlaybackMode(m PlaybackMode) Command {
	return Command{code: CodeSetPlaybackMode, param: uint16(m)}
}
func SetPlaybackSource(s PlaybackSource) Command {
	return Command{code: CodeSetPlaybackSource, param: uint16(s)}
}
func Standby() Command  { return Command{code: CodeStandby} }
func Wake() Command     { return Command{code: CodeWake} }
func Reset() Command    { return Command{code: CodeReset} }
func Playback() Command { return Command{code: CodePlayback} }
func Pause() Command    { return Command{code: CodePause} }

// SetFolder 播放指定文件夹中的文件，如 SetFolder(4, 123) 对应 "04/123.mp3"
func SetFolder(folder, file uint8) Command {
	return Command{code: CodeSetFolder, param: uint16(folder)<<8 | uint16(file)}
}

// SetVolumeAdjust 增益设置，gain 手册范围 0-31（此处不做限制）
func SetVolumeAdjust(enable bool, gain uint8) Command {
	var hi uint16
	if enable {
		hi = 1
	}
	return Command{code: CodeSetVolumeAdjust, param: hi<<8 | uint16(gain)}
}

func RepeatPlay(on bool) Command {
	if on {
		return Command{code: CodeRepeatPlay, param: 1}
	}
	return Command{code: CodeRepeatPlay}
}

func Stay1() Command                  { return Command{code: CodeStay1} }
func Stay2() Command                  { return Command{code: CodeStay2} }
func Stay3() Command                  { return Command{code: CodeStay3} }
func InitParameters(p uint16) Command { return Command{code: CodeInitParameters, param: p} }
func RequestRetransmission() Command  { return Command{code: CodeRequestRetransmission} }
func Reply() Command                  { return Command{code: CodeReply} }
func GetStatus() Command              { return Command{code: CodeGetStatus} }
func GetVolume() Command              { return Command{code: CodeGetVolume} }
func GetEq() Command                  { return Command{code: CodeGetEq} }
func GetPlaybackMode() Command        { return Command{code: CodeGetPlaybackMode} }
func GetSoftwareVersion() Command     { return Command{code: CodeGetSoftwareVersion} }
func GetTfFileCount() Command         { return Command{code: CodeGetTfFileCount} }
func GetUDiskFileCount() Command      { return Command{code: CodeGetUDiskFileCount} }
func GetFlashFileCount() Command      { return Command{code: CodeGetFlashFileCount} }
func KeepOn() Command                 { return Command{code: CodeKeepOn} }
func GetTfCurrentTrack() Command      { return Command{code: CodeGetTfCurrentTrack} }
func GetUDiskCurrentTrack() Command   { return Command{code: CodeGetUDiskCurrentTrack} }
func GetFlashCurrentTrack() Command   { return Command{code: CodeGetFlashCurrentTrack} }

// Code 返回命令码
func (c Command) Code() Code { return c.code }

// Param 返回 16 位参数
func (c Command) Param() uint16 { return c.param }

func (c Command) String() string {
	info, ok := commandTable[c.code]
	if !ok {
		return fmt.Sprintf("command(0x%02X, %d)", byte(c.code), c.param)
	}
	if info.hasParam {
		return fmt.Sprintf("%s(%d)", info.name, c.param)
	}
	return info.name
}

// commandInfo 码表条目
type commandInfo struct {
	name     string
	hasParam bool
}

// commandTable 下行码表（来自参考控制软件，而非手册正文）
var commandTable = map[Code]commandInfo{
	CodeNext:                  {"next", false},
	CodePrevious:              {"previous", false},
	CodeTrack:                 {"track", true},
	CodeIncreaseVolume:        {"volume_up", false},
	CodeDecreaseVolume:        {"volume_down", false},
	CodeSetVolume:             {"set_volume", true},
	CodeSetEq:                 {"set_eq", true},
	CodeSetPlaybackMode:       {"set_playback_mode", true},
	CodeSetPlaybackSource:     {"set_playback_source", true},
	CodeStandby:               {"standby", false},
	CodeWake:                  {"wake", false},
	CodeReset:                 {"reset", false},
	CodePlayback:              {"play", false},
	CodePause:                 {"pause", false},
	CodeSetFolder:             {"set_folder", true},
	CodeSetVolumeAdjust:       {"set_volume_adjust", true},
	CodeRepeatPlay:            {"repeat_play", true},
	CodeStay1:                 {"stay1", false},
	CodeStay2:                 {"stay2", false},
	CodeStay3:                 {"stay3", false},
	CodeInitParameters:        {"init_parameters", true},
	CodeRequestRetransmission: {"request_retransmission", false},
	CodeReply:                 {"reply", false},
	CodeGetStatus:             {"get_status", false},
	CodeGetVolume:             {"get_volume", false},
	CodeGetEq:                 {"get_eq", false},
	CodeGetPlaybackMode:       {"get_playback_mode", false},
	CodeGetSoftwareVersion:    {"get_software_version", false},
	CodeGetTfFileCount:        {"get_tf_file_count", false},
	CodeGetUDiskFileCount:     {"get_udisk_file_count", false},
	CodeGetFlashFileCount:     {"get_flash_file_count", false},
	CodeKeepOn:                {"keep_on", false},
	CodeGetTfCurrentTrack:     {"get_tf_current_track", false},
	CodeGetUDiskCurrentTrack:  {"get_udisk_current_track", false},
	CodeGetFlashCurrentTrack:  {"get_flash_current_track", false},
}

var commandByName = func() map[string]Code {
	m := make(map[string]Code, len(commandTable))
	for code, info := range commandTable {
		m[info.name] = code
	}
	return m
}()

// LookupCommand 按命令码还原命令，命令码不在码表内时 ok=false
func LookupCommand(code Code, param uint16) (Command, bool) {
	info, ok := commandTable[code]
	if !ok {
		return Command{}, false
	}
	if !info.hasParam {
		param = 0
	}
	return Command{code: code, param: param}, true
}

// CommandByName 按名称构造命令，无参数命令忽略 param
func CommandByName(name string, param uint16) (Command, error) {
	code, ok := commandByName[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommandName, name)
	}
	cmd, _ := LookupCommand(code, param)
	return cmd, nil
}

// CommandName 返回命令码对应的名称
func CommandName(code Code) (string, bool) {
	info, ok := commandTable[code]
	return info.name, ok
}

// HasParam 命令是否携带参数
func HasParam(code Code) bool { return commandTable[code].hasParam }

// Codes 返回码表中全部命令码（升序）
func Codes() []Code {
	out := make([]Code, 0, len(commandTable))
	for c := Code(0); ; c++ {
		if _, ok := commandTable[c]; ok {
			out = append(out, c)
		}
		if c == 0xFF {
			break
		}
	}
	return out
}
