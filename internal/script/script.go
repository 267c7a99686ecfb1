// Package script 加载并执行命令脚本（YAML），用于启动播放序列和命令行工具。
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfplayer"
)

// Step 脚本中的一步
type Step struct {
	Command string        `yaml:"command" json:"command"`
	Param   uint16        `yaml:"param,omitempty" json:"param,omitempty"`
	Folder  uint8         `yaml:"folder,omitempty" json:"folder,omitempty"` // set_folder
	File    uint8         `yaml:"file,omitempty" json:"file,omitempty"`     // set_folder
	Enable  bool          `yaml:"enable,omitempty" json:"enable,omitempty"` // set_volume_adjust
	Gain    uint8         `yaml:"gain,omitempty" json:"gain,omitempty"`     // set_volume_adjust
	Delay   time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`   // 发送后等待
}

// Script 命令脚本文件
type Script struct {
	Steps []Step `yaml:"steps"`
}

// Sender 命令发送方（*link.Link）
type Sender interface {
	Send(ctx context.Context, cmd dfplayer.Command) ([]byte, error)
}

// Build 把一步转换为命令
func (s Step) Build() (dfplayer.Command, error) {
	switch s.Command {
	case "set_folder":
		if s.Folder != 0 || s.File != 0 {
			return dfplayer.SetFolder(s.Folder, s.File), nil
		}
	case "set_volume_adjust":
		if s.Enable || s.Gain != 0 {
			return dfplayer.SetVolumeAdjust(s.Enable, s.Gain), nil
		}
	}
	return dfplayer.CommandByName(s.Command, s.Param)
}

// Load 读取脚本文件并校验每一步
func Load(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	var sc Script
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("unmarshal script: %w", err)
	}
	for i, st := range sc.Steps {
		if _, err := st.Build(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &sc, nil
}

// Run 依次发送每一步。ACK 超时不中断脚本，其余错误立即返回。
// onSent 可为 nil，每步发送后回调。
func Run(ctx context.Context, sender Sender, steps []Step, onSent func(step Step, frame []byte, err error)) error {
	for i, st := range steps {
		cmd, err := st.Build()
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		frame, err := sender.Send(ctx, cmd)
		if onSent != nil {
			onSent(st, frame, err)
		}
		if err != nil && !errors.Is(err, link.ErrAckTimeout) {
			return fmt.Errorf("step %d (%s): %w", i+1, cmd, err)
		}
		if st.Delay > 0 {
			select {
			case <-time.After(st.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// ParseArg 解析命令行参数形式的一步：
//
//	next
//	track:3
//	set_folder:4/12      文件夹/文件
//	set_volume_adjust:1/20 开关/增益
//	track:3@2s           发送后等待 2s
func ParseArg(arg string) (Step, error) {
	var st Step
	if i := strings.LastIndexByte(arg, '@'); i >= 0 {
		d, err := time.ParseDuration(arg[i+1:])
		if err != nil {
			return st, fmt.Errorf("invalid delay in %q: %w", arg, err)
		}
		st.Delay = d
		arg = arg[:i]
	}
	name, value, hasValue := strings.Cut(arg, ":")
	st.Command = name
	if hasValue {
		if a, b, pair := strings.Cut(value, "/"); pair {
			hi, err := strconv.ParseUint(a, 10, 8)
			if err != nil {
				return st, fmt.Errorf("invalid param in %q: %w", arg, err)
			}
			lo, err := strconv.ParseUint(b, 10, 8)
			if err != nil {
				return st, fmt.Errorf("invalid param in %q: %w", arg, err)
			}
			switch name {
			case "set_folder":
				st.Folder, st.File = uint8(hi), uint8(lo)
			case "set_volume_adjust":
				st.Enable, st.Gain = hi != 0, uint8(lo)
			default:
				st.Param = uint16(hi)<<8 | uint16(lo)
			}
		} else {
			p, err := strconv.ParseUint(value, 0, 16)
			if err != nil {
				return st, fmt.Errorf("invalid param in %q: %w", arg, err)
			}
			st.Param = uint16(p)
		}
	}
	if _, err := st.Build(); err != nil {
		return st, err
	}
	return st, nil
}
