// Package serial 打开本地 UART，供链路层直接读写 DFPlayer 模块。
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/taoyao-code/dfplayer-server/internal/config"
)

const (
	DefaultBaudRate    = 9600 // DFPlayer 出厂波特率
	DefaultReadTimeout = 200 * time.Millisecond
)

// Mode 返回 8-N-1 串口参数，baud <= 0 时使用 9600
func Mode(baud int) *serial.Mode {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open 打开串口。读操作超时返回 0 字节，便于读循环检查退出条件。
func Open(cfg config.SerialConfig) (serial.Port, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("serial: port not configured")
	}
	port, err := serial.Open(cfg.Port, Mode(cfg.BaudRate))
	if err != nil {
		return nil, fmt.Errorf("serial: failed to open %s: %w", cfg.Port, err)
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("serial: failed to set timeout: %w", err)
	}
	// 丢弃上电残留字节
	_ = port.ResetInputBuffer()
	return port, nil
}

// List 列出本机可用串口
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial: list ports: %w", err)
	}
	return ports, nil
}
