// dfplay 直接通过串口（或串口透传桥）控制 DFPlayer 模块：
//
//	dfplay -port /dev/ttyUSB0 [-ack] [-script boot.yaml] set_volume:20 track:3 ...
//	dfplay -addr 192.168.1.50:4001 next
//	dfplay -list
//	dfplay -decode 7eff063d000007feb7 ef
//
// 依次发送命令，然后持续打印模块上报的消息直到中断（-wait 指定超时）。
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/dfplayer-server/internal/config"
	"github.com/taoyao-code/dfplayer-server/internal/link"
	"github.com/taoyao-code/dfplayer-server/internal/logging"
	"github.com/taoyao-code/dfplayer-server/internal/protocol/dfplayer"
	"github.com/taoyao-code/dfplayer-server/internal/script"
	serialport "github.com/taoyao-code/dfplayer-server/internal/transport/serial"
)

func main() {
	var (
		port       = flag.String("port", "", "serial port, e.g. /dev/ttyUSB0")
		baud       = flag.Int("baud", serialport.DefaultBaudRate, "baud rate")
		addr       = flag.String("addr", "", "serial-over-TCP bridge address (instead of -port)")
		ack        = flag.Bool("ack", false, "request ACK for every command")
		ackTimeout = flag.Duration("ack-timeout", 500*time.Millisecond, "ACK wait timeout")
		interval   = flag.Duration("interval", 100*time.Millisecond, "minimum gap between commands")
		scriptPath = flag.String("script", "", "YAML command script, run before positional commands")
		wait       = flag.Duration("wait", 0, "stop printing messages after this long (0 = until interrupted)")
		list       = flag.Bool("list", false, "list serial ports and exit")
		decode     = flag.String("decode", "", "decode one hex frame (spaces allowed) and exit")
		level      = flag.String("log", "warn", "log level")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: dfplay [flags] command[:param][@delay] ...\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(flag.CommandLine.Output(), "\ncommands:")
		for _, c := range dfplayer.Codes() {
			name, _ := dfplayer.CommandName(c)
			fmt.Fprintf(flag.CommandLine.Output(), " %s", name)
		}
		fmt.Fprintln(flag.CommandLine.Output())
	}
	flag.Parse()

	if *decode != "" {
		m, err := decodeHex(*decode)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s  kind=%s code=0x%02X param=%d feedback=%t\n", m, m.Kind, byte(m.Code), m.Param, m.Feedback)
		return
	}

	if *list {
		ports, err := serialport.List()
		if err != nil {
			fatalf("%v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	logger, err := logging.InitLogger(cfgpkg.LoggingConfig{Level: *level, Format: "console"})
	if err != nil {
		fatalf("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	steps, err := collectSteps(*scriptPath, flag.Args())
	if err != nil {
		fatalf("%v", err)
	}

	conn, remote, source, err := openConn(*port, *baud, *addr)
	if err != nil {
		fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l := link.New(conn, link.Options{
		Source:          source,
		Remote:          remote,
		RequestAck:      *ack,
		AckTimeout:      *ackTimeout,
		CommandInterval: *interval,
		Logger:          logger,
		OnMessage: func(_ string, m dfplayer.Message) {
			fmt.Printf("<- %s\n", m)
		},
	})
	runDone := make(chan error, 1)
	go func() { runDone <- l.Run(ctx) }()

	err = script.Run(ctx, l, steps, func(st script.Step, frame []byte, err error) {
		switch {
		case err != nil && frame != nil:
			fmt.Printf("-> %s  %s  (%v)\n", st.Command, hex.EncodeToString(frame), err)
		case err != nil:
			fmt.Printf("-> %s  (%v)\n", st.Command, err)
		default:
			fmt.Printf("-> %s  %s\n", st.Command, hex.EncodeToString(frame))
		}
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("command failed", zap.Error(err))
	}

	if *wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(*wait):
		}
		cancel()
	}
	if err := <-runDone; err != nil {
		fatalf("%v", err)
	}
}

func collectSteps(path string, args []string) ([]script.Step, error) {
	var steps []script.Step
	if path != "" {
		sc, err := script.Load(path)
		if err != nil {
			return nil, err
		}
		steps = append(steps, sc.Steps...)
	}
	for _, a := range args {
		st, err := script.ParseArg(a)
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	return steps, nil
}

// decodeHex 解析日志或抓包中的十六进制帧
func decodeHex(s string) (dfplayer.Message, error) {
	raw, err := hex.DecodeString(strings.NewReplacer(" ", "", ":", "", "0x", "").Replace(s))
	if err != nil {
		return dfplayer.Message{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != dfplayer.FrameSize {
		return dfplayer.Message{}, fmt.Errorf("frame must be %d bytes, got %d", dfplayer.FrameSize, len(raw))
	}
	return dfplayer.ParseFrame(raw)
}

func openConn(port string, baud int, addr string) (io.ReadWriteCloser, string, string, error) {
	switch {
	case addr != "":
		c, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			return nil, "", "", err
		}
		return c, addr, "tcp", nil
	case port != "":
		p, err := serialport.Open(cfgpkg.SerialConfig{Port: port, BaudRate: baud})
		if err != nil {
			return nil, "", "", err
		}
		return p, port, "serial", nil
	default:
		return nil, "", "", fmt.Errorf("either -port or -addr is required")
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "dfplay: "+format+"\n", args...)
	os.Exit(1)
}
