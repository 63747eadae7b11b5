package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}).
	With().Timestamp().Logger()

// Init 按配置初始化进程级日志器（console 或 json）
func Init(level, format string) {
	lv, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lv == zerolog.NoLevel {
		lv = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lv)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "json") {
		root = zerolog.New(os.Stdout).With().Timestamp().Logger()
		return
	}
	root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05"}).
		With().Timestamp().Logger()
}

// L 进程级日志器
func L() *zerolog.Logger { return &root }

// With 带组件名的子日志器
func With(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
