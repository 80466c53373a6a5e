// Package log 提供基于 zerolog 的日志工具，终端输出支持 console/json 两种格式，文件输出经 lumberjack 轮转.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/ingestvault/pkg/configs"
)

var (
	logger   zerolog.Logger
	initOnce sync.Once
)

// Init 初始化全局 logger.
func Init() {
	initOnce.Do(initLogger)
}

func initLogger() {
	cfg := configs.GetConfig()

	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to info\n", cfg.Log.Level)

		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)

	writers := []io.Writer{Terminal(cfg.Log.Format, os.Stderr)}
	if cfg.Log.EnableFile {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Log.FilePath,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
			Compress:   cfg.Log.Compress,
		})
	}

	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = New(io.MultiWriter(writers...), cfg.Tracing.ServiceName, cfg.Server.Debug)
	log.Logger = logger
}

// Terminal 按格式包装终端输出，未知格式按 console 处理.
func Terminal(format string, w io.Writer) io.Writer {
	if format == configs.LogFormatJSON {
		return w
	}

	return zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
		cw.Out = w
		cw.TimeFormat = time.Kitchen
	})
}

// New 创建带 service 字段的 logger，debug 时附带调用位置.
func New(w io.Writer, service string, debug bool) zerolog.Logger {
	ctx := zerolog.New(w).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}

	if debug {
		ctx = ctx.Caller().Stack()
	}

	return ctx.Logger()
}

// Logger 返回全局 logger，首次调用时初始化.
func Logger() *zerolog.Logger {
	initOnce.Do(initLogger)

	return &logger
}

// With 返回带固定字段的子 logger，用于单个导入任务等有边界的上下文.
func With(fields map[string]any) zerolog.Logger {
	return Logger().With().Fields(fields).Logger()
}

// Nop 返回丢弃所有输出的 logger，测试中使用.
func Nop() *zerolog.Logger {
	l := zerolog.Nop()

	return &l
}

// GinWriter 把 gin 的调试输出转为 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

// NewGinWriter 创建 GinWriter.
func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.logger.WithLevel(w.level).Str("source", "gin").Msg(msg)
	}

	return len(p), nil
}
