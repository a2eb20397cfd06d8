package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 日志记录器
type Logger struct {
	zerolog.Logger
	writer io.Writer
	closer io.Closer // 用于资源清理
}

func init() {
	// 初始化全局日志配置
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// Close 关闭日志记录器，释放资源
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// newLogger 统一的 Logger 构建方法
func newLogger(w io.Writer, opts ...Option) *Logger {
	logger := &Logger{
		writer: w,
		Logger: zerolog.New(w).With().Timestamp().Logger(),
	}

	// 应用所有选项
	for _, opt := range opts {
		opt(logger)
	}

	return logger
}

// New 创建新的 Logger 实例，输出到控制台
func New(opts ...Option) *Logger {
	return newLogger(consoleWriter(), opts...)
}

// NewFile 创建文件输出的 Logger，按大小轮转
func NewFile(c FileConfig, opts ...Option) *Logger {
	fw := c.fileWriter()
	logger := newLogger(fw, opts...)
	logger.closer = fw
	return logger
}

// NewMulti 创建同时输出到文件和控制台的 Logger
func NewMulti(c FileConfig, opts ...Option) *Logger {
	fw := c.fileWriter()
	multi := zerolog.MultiLevelWriter(fw, consoleWriter())
	logger := newLogger(multi, opts...)
	logger.closer = fw
	return logger
}

// consoleWriter 创建控制台输出 writer
func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.DateTime,
		FormatLevel: func(i any) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
	}
}

// FileConfig 日志文件配置
type FileConfig struct {
	Filename   string `json:"filename"`
	MaxSize    int    `json:"max_size"`    // 单个日志文件最大大小(MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件数量
	MaxAge     int    `json:"max_age"`     // 日志文件保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// fileWriter 创建按大小轮转的文件 writer
func (c FileConfig) fileWriter() *lumberjack.Logger {
	filename := c.Filename
	if filename == "" {
		filename = "echotrace.log"
	}
	maxSize := c.MaxSize
	if maxSize == 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    maxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
		Compress:   c.Compress,
	}
}
