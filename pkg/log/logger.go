package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "INFO"
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a LOG_LEVEL value to a LogLevel. Unknown values fall back to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Logger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
	// pkg carries one more caller skip for the package-level helpers
	pkg *Logger
}

func NewLogger(level LogLevel) *Logger {
	return newLogger(level, zapcore.Lock(os.Stdout))
}

// NewWriterLogger builds a logger that writes to w. Mostly useful in tests.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(level, zapcore.AddSync(w))
}

func newLogger(level LogLevel, out zapcore.WriteSyncer) *Logger {
	atomic := zap.NewAtomicLevelAt(level.zapLevel())

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	encCfg.ConsoleSeparator = " "

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), out, atomic)
	// skip Logger.log and the exported method so file:line points at the caller
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))

	l := &Logger{
		level: atomic,
		sugar: z.Sugar(),
	}
	l.pkg = &Logger{
		level: atomic,
		sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
	return l
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zapLevel())
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(LevelFatal, format, args...)
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	switch level {
	case LevelDebug:
		l.sugar.Debugf(format, args...)
	case LevelInfo:
		l.sugar.Infof(format, args...)
	case LevelWarn:
		l.sugar.Warnf(format, args...)
	case LevelError:
		l.sugar.Errorf(format, args...)
	case LevelFatal:
		l.sugar.Fatalf(format, args...)
	}
}

type FileLogger struct {
	*Logger
	file *os.File
}

func NewFileLogger(logFile string, level LogLevel) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &FileLogger{
		Logger: newLogger(level, zapcore.AddSync(file)),
		file:   file,
	}, nil
}

func (l *FileLogger) Close() error {
	if l.file == nil {
		return nil
	}
	_ = l.Sync()
	return l.file.Close()
}

var globalLogger *Logger

func InitLogger(level LogLevel) {
	globalLogger = NewLogger(level)
}

// SetLogger replaces the global logger.
func SetLogger(l *Logger) {
	globalLogger = l
}

func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

func pkgLogger() *Logger {
	l := GetLogger()
	if l.pkg != nil {
		return l.pkg
	}
	return l
}

// Convenience functions
func Debug(format string, args ...interface{}) {
	pkgLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	pkgLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	pkgLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	pkgLogger().Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	pkgLogger().Fatal(format, args...)
}
