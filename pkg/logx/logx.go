// Package logx is a thin leveled logging facade over log/slog so call
// sites stay terse (Infof, Warnf, ...) and the backend stays swappable.
package logx

import (
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelVar slog.LevelVar

var logger atomic.Pointer[slog.Logger]

func init() {
	levelVar.Set(slog.LevelInfo)
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: &levelVar,
	})))
}

// SetLevel sets the minimum level that is emitted.
func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		levelVar.Set(slog.LevelDebug)
	case LevelInfo:
		levelVar.Set(slog.LevelInfo)
	case LevelWarn:
		levelVar.Set(slog.LevelWarn)
	case LevelError:
		levelVar.Set(slog.LevelError)
	}
}

// SetLogger replaces the backend logger. Mainly for tests.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
}

func Debug(msg string)                  { logger.Load().Debug(msg) }
func Debugf(format string, args ...any) { logger.Load().Debug(fmt.Sprintf(format, args...)) }

func Info(msg string)                  { logger.Load().Info(msg) }
func Infof(format string, args ...any) { logger.Load().Info(fmt.Sprintf(format, args...)) }

func Warn(msg string)                  { logger.Load().Warn(msg) }
func Warnf(format string, args ...any) { logger.Load().Warn(fmt.Sprintf(format, args...)) }

func Error(msg string)                  { logger.Load().Error(msg) }
func Errorf(format string, args ...any) { logger.Load().Error(fmt.Sprintf(format, args...)) }

// Fatalf logs at error level and exits the process.
func Fatalf(format string, args ...any) {
	logger.Load().Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
