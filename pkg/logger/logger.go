// Package logger is the structured logging facade used across the service.
// The only implementation writes JSON through zap.
package logger

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//go:generate mockgen -source=logger.go -destination=./mock/logger.go -package=mock_logger

// Level shares zapcore's numbering so conversions are plain casts.
type Level int8

const (
	DebugLevel = Level(zapcore.DebugLevel)
	InfoLevel  = Level(zapcore.InfoLevel)
	WarnLevel  = Level(zapcore.WarnLevel)
	ErrorLevel = Level(zapcore.ErrorLevel)
)

// Attr is a typed log field.
type Attr = zap.Field

type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)

	LogAttrs(ctx context.Context, level Level, msg string, attrs ...Attr)

	// Ctx returns a logger that stamps the request ID carried by ctx.
	Ctx(ctx context.Context) Logger
	With(keysAndValues ...any) Logger
}

// ParseLevel maps a config value onto a Level. Unknown values fall back to info.
func ParseLevel(s string) Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(s)))
	if err != nil || lvl < zapcore.DebugLevel || lvl > zapcore.ErrorLevel {
		return InfoLevel
	}
	return Level(lvl)
}

func (l Level) String() string {
	return strings.ToUpper(zapcore.Level(l).String())
}

func String(key, value string) Attr { return zap.String(key, value) }
func Int(key string, value int) Attr { return zap.Int(key, value) }
func Int64(key string, value int64) Attr { return zap.Int64(key, value) }
func Bool(key string, value bool) Attr { return zap.Bool(key, value) }
func Time(key string, value time.Time) Attr { return zap.Time(key, value) }
func Duration(key string, value time.Duration) Attr { return zap.Duration(key, value) }
func Any(key string, value any) Attr { return zap.Any(key, value) }

// Err logs err under "error"; a nil err adds nothing.
func Err(err error) Attr { return zap.Error(err) }
