package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var _ Logger = (*Zap)(nil)

// Config identifies the service in every line and names the rotated log file.
type Config struct {
	Service  string
	Env      string
	Filename string
}

type Zap struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// New builds a JSON logger writing to stdout and, when cfg.Filename is set,
// to a size-rotated file as well.
func New(cfg Config, opts ...Option) (*Zap, error) {
	s := settings{
		level:      InfoLevel,
		filename:   cfg.Filename,
		maxSize:    _defaultMaxSize,
		maxBackups: _defaultMaxBackups,
		maxAge:     _defaultMaxAge,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("logger.New: validation: %w", err)
	}

	sink := zapcore.Lock(os.Stdout)
	if s.filename != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   s.filename,
			MaxSize:    s.maxSize,
			MaxBackups: s.maxBackups,
			MaxAge:     s.maxAge,
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		sink,
		zap.NewAtomicLevelAt(zapcore.Level(s.level)),
	)

	base := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	).With(
		zap.String("service", cfg.Service),
		zap.String("env", cfg.Env),
	)

	return wrap(base), nil
}

// NewNop returns a Logger that discards everything.
func NewNop() *Zap {
	return wrap(zap.NewNop())
}

func wrap(base *zap.Logger) *Zap {
	return &Zap{base: base, sugar: base.Sugar()}
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.FunctionKey = zapcore.OmitKey
	return cfg
}

func (z *Zap) Debugw(msg string, keysAndValues ...any) { z.sugar.Debugw(msg, keysAndValues...) }
func (z *Zap) Infow(msg string, keysAndValues ...any) { z.sugar.Infow(msg, keysAndValues...) }
func (z *Zap) Warnw(msg string, keysAndValues ...any) { z.sugar.Warnw(msg, keysAndValues...) }
func (z *Zap) Errorw(msg string, keysAndValues ...any) { z.sugar.Errorw(msg, keysAndValues...) }

func (z *Zap) LogAttrs(ctx context.Context, level Level, msg string, attrs ...Attr) {
	if ce := z.forContext(ctx).Check(zapcore.Level(level), msg); ce != nil {
		ce.Write(attrs...)
	}
}

func (z *Zap) Ctx(ctx context.Context) Logger {
	return wrap(z.forContext(ctx))
}

func (z *Zap) With(keysAndValues ...any) Logger {
	return wrap(z.sugar.With(keysAndValues...).Desugar())
}

func (z *Zap) Sync() error {
	return z.base.Sync()
}

func (z *Zap) forContext(ctx context.Context) *zap.Logger {
	if id := RequestID(ctx); id != "" {
		return z.base.With(zap.String("request_id", id))
	}
	return z.base
}
