package obs

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level  string
	Pretty bool
	// Atomic, when set, receives the parsed level and backs the logger so
	// the level can be changed at runtime.
	Atomic *zap.AtomicLevel
	App    string
	Env    string
	Ver    string

	// File enables a rotating JSON sink next to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func NewLogger(c LogConfig) (*zap.Logger, error) {
	var cfg zap.Config
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	level := new(zapcore.Level)
	if err := level.Set(c.Level); err != nil {
		*level = zapcore.InfoLevel
	}
	if c.Atomic != nil {
		c.Atomic.SetLevel(*level)
		cfg.Level = *c.Atomic
	} else {
		cfg.Level = zap.NewAtomicLevelAt(*level)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var opts []zap.Option
	if c.File != "" {
		// The file always gets JSON with production keys, even when stdout is pretty.
		fileEnc := zap.NewProductionEncoderConfig()
		fileEnc.TimeKey = "ts"
		fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEnc),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   c.File,
				MaxSize:    orDefault(c.MaxSizeMB, 10),
				MaxBackups: orDefault(c.MaxBackups, 5),
				MaxAge:     orDefault(c.MaxAgeDays, 14),
				Compress:   true,
			}),
			cfg.Level,
		)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}
	// Options apply in order: the base fields go on after the tee so both sinks carry them.
	opts = append(opts, zap.Fields(
		zap.String("service", c.App),
		zap.String("env", c.Env),
		zap.String("version", c.Ver),
	))

	l, err := cfg.Build(opts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Sync flushes l, ignoring the EINVAL stdout/stderr return on some platforms.
func Sync(l *zap.Logger) {
	if err := l.Sync(); err != nil && !isStdSyncErr(err) {
		_, _ = os.Stderr.WriteString("logger sync: " + err.Error() + "\n")
	}
}

func isStdSyncErr(err error) bool {
	msg := err.Error()
	return msg == "sync /dev/stdout: invalid argument" || msg == "sync /dev/stderr: invalid argument"
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// WithTrace tags l with the trace and span ids carried by ctx, if any.
func WithTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	if l == nil {
		l = zap.L()
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
		zap.Bool("sampled", sc.IsSampled()),
	)
}
