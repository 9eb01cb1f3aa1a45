package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

func init() {
	// Default production logger until Init is called with config.
	l, _ := zap.NewProduction(zap.AddCallerSkip(1))
	sugar = l.Sugar()
}

// Init rebuilds the global logger. format is "json" or "console", level one of
// debug/info/warn/error.
func Init(format, level string) error {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	sugar = l.Sugar()
	return nil
}

func Debug(msg string, keysAndValues ...any) {
	sugar.Debugw(msg, normalize(keysAndValues)...)
}

func Info(msg string, keysAndValues ...any) {
	sugar.Infow(msg, normalize(keysAndValues)...)
}

func Warn(msg string, keysAndValues ...any) {
	sugar.Warnw(msg, normalize(keysAndValues)...)
}

func Error(msg string, keysAndValues ...any) {
	sugar.Errorw(msg, normalize(keysAndValues)...)
}

func Sync() {
	_ = sugar.Sync()
}

// normalize tolerates call sites that pass a bare error instead of key-value
// pairs, e.g. logger.Error("Repo:Create", err).
func normalize(kv []any) []any {
	if len(kv)%2 == 0 {
		return kv
	}
	if err, ok := kv[len(kv)-1].(error); ok {
		return append(kv[:len(kv)-1], "error", err)
	}
	return append(kv, "")
}
