package logging

import "go.uber.org/zap"

// New builds a zap.Logger honoring the "json"/"console" encoding and level
// names recognised by internal/config's Logging section.
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = zapLevel

	return cfg.Build()
}

// WithFields returns a child logger carrying the given structured fields.
func WithFields(logger *zap.Logger, fields Fields) *zap.Logger {
	return logger.With(fields.ToZap()...)
}
