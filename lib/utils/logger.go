package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger builds the development logger used across the server. An
// unknown level falls back to info.
func SetupLogger(level string) *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		parsedLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(parsedLevel)

	logger := zap.Must(config.Build())
	return logger.Sugar()
}
