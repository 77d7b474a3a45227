/**
 * @description
 * This package owns the process-wide structured logger. Both binaries call
 * InitLogger once at startup and pass child loggers into their services.
 *
 * Key features:
 * - Stage-aware output: JSON in production, colored console output elsewhere.
 * - LOG_LEVEL override read from the environment.
 * - Component loggers via Named, so every line carries its origin.
 *
 * @dependencies
 * - go.uber.org/zap: structured, leveled logging.
 */

package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProdStage is the stage name that switches the logger to JSON output.
const ProdStage = "production"

// Log is the global logger instance. It is a no-op logger until InitLogger runs,
// so packages that log during tests never dereference nil.
var Log = zap.NewNop()

// Config holds configuration for the logger.
type Config struct {
	Level       string
	Stage       string
	Service     string
	EnableJSON  bool
	EnableColor bool
}

// InitLogger initializes the global logger for the given service and stage.
func InitLogger(service, stage string) *zap.Logger {
	return InitLoggerWithConfig(Config{
		Level:       getEnvWithDefault("LOG_LEVEL", "info"),
		Stage:       stage,
		Service:     service,
		EnableJSON:  stage == ProdStage,
		EnableColor: stage != ProdStage,
	})
}

// InitLoggerWithConfig initializes the global logger with a custom configuration.
func InitLoggerWithConfig(cfg Config) *zap.Logger {
	level := ParseLevel(cfg.Level)

	var zapConfig zap.Config
	if cfg.EnableJSON {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.MessageKey = "message"
		zapConfig.InitialFields = map[string]interface{}{
			"service": cfg.Service,
			"stage":   cfg.Stage,
		}
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		if cfg.EnableColor {
			zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.DisableStacktrace = cfg.Stage == ProdStage && level > zapcore.DebugLevel

	built, err := zapConfig.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}

	Log = built
	zap.ReplaceGlobals(built)
	return built
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(name) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Named returns a child of the global logger scoped to a component.
func Named(component string) *zap.Logger {
	return Log.Named(component)
}

// Sync flushes any buffered log entries.
func Sync() error {
	return Log.Sync()
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
