// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days

	// Out replaces stdout for console output when set.
	Out io.Writer
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "trade-journal", "logs", "journal.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	// Console writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.Out != nil,
		})
	}

	// File writer with rotation
	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	return zerolog.New(writer).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a config level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level is one ParseLevel knows.
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithTrade adds a trade and its account to the logger context.
func WithTrade(logger zerolog.Logger, t *models.Trade) zerolog.Logger {
	return logger.With().Str("trade_id", t.ID).Str("account_id", t.AccountID).Str("symbol", t.Symbol).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogTransaction logs a ledger append.
func LogTransaction(logger zerolog.Logger, tx *models.Transaction) {
	logger.Info().
		Str("event", "transaction").
		Str("tx_id", tx.ID).
		Str("account_id", tx.AccountID).
		Str("category", tx.Category.Key()).
		Str("trade_id", tx.TradeID).
		Str("currency", string(tx.Currency)).
		Str("amount", tx.Amount.String()).
		Msg("Transaction appended")
}

// LogTransition logs a trade status change.
func LogTransition(logger zerolog.Logger, tradeID string, from, to models.Status) {
	logger.Info().
		Str("event", "transition").
		Str("trade_id", tradeID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Trade transitioned")
}

// LogRuleViolation logs a rule that blocked funding at the rule's level.
func LogRuleViolation(logger zerolog.Logger, tradeID string, v *errors.RuleViolationError) {
	var event *zerolog.Event
	switch models.RuleLevel(v.Level) {
	case models.LevelAdvice:
		event = logger.Info()
	case models.LevelWarning:
		event = logger.Warn()
	default:
		event = logger.Error()
	}
	event.
		Str("event", "rule").
		Str("trade_id", tradeID).
		Str("rule", v.Rule).
		Str("rule_level", v.Level).
		Str("limit", v.Limit).
		Str("actual", v.Actual).
		Msg("Risk rule blocked funding")
}

// LogBrokerCall logs a broker call.
func LogBrokerCall(logger zerolog.Logger, method, brokerOrderID string, duration time.Duration, err error) {
	if err != nil {
		logger.Warn().
			Str("event", "broker_call").
			Str("method", method).
			Str("broker_order_id", brokerOrderID).
			Dur("duration", duration).
			Err(err).
			Msg("Broker call failed")
		return
	}
	logger.Debug().
		Str("event", "broker_call").
		Str("method", method).
		Str("broker_order_id", brokerOrderID).
		Dur("duration", duration).
		Msg("Broker call completed")
}
