// Package audit writes an append-only JSON-lines trail of ledger appends and
// trade transitions.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"trade-journal/internal/models"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventTransaction  EventType = "TRANSACTION_APPENDED"
	EventTxDeleted    EventType = "TRANSACTION_DELETED"
	EventTransition   EventType = "TRADE_TRANSITION"
	EventOrderUpdated EventType = "ORDER_UPDATED"
)

// Event represents a single audit log entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType EventType         `json:"event_type"`
	SessionID string            `json:"session_id"`
	AccountID string            `json:"account_id,omitempty"`
	TradeID   string            `json:"trade_id,omitempty"`
	TxID      string            `json:"tx_id,omitempty"`
	OrderID   string            `json:"order_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Recorder receives audit events from the lifecycle engine.
type Recorder interface {
	RecordTransaction(ctx context.Context, tx *models.Transaction) error
	RecordDeletion(ctx context.Context, accountID, txID string) error
	RecordTransition(ctx context.Context, trade *models.Trade, from models.Status) error
	RecordOrder(ctx context.Context, order *models.Order) error
}

// Logger handles audit logging.
type Logger struct {
	writer    io.Writer
	closer    io.Closer
	mu        sync.Mutex
	sessionID string
	now       func() time.Time
}

// Config holds audit logger configuration.
type Config struct {
	LogDir     string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		LogDir:     filepath.Join(home, ".config", "trade-journal", "audit"),
		MaxSize:    50,
		MaxBackups: 30,
		MaxAge:     365,
		Compress:   true,
	}
}

// NewLogger creates a rotating audit logger under cfg.LogDir.
func NewLogger(cfg Config) (*Logger, error) {
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "audit.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
	l := NewWriterLogger(w)
	l.closer = w
	return l, nil
}

// NewWriterLogger creates an audit logger writing to w.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{
		writer:    w,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

// Log writes one event.
func (l *Logger) Log(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Timestamp = l.now().UTC()
	event.SessionID = l.sessionID

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serializing audit event: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	return nil
}

// RecordTransaction implements Recorder.
func (l *Logger) RecordTransaction(ctx context.Context, tx *models.Transaction) error {
	return l.Log(ctx, Event{
		EventType: EventTransaction,
		AccountID: tx.AccountID,
		TradeID:   tx.TradeID,
		TxID:      tx.ID,
		Details: map[string]string{
			"category": tx.Category.Key(),
			"currency": string(tx.Currency),
			"amount":   tx.Amount.String(),
		},
	})
}

// RecordDeletion implements Recorder.
func (l *Logger) RecordDeletion(ctx context.Context, accountID, txID string) error {
	return l.Log(ctx, Event{EventType: EventTxDeleted, AccountID: accountID, TxID: txID})
}

// RecordTransition implements Recorder.
func (l *Logger) RecordTransition(ctx context.Context, trade *models.Trade, from models.Status) error {
	return l.Log(ctx, Event{
		EventType: EventTransition,
		AccountID: trade.AccountID,
		TradeID:   trade.ID,
		Details: map[string]string{
			"from": string(from),
			"to":   string(trade.Status),
		},
	})
}

// RecordOrder implements Recorder.
func (l *Logger) RecordOrder(ctx context.Context, order *models.Order) error {
	return l.Log(ctx, Event{
		EventType: EventOrderUpdated,
		TradeID:   order.TradeID,
		OrderID:   order.ID,
		Details: map[string]string{
			"role":            string(order.Role),
			"broker_order_id": order.BrokerOrderID,
			"price":           order.Price.String(),
		},
	})
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

var _ Recorder = (*Logger)(nil)
