// Package audit emits one record per balance-affecting operation for the
// external audit collaborator. Failure to record never blocks or rolls back
// the operation it describes.
package audit

import (
	"context"
	"log/slog"
)

// Record describes a committed (or failed) balance-affecting operation.
type Record struct {
	Action        string
	UserID        int
	Amount        int
	TransactionID string
	Err           error
}

type Logger interface {
	Log(ctx context.Context, record Record)
}

type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger.With("component", "audit")}
}

func (l *SlogLogger) Log(ctx context.Context, record Record) {
	attrs := []any{
		"action", record.Action,
		"user_id", record.UserID,
		"amount", record.Amount,
		"transaction_id", record.TransactionID,
	}

	if record.Err != nil {
		attrs = append(attrs, "error", record.Err.Error())
		l.logger.ErrorContext(ctx, "ledger operation failed", attrs...)
		return
	}

	l.logger.InfoContext(ctx, "ledger operation", attrs...)
}

// NopLogger discards all records.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Record) {}
