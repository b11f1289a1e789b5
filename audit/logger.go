// Package audit records an append-only trail of state changes on agreements.
// Recording is best-effort: a failed write is logged and counted but never
// fails the operation that triggered it.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// FailureObserver is told about every entry that could not be written.
type FailureObserver interface {
	AuditFailed(action string)
}

type Logger struct {
	rec      Recorder
	log      *slog.Logger
	observer FailureObserver
	timeout  time.Duration
}

func NewLogger(rec Recorder, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{rec: rec, log: log, timeout: 5 * time.Second}
}

func (l *Logger) WithObserver(o FailureObserver) *Logger {
	l.observer = o
	return l
}

// Record appends e. It detaches from the caller's cancellation so an entry
// for an already committed change is still written after the client goes away.
func (l *Logger) Record(ctx context.Context, e Entry) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.rec.Append(writeCtx, e); err != nil {
		l.log.WarnContext(ctx, "audit write failed",
			slog.String("agreement_id", e.AgreementID),
			slog.String("action", string(e.Action)),
			slog.Any("error", err),
		)
		if l.observer != nil {
			l.observer.AuditFailed(string(e.Action))
		}
	}
}

// List returns the trail for one agreement, oldest first.
func (l *Logger) List(ctx context.Context, agreementID string) ([]Entry, error) {
	return l.rec.List(ctx, agreementID)
}
