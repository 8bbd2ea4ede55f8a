package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the fixed-shape records shared across packages:
// request start and end, expense mutations and view load failures.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart is logged at debug so the completion record carries the
// useful line at info.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, requestID, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithRequestID(requestID).
		WithClientIP(clientIP)

	sl.logger.DebugContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd picks the level from the status: warn for 4xx, error for 5xx.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, requestID string, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithRequestID(requestID).
		WithClientIP(clientIP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogExpenseDeleted(ctx context.Context, id, username string) {
	fields := NewFields().
		WithUsername(username).
		WithOperation(OpDelete)
	fields[FieldExpenseID] = id

	sl.logger.InfoContext(ctx, "Expense deleted", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogExpenseCreated(ctx context.Context, id string, amountCents int64, category, username string) {
	fields := NewFields().
		WithExpense(id, amountCents, category).
		WithUsername(username).
		WithOperation(OpCreate)

	sl.logger.InfoContext(ctx, "Expense created successfully", fields.ToSlice()...)
}

// LogViewLoadFailed records a read that left its view unchanged. errorType
// is one of the ErrorType constants.
func (sl *StructuredLogger) LogViewLoadFailed(ctx context.Context, view, errorType string, err error) {
	fields := NewFields().
		WithError(err).
		WithOperation(OpLoadAll)
	fields[FieldView] = view
	fields[FieldErrorType] = errorType

	sl.logger.WarnContext(ctx, "Failed to load view", fields.ToSlice()...)
}
