// Package monitoring records an audit trail of answered questions.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JuanR0/biblio/internal/observability"
	"github.com/JuanR0/biblio/internal/retrieval"
	"github.com/JuanR0/biblio/internal/storage"
)

// AuditStore persists audit rows.
type AuditStore interface {
	Insert(ctx context.Context, audit *storage.QueryAudit) error
}

// DefaultWriteTimeout bounds a single audit write.
const DefaultWriteTimeout = 2 * time.Second

// AuditLogger handles audit event logging. A nil store logs only.
type AuditLogger struct {
	logger  *observability.Logger
	store   AuditStore
	timeout time.Duration
}

var _ retrieval.AuditSink = (*AuditLogger)(nil)

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(logger *observability.Logger, store AuditStore) *AuditLogger {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &AuditLogger{
		logger:  logger.WithComponent("audit"),
		store:   store,
		timeout: DefaultWriteTimeout,
	}
}

// WithTimeout overrides the per-write timeout.
func (a *AuditLogger) WithTimeout(d time.Duration) *AuditLogger {
	if d > 0 {
		a.timeout = d
	}
	return a
}

// LogEvent records an audit row. Store failures are returned.
func (a *AuditLogger) LogEvent(ctx context.Context, event *storage.QueryAudit) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	a.logger.Info().
		Str("event_id", event.ID.String()).
		Str("request_id", observability.RequestIDFromContext(ctx)).
		Str("user_id", event.UserID).
		Str("category", event.Category).
		Str("source", event.Source).
		Float64("confidence", event.Confidence).
		Bool("fallback", event.Fallback).
		Int64("latency_ms", event.LatencyMs).
		Msg("Audit event")

	if a.store == nil {
		return nil
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()
	return a.store.Insert(writeCtx, event)
}

// RecordAnswer implements retrieval.AuditSink. Errors are logged, never
// surfaced to the caller.
func (a *AuditLogger) RecordAnswer(ctx context.Context, req retrieval.Request, res retrieval.MatchResult, elapsed time.Duration, cached bool) {
	event := &storage.QueryAudit{
		UserID:     req.UserID,
		Question:   req.Question,
		Answer:     res.Answer,
		Category:   res.Details.Category,
		Source:     res.Source,
		RuleID:     res.Details.RuleID,
		Confidence: res.Confidence,
		Fallback:   res.Details.Fallback,
		Cached:     cached,
		Mode:       res.Mode,
		LatencyMs:  elapsed.Milliseconds(),
	}
	if event.Category == "" {
		event.Category = res.Source
	}

	if err := a.LogEvent(ctx, event); err != nil {
		a.logger.Warn().
			Err(err).
			Str("event_id", event.ID.String()).
			Msg("Failed to persist audit event")
	}
}
