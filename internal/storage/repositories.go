package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrInvalid  = errors.New("invalid record")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// DefaultListLimit caps ListRecent when no limit is given.
const DefaultListLimit = 20

// AuditRepository persists answered questions.
type AuditRepository struct {
	db DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert stores one audit row, assigning an ID and timestamp when missing.
func (r *AuditRepository) Insert(ctx context.Context, audit *QueryAudit) error {
	if audit == nil || (audit.Question == "" && audit.Answer == "") {
		return fmt.Errorf("%w: empty audit row", ErrInvalid)
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO query_audit (id, user_id, question, answer, category, source,
			rule_id, confidence, fallback, cached, mode, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.UserID, audit.Question, audit.Answer, audit.Category, audit.Source,
		audit.RuleID, audit.Confidence, audit.Fallback, audit.Cached, audit.Mode,
		audit.LatencyMs, audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query_audit: %w", err)
	}
	return nil
}

const auditColumns = `id, user_id, question, answer, category, source, rule_id,
	confidence, fallback, cached, mode, latency_ms, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAudit(row rowScanner) (*QueryAudit, error) {
	a := &QueryAudit{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.Question, &a.Answer, &a.Category, &a.Source, &a.RuleID,
		&a.Confidence, &a.Fallback, &a.Cached, &a.Mode, &a.LatencyMs, &a.CreatedAt,
	)
	return a, err
}

// GetByID retrieves an audit row by ID.
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*QueryAudit, error) {
	query := `SELECT ` + auditColumns + ` FROM query_audit WHERE id = $1`
	a, err := scanAudit(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListRecent returns the newest rows first.
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*QueryAudit, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT ` + auditColumns + ` FROM query_audit ORDER BY created_at DESC, id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*QueryAudit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// StatsBySource aggregates rows per answer source, ordered by source.
func (r *AuditRepository) StatsBySource(ctx context.Context) ([]SourceStats, error) {
	query := `
		SELECT source, COUNT(*),
			SUM(CASE WHEN fallback THEN 1 ELSE 0 END),
			AVG(confidence)
		FROM query_audit
		GROUP BY source
		ORDER BY source
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []SourceStats
	for rows.Next() {
		var s SourceStats
		if err := rows.Scan(&s.Source, &s.Count, &s.Fallbacks, &s.AvgConfidence); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// DeleteBefore removes rows older than cutoff and reports how many went.
func (r *AuditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM query_audit WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
