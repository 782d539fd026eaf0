// Package storage provides the query audit models and repositories.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// QueryAudit is one answered question.
type QueryAudit struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category"`
	Source     string    `json:"source"`
	RuleID     string    `json:"rule_id,omitempty"`
	Confidence float64   `json:"confidence"`
	Fallback   bool      `json:"fallback"`
	Cached     bool      `json:"cached"`
	Mode       string    `json:"mode"`
	LatencyMs  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// SourceStats aggregates audit rows per answer source.
type SourceStats struct {
	Source        string  `json:"source"`
	Count         int     `json:"count"`
	Fallbacks     int     `json:"fallbacks"`
	AvgConfidence float64 `json:"avg_confidence"`
}
