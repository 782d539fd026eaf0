package retrieval

import (
	"time"

	"github.com/JuanR0/biblio/internal/observability"
)

// Monitor observes the steps of Engine.Answer. Implementations must be safe
// for concurrent use and must not block.
type Monitor interface {
	Start(req Request)
	Normalized(normalized string)
	Categorized(c Categorization)
	Expanded(variants []string)
	RuleScored(category, ruleID string, score float64)
	GeneralConsidered(from string, best, general float64, switched bool)
	FallbackUsed(category, reason string)
	CacheHit(normalized string)
	Finish(res MatchResult, elapsed time.Duration)
}

// noopMonitor discards every event.
type noopMonitor struct{}

var _ Monitor = noopMonitor{}

func (noopMonitor) Start(Request)                                    {}
func (noopMonitor) Normalized(string)                                {}
func (noopMonitor) Categorized(Categorization)                       {}
func (noopMonitor) Expanded([]string)                                {}
func (noopMonitor) RuleScored(string, string, float64)               {}
func (noopMonitor) GeneralConsidered(string, float64, float64, bool) {}
func (noopMonitor) FallbackUsed(string, string)                      {}
func (noopMonitor) CacheHit(string)                                  {}
func (noopMonitor) Finish(MatchResult, time.Duration)                {}

// LogMonitor writes pipeline events as structured debug logs.
type LogMonitor struct {
	logger *observability.Logger
}

var _ Monitor = (*LogMonitor)(nil)

// NewLogMonitor creates a monitor on logger.
func NewLogMonitor(logger *observability.Logger) *LogMonitor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogMonitor{logger: logger.WithComponent("engine")}
}

func (m *LogMonitor) Start(req Request) {
	m.logger.Debug().Str("question", req.Question).Msg("Processing question")
}

func (m *LogMonitor) Normalized(normalized string) {
	m.logger.Debug().Str("normalized", normalized).Msg("Question normalized")
}

func (m *LogMonitor) Categorized(c Categorization) {
	ev := m.logger.Debug().
		Str("category", c.Category).
		Float64("confidence", c.Confidence)
	if c.Exclusive != "" {
		ev = ev.Str("exclusive", c.Exclusive)
	}
	if len(c.Phrases) > 0 {
		ev = ev.Strs("phrases", c.Phrases)
	}
	if c.Scores != nil {
		ev = ev.Interface("scores", c.Scores)
	}
	ev.Bool("defaulted", c.Defaulted).Msg("Question categorized")
}

func (m *LogMonitor) Expanded(variants []string) {
	m.logger.Debug().Int("count", len(variants)).Strs("variants", variants).Msg("Query expanded")
}

func (m *LogMonitor) RuleScored(category, ruleID string, score float64) {
	m.logger.Debug().Str("category", category).Str("rule_id", ruleID).Float64("score", score).Msg("Rule scored")
}

func (m *LogMonitor) GeneralConsidered(from string, best, general float64, switched bool) {
	m.logger.Debug().
		Str("from", from).
		Float64("best", best).
		Float64("general", general).
		Bool("switched", switched).
		Msg("Below threshold, tried general rules")
}

func (m *LogMonitor) FallbackUsed(category, reason string) {
	m.logger.WithCategory(category).Debug().Str("reason", reason).Msg("Using fallback answer")
}

func (m *LogMonitor) CacheHit(normalized string) {
	m.logger.Debug().Str("normalized", normalized).Msg("Answer served from cache")
}

func (m *LogMonitor) Finish(res MatchResult, elapsed time.Duration) {
	m.logger.Info().
		Str("source", res.Source).
		Float64("confidence", res.Confidence).
		Str("rule_id", res.Details.RuleID).
		Bool("fallback", res.Details.Fallback).
		Dur("elapsed", elapsed).
		Msg("Question answered")
}
