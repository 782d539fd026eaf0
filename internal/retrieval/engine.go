package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/JuanR0/biblio/internal/knowledge"
	"github.com/JuanR0/biblio/internal/observability"
	"github.com/JuanR0/biblio/internal/synonyms"
	"github.com/JuanR0/biblio/internal/textproc"
)

// Request is one incoming question. UserID is opaque and only forwarded to
// the audit sink.
type Request struct {
	Question string `json:"question"`
	UserID   string `json:"user_id,omitempty"`
}

// Details explains how an answer was produced.
type Details struct {
	Category           string  `json:"category"`
	CategoryConfidence float64 `json:"category_confidence"`
	MatchConfidence    float64 `json:"match_confidence"`
	ExpandedQueries    int     `json:"expanded_queries_count"`
	RuleID             string  `json:"rule_id,omitempty"`
	Exclusive          string  `json:"exclusive_keyword,omitempty"`
	Fallback           bool    `json:"fallback"`
	FallbackReason     string  `json:"fallback_reason,omitempty"`
}

// MatchResult is the engine's answer to a question.
type MatchResult struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Mode       string  `json:"mode"`
	Details    Details `json:"details"`
}

// AuditSink receives every answered question. cached reports whether the
// answer came from the response cache. Implementations handle their own
// errors.
type AuditSink interface {
	RecordAnswer(ctx context.Context, req Request, res MatchResult, elapsed time.Duration, cached bool)
}

// Info summarizes the loaded state.
type Info struct {
	Mode          string         `json:"mode"`
	Categories    []string       `json:"categories"`
	RulesLoaded   map[string]int `json:"rules_loaded"`
	TotalRules    int            `json:"total_rules"`
	SynonymGroups int            `json:"synonyms_loaded"`
	CacheEnabled  bool           `json:"cache_enabled"`
	AuditEnabled  bool           `json:"audit_enabled"`
}

type compiledRule struct {
	rule     knowledge.Rule
	examples []Prepared
}

// Engine answers questions against the loaded knowledge. All state is
// built in NewEngine and never mutated, so an Engine is safe for concurrent
// use.
type Engine struct {
	taxonomy    Taxonomy
	scoring     ScoringConfig
	store       *knowledge.Store
	synonyms    *synonyms.Index
	extractor   textproc.FeatureExtractor
	categorizer *Categorizer
	expander    *Expander
	scorer      *Scorer
	fallbacks   *FallbackHandler
	confidence  *ConfidenceCalculator
	rules       map[string][]compiledRule

	logger  *observability.Logger
	monitor Monitor
	cache   *ResponseCache
	audit   AuditSink
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *observability.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMonitor installs a pipeline monitor.
func WithMonitor(m Monitor) Option {
	return func(e *Engine) {
		if m != nil {
			e.monitor = m
		}
	}
}

// WithExtractor sets the feature extractor. The default is a BasicExtractor
// over the taxonomy's stop words.
func WithExtractor(x textproc.FeatureExtractor) Option {
	return func(e *Engine) {
		if x != nil {
			e.extractor = x
		}
	}
}

// WithResponseCache enables answer caching.
func WithResponseCache(c *ResponseCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithAuditSink records every answer.
func WithAuditSink(s AuditSink) Option {
	return func(e *Engine) { e.audit = s }
}

// WithConfidenceCalculator overrides the final confidence blend.
func WithConfidenceCalculator(cc *ConfidenceCalculator) Option {
	return func(e *Engine) {
		if cc != nil {
			e.confidence = cc
		}
	}
}

// NewEngine builds an engine over a knowledge store and a synonym index.
// A nil index disables synonym expansion.
func NewEngine(store *knowledge.Store, idx *synonyms.Index, tax Taxonomy, scoring ScoringConfig, opts ...Option) (*Engine, error) {
	if err := tax.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = knowledge.NewStore(tax.Names(), nil)
	}
	if idx == nil {
		idx = synonyms.Empty()
	}

	e := &Engine{
		taxonomy:   tax,
		scoring:    scoring,
		store:      store,
		synonyms:   idx,
		confidence: NewConfidenceCalculator(),
		logger:     observability.NopLogger(),
		monitor:    noopMonitor{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = textproc.NewBasicExtractor(tax.StopWords, tax.CriticalWords)
	}

	e.categorizer = NewCategorizer(tax, scoring, e.extractor)
	e.expander = NewExpander(idx, tax, e.extractor)
	e.scorer = NewScorer(tax, scoring)
	e.fallbacks = NewFallbackHandler(tax)

	e.rules = make(map[string][]compiledRule, len(tax.Categories))
	for _, name := range tax.Names() {
		for _, r := range store.Rules(name) {
			e.rules[name] = append(e.rules[name], compiledRule{rule: r, examples: e.scorer.PrepareAll(r.Questions)})
		}
	}

	return e, nil
}

// Categorizer returns the engine's categorizer.
func (e *Engine) Categorizer() *Categorizer { return e.categorizer }

// Expander returns the engine's query expander.
func (e *Engine) Expander() *Expander { return e.expander }

// Scorer returns the engine's similarity scorer.
func (e *Engine) Scorer() *Scorer { return e.scorer }

// Taxonomy returns the engine's category configuration.
func (e *Engine) Taxonomy() Taxonomy { return e.taxonomy }

// Store returns the loaded knowledge.
func (e *Engine) Store() *knowledge.Store { return e.store }

// Mode returns the feature extractor mode.
func (e *Engine) Mode() string { return e.extractor.Mode() }

// Info summarizes the loaded knowledge and configuration.
func (e *Engine) Info() Info {
	return Info{
		Mode:          e.Mode(),
		Categories:    e.taxonomy.Names(),
		RulesLoaded:   e.store.Counts(),
		TotalRules:    e.store.Total(),
		SynonymGroups: e.synonyms.Len(),
		CacheEnabled:  e.cache.Enabled(),
		AuditEnabled:  e.audit != nil,
	}
}

type candidate struct {
	ruleID string
	answer string
	score  float64
}

// Answer resolves a question to the best rule answer, a fallback answer, or
// a clarification request for blank input. It never fails.
func (e *Engine) Answer(ctx context.Context, req Request) MatchResult {
	start := time.Now()
	e.monitor.Start(req)

	normalized := textproc.Normalize(req.Question)
	e.monitor.Normalized(normalized)

	if normalized == "" {
		res := MatchResult{
			Answer:  e.taxonomy.Clarification,
			Source:  e.taxonomy.General,
			Mode:    e.Mode(),
			Details: Details{Category: e.taxonomy.General},
		}
		return e.finish(ctx, req, res, start, false)
	}

	if cached, ok := e.cache.Get(ctx, normalized); ok {
		e.monitor.CacheHit(normalized)
		return e.finish(ctx, req, cached, start, true)
	}

	res := e.resolve(ctx, req.Question, normalized)
	if err := e.cache.Set(ctx, normalized, res); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to cache answer")
	}
	return e.finish(ctx, req, res, start, false)
}

func (e *Engine) resolve(ctx context.Context, question, normalized string) MatchResult {
	cat := e.categorizer.Classify(ctx, normalized)
	e.monitor.Categorized(cat)

	variants := e.expander.Expand(ctx, normalized)
	e.monitor.Expanded(variants)
	prepared := e.scorer.PrepareAll(variants)

	best := e.search(cat.Category, prepared)
	source := cat.Category

	threshold := e.scoring.DefaultThreshold
	if spec, ok := e.taxonomy.Category(cat.Category); ok {
		threshold = spec.Threshold
	}
	if best.score < threshold && cat.Category != e.taxonomy.General {
		general := e.search(e.taxonomy.General, prepared)
		switched := general.score > best.score+e.scoring.GeneralMargin
		e.monitor.GeneralConsidered(cat.Category, best.score, general.score, switched)
		if switched {
			best = general
			source = e.taxonomy.General
		}
	}

	details := Details{
		Category:           cat.Category,
		CategoryConfidence: Round3(cat.Confidence),
		MatchConfidence:    Round3(best.score),
		ExpandedQueries:    len(variants),
		Exclusive:          cat.Exclusive,
	}

	if best.score < e.scoring.FallbackFloor {
		answer, reason := e.fallbacks.Answer(source, question)
		e.monitor.FallbackUsed(source, reason)
		details.Fallback = true
		details.FallbackReason = reason
		return MatchResult{
			Answer:     answer,
			Confidence: Round3(e.scoring.FallbackFloor),
			Source:     source,
			Mode:       e.Mode(),
			Details:    details,
		}
	}

	details.RuleID = best.ruleID
	return MatchResult{
		Answer:     best.answer,
		Confidence: Round3(e.confidence.Blend(best.score, cat.Confidence)),
		Source:     source,
		Mode:       e.Mode(),
		Details:    details,
	}
}

// search returns the highest-scoring rule of a category. Earlier rules win
// ties.
func (e *Engine) search(category string, variants []Prepared) candidate {
	var best candidate
	for _, cr := range e.rules[category] {
		score := e.scorer.ScorePrepared(variants, cr.examples)
		e.monitor.RuleScored(category, cr.rule.ID, score)
		if score > best.score {
			best = candidate{ruleID: cr.rule.ID, answer: cr.rule.Answer, score: score}
		}
	}
	return best
}

func (e *Engine) finish(ctx context.Context, req Request, res MatchResult, start time.Time, cached bool) MatchResult {
	elapsed := time.Since(start)
	if e.audit != nil {
		e.audit.RecordAnswer(ctx, req, res, elapsed, cached)
	}
	e.monitor.Finish(res, elapsed)
	return res
}

// String implements fmt.Stringer for log-friendly summaries.
func (r MatchResult) String() string {
	return fmt.Sprintf("%s (%.3f) %q", r.Source, r.Confidence, r.Answer)
}
