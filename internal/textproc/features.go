package textproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JuanR0/biblio/internal/observability"
)

// ErrExtractorUnavailable is returned when the linguistic service cannot be used.
var ErrExtractorUnavailable = errors.New("feature extractor unavailable")

// Extractor modes reported in diagnostics.
const (
	ModeBasic    = "basic"
	ModeEnriched = "enriched"
)

// FeatureExtractor produces the content keywords (or lemmas) of normalized text.
// The categorizer and the query expander depend only on this capability.
type FeatureExtractor interface {
	Mode() string
	Extract(ctx context.Context, normalized string) ([]string, error)
}

// BasicExtractor drops stop words while always keeping protected words.
type BasicExtractor struct {
	stopWords map[string]struct{}
	protected map[string]struct{}
}

// NewBasicExtractor creates a stop-word filter. Protected words survive even
// when they also appear in the stop-word list.
func NewBasicExtractor(stopWords, protected []string) *BasicExtractor {
	return &BasicExtractor{
		stopWords: WordSetOf(stopWords),
		protected: WordSetOf(protected),
	}
}

// Mode implements FeatureExtractor.
func (b *BasicExtractor) Mode() string { return ModeBasic }

// Extract implements FeatureExtractor. It never fails.
func (b *BasicExtractor) Extract(_ context.Context, normalized string) ([]string, error) {
	words := strings.Fields(normalized)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := b.protected[w]; ok {
			kept = append(kept, w)
			continue
		}
		if _, ok := b.stopWords[w]; ok {
			continue
		}
		kept = append(kept, w)
	}
	return kept, nil
}

// IsStopWord reports whether a normalized word is a stop word.
func (b *BasicExtractor) IsStopWord(word string) bool {
	_, ok := b.stopWords[word]
	return ok
}

// Token is one analyzed token returned by the linguistic service.
type Token struct {
	Text    string `json:"text"`
	Lemma   string `json:"lemma"`
	POS     string `json:"pos,omitempty"`
	IsStop  bool   `json:"is_stop"`
	IsPunct bool   `json:"is_punct"`
	IsSpace bool   `json:"is_space"`
}

// LemmaConfig configures the linguistic service client.
type LemmaConfig struct {
	Endpoint string // base URL, e.g. http://localhost:8090
	Model    string // e.g. es_core_news_sm
	Timeout  time.Duration
}

// LemmaExtractor calls an external lemmatization service over HTTP.
type LemmaExtractor struct {
	httpClient *http.Client
	endpoint   string
	model      string
}

type analyzeRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type analyzeResponse struct {
	Model  string  `json:"model"`
	Tokens []Token `json:"tokens"`
	Error  string  `json:"error,omitempty"`
}

// NewLemmaExtractor creates a client for the linguistic service.
func NewLemmaExtractor(cfg LemmaConfig) (*LemmaExtractor, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrExtractorUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = "es_core_news_sm"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	return &LemmaExtractor{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
	}, nil
}

// Mode implements FeatureExtractor.
func (l *LemmaExtractor) Mode() string { return ModeEnriched }

// Model returns the configured language model name.
func (l *LemmaExtractor) Model() string { return l.model }

// Analyze sends text to the service and returns its tokens.
func (l *LemmaExtractor) Analyze(ctx context.Context, text string) ([]Token, error) {
	body, err := json.Marshal(analyzeRequest{Text: text, Model: l.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractorUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrExtractorUnavailable, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out analyzeResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrExtractorUnavailable, out.Error)
	}
	return out.Tokens, nil
}

// Extract implements FeatureExtractor. It keeps lemmas of content tokens
// longer than two characters, in normalized form.
func (l *LemmaExtractor) Extract(ctx context.Context, normalized string) ([]string, error) {
	if normalized == "" {
		return nil, nil
	}
	tokens, err := l.Analyze(ctx, normalized)
	if err != nil {
		return nil, err
	}

	lemmas := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.IsStop || tok.IsPunct || tok.IsSpace {
			continue
		}
		lemma := basicForm(tok.Lemma)
		if lemma == "" {
			lemma = basicForm(tok.Text)
		}
		if len(lemma) > 2 {
			lemmas = append(lemmas, lemma)
		}
	}
	return lemmas, nil
}

// FallbackExtractor uses the primary extractor and degrades to the fallback
// on any error. It never returns an error itself.
type FallbackExtractor struct {
	primary  FeatureExtractor
	fallback FeatureExtractor
	logger   *observability.Logger
}

// NewFallbackExtractor wraps primary with a fallback.
func NewFallbackExtractor(primary, fallback FeatureExtractor, logger *observability.Logger) *FallbackExtractor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &FallbackExtractor{primary: primary, fallback: fallback, logger: logger}
}

// Mode implements FeatureExtractor and reports the primary mode.
func (f *FallbackExtractor) Mode() string { return f.primary.Mode() }

// Extract implements FeatureExtractor.
func (f *FallbackExtractor) Extract(ctx context.Context, normalized string) ([]string, error) {
	features, err := f.primary.Extract(ctx, normalized)
	if err == nil {
		return features, nil
	}

	f.logger.Warn().
		Err(err).
		Str("mode", f.primary.Mode()).
		Msg("Feature extraction failed, using basic extractor")
	return f.fallback.Extract(ctx, normalized)
}
