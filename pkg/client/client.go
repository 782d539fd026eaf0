// Package client provides the public Go SDK for the library assistant API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is the public SDK client for the assistant API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewClient creates a new assistant client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8001"
	}
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		userAgent:  "biblio-go-client",
	}, nil
}

// QueryRequest is a question for the assistant.
type QueryRequest struct {
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

// QueryResponse is the assistant's answer.
type QueryResponse struct {
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
	Mode       string  `json:"mode"`
	Details    Details `json:"details"`
}

// Health is the service health report.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Info summarizes the server's loaded knowledge.
type Info struct {
	Mode          string         `json:"mode"`
	Categories    []string       `json:"categories"`
	RulesLoaded   map[string]int `json:"rules_loaded"`
	TotalRules    int            `json:"total_rules"`
	SynonymGroups int            `json:"synonyms_loaded"`
	CacheEnabled  bool           `json:"cache_enabled"`
	AuditEnabled  bool           `json:"audit_enabled"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.StatusCode, msg, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, msg)
}

// Query asks the assistant a question.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	var resp QueryResponse
	if err := c.do(ctx, http.MethodPost, "/chatbot/query", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ask is shorthand for Query without a user id.
func (c *Client) Ask(ctx context.Context, question string) (*QueryResponse, error) {
	return c.Query(ctx, QueryRequest{Question: question})
}

// Health fetches GET /chatbot/health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.do(ctx, http.MethodGet, "/chatbot/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Info fetches GET /chatbot/info.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var resp Info
	if err := c.do(ctx, http.MethodGet, "/chatbot/info", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
