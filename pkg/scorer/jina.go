package scorer

// Jina-compatible reranking API client. The same wire format is served by
// Jina AI (https://api.jina.ai/v1/rerank), vLLM's /v1/rerank endpoint,
// LocalAI, and Text Embeddings Inference, so one client covers every hosted
// cross-encoder deployment:
//
//   POST {base_url}/rerank
//   request:  model, query, documents
//   response: results[{index, relevance_score}]

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

const (
	defaultJinaBaseURL = "https://api.jina.ai/v1"
	defaultJinaModel   = "jina-reranker-v2-base-multilingual"
	defaultJinaTimeout = 30 * time.Second
)

// JinaScorer scores documents through a Jina-compatible reranking API. A
// circuit breaker sheds load when the upstream is failing so a dead scoring
// backend turns into fast errors instead of piled-up timeouts.
type JinaScorer struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

type jinaRerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type jinaRerankResponse struct {
	Results []jinaRankedResult `json:"results"`
	Model   string             `json:"model"`
}

type jinaRankedResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// NewJinaScorer creates a scorer against cfg.BaseURL (Jina AI when empty).
func NewJinaScorer(cfg Config) *JinaScorer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultJinaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultJinaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultJinaTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "rerank-api",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		Timeout: 15 * time.Second,
	})

	return &JinaScorer{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}
}

// Score calls the rerank endpoint once for all documents and maps the
// returned indices back to input order.
func (s *JinaScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.rerank(ctx, query, documents)
	})
	if err != nil {
		return nil, err
	}
	resp := result.(*jinaRerankResponse)

	if len(resp.Results) != len(documents) {
		return nil, fmt.Errorf("rerank API returned %d results for %d documents", len(resp.Results), len(documents))
	}

	// The API sorts results by relevance; restore input order by index.
	scores := make([]float64, len(documents))
	seen := make([]bool, len(documents))
	for _, r := range resp.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank API returned out-of-range index %d", r.Index)
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("rerank API returned duplicate index %d", r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.RelevanceScore
	}
	return scores, nil
}

func (s *JinaScorer) rerank(ctx context.Context, query string, documents []string) (*jinaRerankResponse, error) {
	body, err := json.Marshal(jinaRerankRequest{
		Model:     s.model,
		Query:     query,
		Documents: documents,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rerank response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank API returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed jinaRerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal rerank response: %w", err)
	}
	return &parsed, nil
}

// Close is a no-op; the HTTP client needs no explicit cleanup.
func (s *JinaScorer) Close() error {
	return nil
}
