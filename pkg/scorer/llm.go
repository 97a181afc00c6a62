package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"
)

const defaultLLMModel = "gpt-4o-mini"

// LLMScorer scores documents by asking an OpenAI-compatible chat model to
// grade each one against the query. Slower and noisier than a dedicated
// cross-encoder, but usable anywhere an inference API exists.
type LLMScorer struct {
	client *openai.Client
	model  string
}

type llmScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type llmScoreResponse struct {
	Scores []llmScore `json:"scores"`
}

// NewLLMScorer creates a scorer backed by an OpenAI-compatible endpoint.
func NewLLMScorer(cfg Config) *LLMScorer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultLLMModel
	}

	return &LLMScorer{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

// Score prompts the model for a JSON score list and maps it back to input
// order. Missing entries score zero rather than failing the whole batch.
func (s *LLMScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0, // deterministic scoring
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a relevance scoring system. Respond with JSON only.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScoringPrompt(query, documents),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return parseScores(resp.Choices[0].Message.Content, len(documents))
}

func buildScoringPrompt(query string, documents []string) string {
	var sb strings.Builder
	sb.WriteString("Score each document's relevance to the query from 0.0 to 1.0.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocuments:\n")
	for i, doc := range documents {
		fmt.Fprintf(&sb, "[%d] %s\n", i, doc)
	}
	sb.WriteString("\nRespond with exactly this JSON shape and nothing else:\n")
	sb.WriteString(`{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.2}]}`)
	return sb.String()
}

// parseScores extracts the score list from the model output. Code fences are
// stripped and structurally broken JSON goes through jsonrepair before the
// batch is rejected.
func parseScores(content string, numDocs int) ([]float64, error) {
	content = stripCodeFence(strings.TrimSpace(content))

	var parsed llmScoreResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil {
			return nil, fmt.Errorf("parse scores: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return nil, fmt.Errorf("parse repaired scores: %w", err)
		}
	}
	if len(parsed.Scores) == 0 {
		return nil, fmt.Errorf("model returned no scores")
	}

	scores := make([]float64, numDocs)
	for _, sc := range parsed.Scores {
		if sc.DocIndex < 0 || sc.DocIndex >= numDocs {
			continue
		}
		scores[sc.DocIndex] = clamp01(sc.Score)
	}
	return scores, nil
}

func stripCodeFence(s string) string {
	if idx := strings.Index(s, "```json"); idx != -1 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+len("```"):]
	} else {
		return s
	}
	if end := strings.Index(s, "```"); end != -1 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Close is a no-op; the API client holds no local resources.
func (s *LLMScorer) Close() error {
	return nil
}
