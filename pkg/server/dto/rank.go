package dto

// DefaultTopK is how many documents a ranking request returns when the
// client does not say.
const DefaultTopK = 3

// RankRequest represents a document ranking request.
type RankRequest struct {
	Question  string   `json:"question" binding:"required"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

// RankedDocument represents a document with its relevance score.
type RankedDocument struct {
	Document string  `json:"document"`
	Score    float64 `json:"score"`
}

// RankResponse represents the ranking result. ExecutionTime is in seconds.
type RankResponse struct {
	RankedDocuments []RankedDocument `json:"ranked_documents"`
	ExecutionTime   float64          `json:"execution_time"`
}
