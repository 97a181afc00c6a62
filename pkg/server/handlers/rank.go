package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rerankd/rerankd"
	"github.com/rerankd/rerankd/pkg/server/dto"
)

// RankHandler handles document ranking requests.
type RankHandler struct {
	svc *rerankd.Service
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(svc *rerankd.Service) *RankHandler {
	return &RankHandler{svc: svc}
}

// Rank handles POST /rank. Request validation happens here so the core can
// assume a non-empty document list and a clamped top_k.
func (h *RankHandler) Rank(c *gin.Context) {
	var req dto.RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	if len(req.Documents) == 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "no documents provided",
		})
		return
	}
	if req.TopK == 0 {
		req.TopK = dto.DefaultTopK
	}
	if req.TopK < 1 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_request",
			Message: "top_k must be >= 1",
		})
		return
	}
	if req.TopK > len(req.Documents) {
		req.TopK = len(req.Documents)
	}

	ranked, elapsed, err := h.svc.Rank(c.Request.Context(), req.Question, req.Documents, req.TopK)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "ranking_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toRankResponse(ranked, elapsed.Seconds()))
}

func toRankResponse(ranked []rerankd.RankedDocument, seconds float64) dto.RankResponse {
	docs := make([]dto.RankedDocument, len(ranked))
	for i, r := range ranked {
		docs[i] = dto.RankedDocument{Document: r.Document, Score: r.Score}
	}
	return dto.RankResponse{
		RankedDocuments: docs,
		ExecutionTime:   seconds,
	}
}
