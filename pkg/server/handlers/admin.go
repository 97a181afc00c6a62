package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rerankd/rerankd"
	"github.com/rerankd/rerankd/pkg/server/dto"
)

// Self-test fixture: the canonical question and documents the service ranks
// when asked to verify itself end to end.
var (
	selfTestQuestion  = "What is a panda?"
	selfTestDocuments = []string{
		"The giant panda is a bear native to China.",
		"Python is a programming language.",
		"Pandas eat bamboo as their main food source.",
	}
)

// AdminHandler handles model lifecycle and self-test requests.
type AdminHandler struct {
	svc *rerankd.Service
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(svc *rerankd.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Unload handles POST /unload. Releasing an already-released model is a
// no-op, so this always succeeds.
func (h *AdminHandler) Unload(c *gin.Context) {
	h.svc.Unload()
	c.JSON(http.StatusOK, dto.UnloadResponse{
		Status:      "unloaded",
		ModelLoaded: false,
	})
}

// SelfTest handles GET /selftest: ranks the built-in fixture through the
// full scoring path and returns the result.
func (h *AdminHandler) SelfTest(c *gin.Context) {
	ranked, elapsed, err := h.svc.Rank(c.Request.Context(), selfTestQuestion, selfTestDocuments, len(selfTestDocuments))
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "selftest_failed",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toRankResponse(ranked, elapsed.Seconds()))
}
