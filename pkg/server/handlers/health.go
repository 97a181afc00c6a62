package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rerankd/rerankd"
	"github.com/rerankd/rerankd/pkg/server/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	svc *rerankd.Service
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(svc *rerankd.Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Health handles GET /health. Read-only: reports whether a model handle is
// loaded without ever forcing a load.
func (h *HealthHandler) Health(c *gin.Context) {
	st := h.svc.Status()

	resp := dto.HealthResponse{
		Status:      "ok",
		ModelLoaded: st.Loaded,
		Model:       st.Model,
		FP16:        st.FP16,
		Device: dto.DeviceInfo{
			AcceleratorAvailable: st.Inventory.AcceleratorAvailable,
			AcceleratorCount:     st.Inventory.AcceleratorCount,
			AllocatedBytes:       st.Inventory.AllocatedBytes,
		},
	}
	if st.Device != nil && st.Device.Accelerated() {
		idx := st.Device.Index
		resp.Device.CurrentIndex = &idx
	}

	c.JSON(http.StatusOK, resp)
}
