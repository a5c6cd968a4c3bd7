package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store *home.Store
	sink  device.Sink
}

// NewHealthHandler creates a new health handler. A nil sink reports the
// bridge as disabled.
func NewHealthHandler(store *home.Store, sink device.Sink) *HealthHandler {
	return &HealthHandler{store: store, sink: sink}
}

// Health handles GET /health
// @Summary      Health check
// @Description  Returns the health status of the API, the state store and the device bridge
// @Tags         health
// @Produce      json
// @Success      200  {object}  types.HealthResponse  "Service is healthy"
// @Failure      503  {object}  types.HealthResponse  "Service is degraded"
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	storeStatus := "loading"
	if h.store.Loaded() {
		storeStatus = "loaded"
	}

	bridgeStatus := "disabled"
	if h.sink != nil {
		bridgeStatus = "disconnected"
		if h.sink.IsConnected() {
			bridgeStatus = "connected"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK

	if storeStatus != "loaded" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, types.HealthResponse{
		Status:    status,
		Store:     storeStatus,
		Bridge:    bridgeStatus,
		Timestamp: time.Now(),
	})
}
