package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/home"
)

// ActivityHandler handles the activity feed and session stats
type ActivityHandler struct {
	store *home.Store
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(store *home.Store) *ActivityHandler {
	return &ActivityHandler{store: store}
}

// ListActivity handles GET /activity
// @Summary      Recent activity
// @Description  Returns the most recent activity entries, newest first
// @Tags         activity
// @Produce      json
// @Param        limit  query     int  false  "Maximum entries (default and max 50)"
// @Success      200    {object}  types.ListActivityResponse
// @Failure      400    {object}  types.ErrorResponse  "Invalid limit"
// @Router       /activity [get]
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	logs := h.store.ActivityLogs()

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		if limit < len(logs) {
			logs = logs[:limit]
		}
	}

	c.JSON(http.StatusOK, types.ListActivityResponse{
		Activity: logs,
		Count:    len(logs),
	})
}

// TokenStats handles GET /stats/tokens
// @Summary      Prompt compression stats
// @Description  Returns the last compression outcome and the session total of tokens saved
// @Tags         stats
// @Produce      json
// @Success      200  {object}  device.TokenStats
// @Router       /stats/tokens [get]
func (h *ActivityHandler) TokenStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.TokenStats())
}
