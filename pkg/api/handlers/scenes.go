package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
)

// ScenesHandler handles scene endpoints
type ScenesHandler struct {
	store *home.Store
}

// NewScenesHandler creates a new scenes handler
func NewScenesHandler(store *home.Store) *ScenesHandler {
	return &ScenesHandler{store: store}
}

// ListScenes handles GET /scenes
// @Summary      List scenes
// @Description  Returns every scene ordered by name
// @Tags         scenes
// @Produce      json
// @Success      200  {object}  types.ListScenesResponse
// @Router       /scenes [get]
func (h *ScenesHandler) ListScenes(c *gin.Context) {
	scenes := h.store.Scenes()
	c.JSON(http.StatusOK, types.ListScenesResponse{
		Scenes: scenes,
		Count:  len(scenes),
	})
}

// CreateScene handles POST /scenes
// @Summary      Create a scene
// @Tags         scenes
// @Accept       json
// @Produce      json
// @Param        request  body      types.CreateSceneRequest  true  "Scene definition"
// @Success      201      {object}  types.SceneResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Router       /scenes [post]
func (h *ScenesHandler) CreateScene(c *gin.Context) {
	var req types.CreateSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and device_states are required")
		return
	}

	sc, err := h.store.CreateScene(c.Request.Context(), device.Scene{
		Name:         req.Name,
		Description:  req.Description,
		Icon:         req.Icon,
		DeviceStates: req.DeviceStates,
		IsFavorite:   req.IsFavorite,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.SceneResponse{Scene: sc})
}

// SnapshotScene handles POST /scenes/snapshot
// @Summary      Save current state as a scene
// @Description  Captures the status of every writable device into a new scene
// @Tags         scenes
// @Accept       json
// @Produce      json
// @Param        request  body      types.SnapshotSceneRequest  true  "Scene name"
// @Success      201      {object}  types.SceneResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Router       /scenes/snapshot [post]
func (h *ScenesHandler) SnapshotScene(c *gin.Context) {
	var req types.SnapshotSceneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	sc, err := h.store.SnapshotScene(c.Request.Context(), req.Name, req.Description, req.Icon)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.SceneResponse{Scene: sc})
}

// DeleteScene handles DELETE /scenes/:id
// @Summary      Delete a scene
// @Tags         scenes
// @Param        id   path  string  true  "Scene ID"
// @Success      204  "Scene deleted"
// @Failure      404  {object}  types.ErrorResponse  "Scene not found"
// @Router       /scenes/{id} [delete]
func (h *ScenesHandler) DeleteScene(c *gin.Context) {
	if err := h.store.DeleteScene(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleFavorite handles POST /scenes/:id/favorite
// @Summary      Toggle scene favorite
// @Tags         scenes
// @Produce      json
// @Param        id   path      string  true  "Scene ID"
// @Success      200  {object}  types.SceneResponse
// @Failure      404  {object}  types.ErrorResponse  "Scene not found"
// @Router       /scenes/{id}/favorite [post]
func (h *ScenesHandler) ToggleFavorite(c *gin.Context) {
	sc, err := h.store.ToggleSceneFavorite(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SceneResponse{Scene: sc})
}

// ApplyScene handles POST /scenes/:id/apply
// @Summary      Apply a scene
// @Description  Applies each step in order. Stops at the first failing step; earlier steps stay applied.
// @Tags         scenes
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true   "Scene ID"
// @Param        request  body      types.ApplySceneRequest  false  "Trigger (manual or scheduled)"
// @Success      200      {object}  types.ApplySceneResponse
// @Failure      404      {object}  types.ErrorResponse  "Scene not found"
// @Failure      409      {object}  types.ErrorResponse  "A step targets a read-only device"
// @Router       /scenes/{id}/apply [post]
func (h *ScenesHandler) ApplyScene(c *gin.Context) {
	id := c.Param("id")

	var req types.ApplySceneRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	trigger := req.Trigger
	if trigger != device.TriggerScheduled {
		trigger = device.TriggerManual
	}

	if _, ok := h.store.Scene(id); !ok {
		respondError(c, fmt.Errorf("%w: %s", device.ErrSceneNotFound, id))
		return
	}

	ctx, cancel := operationContext(c)
	defer cancel()
	if err := h.store.ApplyScene(ctx, id, trigger); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.ApplySceneResponse{
		SceneID: id,
		Trigger: trigger,
		Status:  "applied",
	})
}
