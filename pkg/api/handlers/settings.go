package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/db"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
)

// SettingsHandler handles settings and security mode endpoints. API keys are
// never returned in clear text.
type SettingsHandler struct {
	store *home.Store
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(store *home.Store) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// ListSettings handles GET /settings
// @Summary      List settings
// @Tags         settings
// @Produce      json
// @Success      200  {object}  types.ListSettingsResponse
// @Router       /settings [get]
func (h *SettingsHandler) ListSettings(c *gin.Context) {
	settings := h.store.Settings()
	out := make([]device.Setting, len(settings))
	for i, s := range settings {
		out[i] = s.Redacted()
	}
	c.JSON(http.StatusOK, types.ListSettingsResponse{Settings: out})
}

// GetSetting handles GET /settings/:key
// @Summary      Get a setting
// @Tags         settings
// @Produce      json
// @Param        key  path      string  true  "Setting key"
// @Success      200  {object}  types.SettingResponse
// @Failure      404  {object}  types.ErrorResponse  "Setting not found"
// @Router       /settings/{key} [get]
func (h *SettingsHandler) GetSetting(c *gin.Context) {
	key := c.Param("key")

	s := h.store.Setting(key)
	if s == nil {
		respondError(c, fmt.Errorf("%w: %s", db.ErrSettingNotFound, key))
		return
	}
	c.JSON(http.StatusOK, types.SettingResponse{Setting: s.Redacted()})
}

// UpdateSetting handles PUT /settings/:key
// @Summary      Create or replace a setting
// @Description  Masked API key values sent back unchanged keep the stored key.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        key      path      string                      true  "Setting key"
// @Param        request  body      types.UpdateSettingRequest  true  "Setting value"
// @Success      200      {object}  types.SettingResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Router       /settings/{key} [put]
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	key := c.Param("key")

	var req types.UpdateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "value is required")
		return
	}

	value := keepMaskedKeys(h.store.Setting(key), req.Value)

	s, err := h.store.UpdateSetting(c.Request.Context(), key, value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SettingResponse{Setting: s.Redacted()})
}

// GetSecurity handles GET /security
// @Summary      Get security mode
// @Tags         security
// @Produce      json
// @Success      200  {object}  types.SecurityResponse
// @Router       /security [get]
func (h *SettingsHandler) GetSecurity(c *gin.Context) {
	c.JSON(http.StatusOK, types.SecurityResponse{Mode: h.store.SecurityMode()})
}

// SetSecurity handles PUT /security
// @Summary      Set security mode
// @Tags         security
// @Accept       json
// @Produce      json
// @Param        request  body      types.SecurityRequest  true  "armed, disarmed or away"
// @Success      200      {object}  types.SecurityResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid mode"
// @Router       /security [put]
func (h *SettingsHandler) SetSecurity(c *gin.Context) {
	var req types.SecurityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "mode is required")
		return
	}
	if err := h.store.SetSecurityMode(req.Mode); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.SecurityResponse{Mode: h.store.SecurityMode()})
}

// keepMaskedKeys replaces masked "*_api_key" values with the stored ones.
func keepMaskedKeys(current *device.Setting, value map[string]any) map[string]any {
	if current == nil {
		return value
	}
	masked := current.Redacted()
	for k, v := range value {
		if !strings.HasSuffix(k, "_api_key") {
			continue
		}
		if str, ok := v.(string); ok && str != "" && str == masked.Value[k] {
			value[k] = current.Value[k]
		}
	}
	return value
}
