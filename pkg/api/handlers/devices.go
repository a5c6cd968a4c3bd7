package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
)

// DevicesHandler handles room and device endpoints
type DevicesHandler struct {
	store *home.Store
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(store *home.Store) *DevicesHandler {
	return &DevicesHandler{store: store}
}

// ListRooms handles GET /rooms
// @Summary      List rooms
// @Description  Returns every room in display order
// @Tags         rooms
// @Produce      json
// @Success      200  {object}  types.ListRoomsResponse
// @Router       /rooms [get]
func (h *DevicesHandler) ListRooms(c *gin.Context) {
	rooms := h.store.Rooms()
	c.JSON(http.StatusOK, types.ListRoomsResponse{
		Rooms: rooms,
		Count: len(rooms),
	})
}

// ListDevices handles GET /devices
// @Summary      List devices
// @Description  Returns all devices, optionally filtered to one room
// @Tags         devices
// @Produce      json
// @Param        room_id  query     string  false  "Only devices in this room"
// @Success      200      {object}  types.ListDevicesResponse
// @Router       /devices [get]
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	roomID := c.Query("room_id")

	result := []device.Device{}
	for _, d := range h.store.Devices() {
		if roomID != "" && d.RoomID != roomID {
			continue
		}
		result = append(result, d)
	}

	c.JSON(http.StatusOK, types.ListDevicesResponse{
		Devices: result,
		Count:   len(result),
	})
}

// GetDevice handles GET /devices/:id
// @Summary      Get device details
// @Description  Returns a device with its current status
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device ID"
// @Success      200  {object}  types.DeviceResponse
// @Failure      404  {object}  types.ErrorResponse  "Device not found"
// @Router       /devices/{id} [get]
func (h *DevicesHandler) GetDevice(c *gin.Context) {
	id := c.Param("id")

	d, ok := h.store.Device(id)
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", device.ErrNotFound, id))
		return
	}

	c.JSON(http.StatusOK, types.DeviceResponse{Device: d})
}

// UpdateStatus handles PATCH /devices/:id/status
// @Summary      Update device status
// @Description  Merges a partial status into the device, validated against its type schema. Recorded with trigger manual.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Device ID"
// @Param        request  body      types.UpdateStatusRequest  true  "Status patch"
// @Success      200      {object}  types.DeviceResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request"
// @Failure      404      {object}  types.ErrorResponse  "Device not found"
// @Failure      409      {object}  types.ErrorResponse  "Device is read-only"
// @Failure      500      {object}  types.ErrorResponse  "Persistence error"
// @Router       /devices/{id}/status [patch]
func (h *DevicesHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req types.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	d, err := h.store.UpdateDevice(c.Request.Context(), id, req.Status, device.TriggerManual)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DeviceResponse{Device: d})
}
