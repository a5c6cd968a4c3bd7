package types

import (
	"time"

	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/interpreter"
)

// --- Request DTOs ---

// UpdateStatusRequest is the request body for PATCH /devices/:id/status
type UpdateStatusRequest struct {
	Status device.Status `json:"status" binding:"required"`
}

// CreateSceneRequest is the request body for POST /scenes
type CreateSceneRequest struct {
	Name         string              `json:"name" binding:"required"`
	Description  string              `json:"description"`
	Icon         string              `json:"icon"`
	DeviceStates []device.SceneState `json:"device_states" binding:"required"`
	IsFavorite   bool                `json:"is_favorite"`
}

// SnapshotSceneRequest is the request body for POST /scenes/snapshot
type SnapshotSceneRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// ApplySceneRequest is the optional request body for POST /scenes/:id/apply
type ApplySceneRequest struct {
	Trigger device.Trigger `json:"trigger"`
}

// UpdateSettingRequest is the request body for PUT /settings/:key
type UpdateSettingRequest struct {
	Value map[string]any `json:"value" binding:"required"`
}

// SecurityRequest is the request body for PUT /security
type SecurityRequest struct {
	Mode device.SecurityMode `json:"mode" binding:"required"`
}

// CommandRequest is the request body for POST /commands
type CommandRequest struct {
	Text   string `json:"text" binding:"required"`
	Source string `json:"source"` // text or voice
}

// --- Response DTOs ---

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned from GET /health
type HealthResponse struct {
	Status    string    `json:"status"`
	Store     string    `json:"store"`
	Bridge    string    `json:"bridge"`
	Timestamp time.Time `json:"timestamp"`
}

// ListRoomsResponse is returned from GET /rooms
type ListRoomsResponse struct {
	Rooms []device.Room `json:"rooms"`
	Count int           `json:"count"`
}

// ListDevicesResponse is returned from GET /devices
type ListDevicesResponse struct {
	Devices []device.Device `json:"devices"`
	Count   int             `json:"count"`
}

// DeviceResponse is returned from GET /devices/:id and PATCH /devices/:id/status
type DeviceResponse struct {
	Device device.Device `json:"device"`
}

// ListScenesResponse is returned from GET /scenes
type ListScenesResponse struct {
	Scenes []device.Scene `json:"scenes"`
	Count  int            `json:"count"`
}

// SceneResponse is returned from scene mutations
type SceneResponse struct {
	Scene device.Scene `json:"scene"`
}

// ApplySceneResponse is returned from POST /scenes/:id/apply
type ApplySceneResponse struct {
	SceneID string         `json:"scene_id"`
	Trigger device.Trigger `json:"trigger"`
	Status  string         `json:"status"`
}

// ListActivityResponse is returned from GET /activity
type ListActivityResponse struct {
	Activity []device.ActivityLog `json:"activity"`
	Count    int                  `json:"count"`
}

// ListSettingsResponse is returned from GET /settings
type ListSettingsResponse struct {
	Settings []device.Setting `json:"settings"`
}

// SettingResponse is returned from GET/PUT /settings/:key
type SettingResponse struct {
	Setting device.Setting `json:"setting"`
}

// SecurityResponse is returned from GET/PUT /security
type SecurityResponse struct {
	Mode device.SecurityMode `json:"mode"`
}

// CommandResponse is returned from POST /commands
type CommandResponse struct {
	Confirmation string               `json:"confirmation"`
	Suggestions  []string             `json:"suggestions"`
	Executed     []interpreter.Action `json:"executed"`
	Skipped      int                  `json:"skipped"`
	Usage        interpreter.Usage    `json:"usage"`
}

// SuggestionsResponse is returned from GET /commands/suggestions
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}
