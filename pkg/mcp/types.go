package mcp

import (
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/interpreter"
)

// --- Health Tool ---

// GetHealthOutput is the output for the get_health tool
type GetHealthOutput struct {
	Status    string `json:"status" jsonschema:"description=Overall health status (healthy or loading)"`
	Devices   int    `json:"devices" jsonschema:"description=Number of devices loaded"`
	Error     string `json:"error,omitempty" jsonschema:"description=Last recorded store error"`
	Timestamp string `json:"timestamp" jsonschema:"description=ISO8601 timestamp"`
}

// --- Device Tools ---

// DeviceInfo represents a device in tool outputs
type DeviceInfo struct {
	ID       string        `json:"id" jsonschema:"description=Unique device identifier"`
	Name     string        `json:"name" jsonschema:"description=Device name"`
	Type     string        `json:"type" jsonschema:"description=Device type (lights/tv/ac/fan/sensor/...)"`
	RoomID   string        `json:"room_id" jsonschema:"description=Owning room ID"`
	Room     string        `json:"room,omitempty" jsonschema:"description=Owning room name"`
	ReadOnly bool          `json:"read_only,omitempty" jsonschema:"description=Whether the device rejects updates"`
	Status   device.Status `json:"status" jsonschema:"description=Current device status"`
}

// DeviceToInfo converts a device, resolving its room name from rooms
func DeviceToInfo(d *device.Device, rooms []device.Room) DeviceInfo {
	info := DeviceInfo{
		ID:       d.ID,
		Name:     d.Name,
		Type:     d.Type,
		RoomID:   d.RoomID,
		ReadOnly: d.ReadOnly(),
		Status:   d.Status,
	}
	for _, r := range rooms {
		if r.ID == d.RoomID {
			info.Room = r.Name
			break
		}
	}
	return info
}

// ListDevicesOutput is the output for the list_devices tool
type ListDevicesOutput struct {
	Devices []DeviceInfo `json:"devices" jsonschema:"description=Devices"`
	Count   int          `json:"count" jsonschema:"description=Number of devices"`
}

// GetDeviceOutput is the output for the get_device tool
type GetDeviceOutput struct {
	Device DeviceInfo `json:"device" jsonschema:"description=Device information"`
}

// SetDeviceStateOutput is the output for set_device_state, turn_on and turn_off
type SetDeviceStateOutput struct {
	DeviceID string        `json:"device_id" jsonschema:"description=Device that was updated"`
	Status   device.Status `json:"status" jsonschema:"description=Merged status after the update"`
}

// --- Command Tool ---

// RunCommandOutput is the output for the run_command tool
type RunCommandOutput struct {
	Confirmation string               `json:"confirmation" jsonschema:"description=Reply to show the user"`
	Suggestions  []string             `json:"suggestions,omitempty" jsonschema:"description=Follow-up suggestions"`
	Executed     []interpreter.Action `json:"executed" jsonschema:"description=Actions applied in order"`
	Skipped      int                  `json:"skipped" jsonschema:"description=Actions ignored for lacking a device or status"`
}

// --- Scene Tools ---

// ListScenesOutput is the output for the list_scenes tool
type ListScenesOutput struct {
	Scenes []device.Scene `json:"scenes" jsonschema:"description=Saved scenes ordered by name"`
	Count  int            `json:"count" jsonschema:"description=Number of scenes"`
}

// ApplySceneOutput is the output for the apply_scene tool
type ApplySceneOutput struct {
	Success bool   `json:"success" jsonschema:"description=Whether every step was applied"`
	Message string `json:"message" jsonschema:"description=Result message"`
}

// --- Activity Tools ---

// GetActivityOutput is the output for the get_activity tool
type GetActivityOutput struct {
	Activity []device.ActivityLog `json:"activity" jsonschema:"description=Recent entries, newest first"`
	Count    int                  `json:"count" jsonschema:"description=Number of entries"`
}
