package device

import (
	"strings"
	"time"
)

// Room groups devices for display and for the interpreter's grounding prompt.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`         // Unique, e.g. living_room
	AccentColor  string    `json:"accent_color"` // Hex color used by the UI
	Icon         string    `json:"icon"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Device represents a controllable (or read-only) appliance in a room.
type Device struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"` // Owning room; a device does not own its room
	Name      string    `json:"name"`
	Type      string    `json:"type"` // Open tag: lights, tv, ac, fan, camera, gate, ...
	Status    Status    `json:"status"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReadOnly reports whether the device forbids mutation (sensors, fridges).
func (d *Device) ReadOnly() bool {
	return d.Metadata.ReadOnly()
}

// Clone returns a deep copy of the device's maps so callers can hold it
// without sharing state with the store.
func (d Device) Clone() Device {
	d.Status = d.Status.Clone()
	d.Metadata = Metadata(Status(d.Metadata).Clone())
	return d
}

// Metadata holds optional descriptive flags for a device.
type Metadata map[string]any

// ReadOnly reports whether the read_only flag is set.
func (m Metadata) ReadOnly() bool {
	if m == nil {
		return false
	}
	v, ok := m["read_only"].(bool)
	return ok && v
}

// Trigger records the provenance of an activity entry.
type Trigger string

const (
	TriggerAI        Trigger = "ai"
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
	TriggerScene     Trigger = "scene"
)

// Valid reports whether t is one of the known triggers.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerAI, TriggerManual, TriggerScheduled, TriggerScene:
		return true
	}
	return false
}

// Activity action types
const (
	ActionDeviceUpdate = "device_update"
	ActionAICommand    = "ai_command"
	ActionSceneApplied = "scene_applied"
)

// ActivityLog is an append-only record of something that happened in the home.
type ActivityLog struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"device_id,omitempty"`
	RoomID        string    `json:"room_id,omitempty"`
	ActionType    string    `json:"action_type"`
	PreviousState Status    `json:"previous_state,omitempty"`
	NewState      Status    `json:"new_state,omitempty"`
	Trigger       Trigger   `json:"trigger"`
	Command       string    `json:"command,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SceneState is one step of a scene: the status to apply to a device.
type SceneState struct {
	DeviceID string `json:"device_id"`
	Status   Status `json:"status"`
}

// Scene is a named, ordered snapshot of device states to replay.
type Scene struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Icon         string       `json:"icon"`
	DeviceStates []SceneState `json:"device_states"`
	IsFavorite   bool         `json:"is_favorite"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Setting is a keyed bag of values (API keys, feature flags).
type Setting struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"`
	Value     map[string]any `json:"value"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// String returns the string value stored under name, or "".
func (s *Setting) String(name string) string {
	if s == nil || s.Value == nil {
		return ""
	}
	v, _ := s.Value[name].(string)
	return v
}

// Bool returns the boolean value stored under name, or false.
func (s *Setting) Bool(name string) bool {
	if s == nil || s.Value == nil {
		return false
	}
	v, _ := s.Value[name].(bool)
	return v
}

// Redacted returns a copy with every non-empty "*_api_key" value masked.
func (s Setting) Redacted() Setting {
	if s.Value == nil {
		return s
	}
	value := make(map[string]any, len(s.Value))
	for k, v := range s.Value {
		if str, ok := v.(string); ok && str != "" && strings.HasSuffix(k, "_api_key") {
			v = redactedValue
		}
		value[k] = v
	}
	s.Value = value
	return s
}

const redactedValue = "********"

// SettingAPIKeys is the key of the setting record holding credentials and the
// compression flag.
const SettingAPIKeys = "api_keys"

// TokenStats are session counters for prompt compression savings.
type TokenStats struct {
	OriginalTokens     int     `json:"original_tokens"`
	CompressedTokens   int     `json:"compressed_tokens"`
	TokensSaved        int     `json:"tokens_saved"`
	CompressionRatio   float64 `json:"compression_ratio"`
	SessionTokensSaved int     `json:"session_tokens_saved"`
}

// SecurityMode is the alarm state shown in the header.
type SecurityMode string

const (
	SecurityArmed    SecurityMode = "armed"
	SecurityDisarmed SecurityMode = "disarmed"
	SecurityAway     SecurityMode = "away"
)

// Valid reports whether m is a known security mode.
func (m SecurityMode) Valid() bool {
	return m == SecurityArmed || m == SecurityDisarmed || m == SecurityAway
}

// Device type constants used by the seed data and schema table.
const (
	TypeLights      = "lights"
	TypeLamp        = "lamp"
	TypeTV          = "tv"
	TypeAC          = "ac"
	TypeFan         = "fan"
	TypeBlinds      = "blinds"
	TypeCurtains    = "curtains"
	TypeCamera      = "camera"
	TypeGate        = "gate"
	TypeSensor      = "sensor"
	TypeWaterHeater = "water_heater"
	TypeOven        = "oven"
)
