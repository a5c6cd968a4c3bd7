package schema

import (
	"encoding/json"

	"github.com/urmzd/homepanel/pkg/device"
)

// Patch schemas per conventional device type. They constrain only the keys
// they name; unknown keys pass so new device features keep working.
var typeSchemas = map[string]json.RawMessage{
	device.TypeLights: lightSchema,
	device.TypeLamp:   lightSchema,
	device.TypeTV: json.RawMessage(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"state": {"enum": ["on", "off"]},
			"volume": {"type": "number", "minimum": 0, "maximum": 100},
			"channel": {"type": ["string", "number"]}
		}
	}`),
	device.TypeAC: json.RawMessage(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"state": {"enum": ["on", "off"]},
			"temperature": {"type": "number", "minimum": 16, "maximum": 30},
			"mode": {"enum": ["cool", "heat", "fan", "auto", "dry"]}
		}
	}`),
	device.TypeFan: json.RawMessage(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"state": {"enum": ["on", "off"]},
			"speed": {"type": "number", "minimum": 0, "maximum": 100}
		}
	}`),
	device.TypeBlinds:   coveringSchema,
	device.TypeCurtains: coveringSchema,
	device.TypeWaterHeater: json.RawMessage(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"state": {"enum": ["on", "off", "eco"]},
			"temperature": {"type": "number", "minimum": 30, "maximum": 75}
		}
	}`),
	device.TypeOven: json.RawMessage(`{
		"$schema": "https://json-schema.org/draft/2020-12/schema",
		"type": "object",
		"properties": {
			"state": {"enum": ["on", "off"]},
			"temperature": {"type": "number", "minimum": 0, "maximum": 300}
		}
	}`),
}

var lightSchema = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"state": {"enum": ["on", "off", "auto"]},
		"brightness": {"type": "number", "minimum": 0, "maximum": 100}
	}
}`)

var coveringSchema = json.RawMessage(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"state": {"enum": ["open", "closed"]},
		"percentage": {"type": "number", "minimum": 0, "maximum": 100}
	}
}`)
