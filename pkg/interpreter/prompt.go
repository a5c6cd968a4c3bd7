package interpreter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urmzd/homepanel/pkg/device"
)

// groundingRoom is the model's view of one room and its devices.
type groundingRoom struct {
	Room    string            `json:"room"`
	Name    string            `json:"name"`
	Devices []groundingDevice `json:"devices"`
}

type groundingDevice struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	CurrentStatus device.Status `json:"current_status"`
	ReadOnly      bool          `json:"read_only,omitempty"`
}

// BuildGrounding lists every room with the devices it owns, in room order.
// It must be rebuilt for every command because device state changes.
func BuildGrounding(rooms []device.Room, devices []device.Device) (string, error) {
	out := make([]groundingRoom, 0, len(rooms))
	for _, r := range rooms {
		gr := groundingRoom{Room: r.Slug, Name: r.Name, Devices: []groundingDevice{}}
		for _, d := range devices {
			if d.RoomID != r.ID {
				continue
			}
			gr.Devices = append(gr.Devices, groundingDevice{
				ID:            d.ID,
				Name:          d.Name,
				Type:          d.Type,
				CurrentStatus: d.Status,
				ReadOnly:      d.ReadOnly(),
			})
		}
		out = append(out, gr)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshalling grounding: %w", err)
	}
	return string(b), nil
}

// BuildPrompt assembles the full prompt: grounding, fixed instructions and the
// user command.
func BuildPrompt(command string, rooms []device.Room, devices []device.Device) (string, error) {
	grounding, err := BuildGrounding(rooms, devices)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("You are an intelligent home automation assistant controlling a smart home. ")
	sb.WriteString("You have access to these rooms and devices:\n\n")
	sb.WriteString(grounding)
	sb.WriteString("\n\n")
	sb.WriteString(instructions)
	sb.WriteString("\n\nUser Command: ")
	sb.WriteString(fmt.Sprintf("%q", command))
	sb.WriteString("\n\nRespond with JSON only:")
	return sb.String(), nil
}

const instructions = `CRITICAL INSTRUCTIONS:
1. Respond ONLY with valid JSON in this exact format:
{
  "actions": [
    {"device_id": "uuid", "status": {"state": "on", "brightness": 80}},
    {"device_id": "uuid", "status": {"state": "off"}}
  ],
  "confirmation": "I've turned on the living room lights at 80% brightness.",
  "suggestions": ["Would you like me to close the blinds as well?"]
}

2. Interpret natural language flexibly:
   - "make it cooler" = lower AC temperature by 2-3°C
   - "I'm cold" = increase AC temperature or turn on heater
   - "turn on lights" = set brightness to 80-100%
   - "dim lights" = set brightness to 20-30%
   - "bright" = set brightness to 100%

3. Always use the actual device_id from the provided device list in your actions.
   Never target devices marked read_only.

4. For device status:
   - Lights/Lamps: state "on"/"off", brightness 0-100
   - TV: state "on"/"off", volume 0-100
   - AC: state "on"/"off", temperature 16-30, mode "cool"/"heat"/"fan"
   - Curtains/Blinds: state "open"/"closed", percentage 0-100
   - Fan: state "on"/"off", speed 0-100
   - Other devices: typically just state "on"/"off"

5. Handle ambiguous commands by asking for clarification in the confirmation message.

6. For impossible actions (device doesn't exist, invalid operation), explain why in confirmation with an empty actions array.

7. Suggest related actions that might improve comfort or efficiency.

8. Common scenes:
   - "movie mode": dim living room lights, turn on TV, close blinds
   - "goodnight": turn off most lights, close bedroom curtains
   - "good morning": open curtains, turn on lights, start coffee maker
   - "work mode": turn on office lights and PC`
