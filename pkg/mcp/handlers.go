package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/urmzd/homepanel/pkg/assistant"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/scheduler"
)

const defaultActivityLimit = 20

// toolTimeout bounds scene and command runs, which outlive the tool call's
// own cancellation.
const toolTimeout = 2 * time.Minute

func (s *Server) handleGetHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := "loading"
	if s.store.Loaded() {
		status = "healthy"
	}

	out := GetHealthOutput{
		Status:    status,
		Devices:   len(s.store.Devices()),
		Error:     s.store.Err(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListDevices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rooms := s.store.Rooms()

	roomID := ""
	if ref, _ := request.GetArguments()["room"].(string); ref != "" {
		for _, r := range rooms {
			if r.ID == ref || strings.EqualFold(r.Slug, ref) || strings.EqualFold(r.Name, ref) {
				roomID = r.ID
				break
			}
		}
		if roomID == "" {
			return mcp.NewToolResultError(fmt.Sprintf("room not found: %s", ref)), nil
		}
	}

	devices := s.store.Devices()
	infos := make([]DeviceInfo, 0, len(devices))
	for i := range devices {
		if roomID != "" && devices[i].RoomID != roomID {
			continue
		}
		infos = append(infos, DeviceToInfo(&devices[i], rooms))
	}

	out := ListDevicesOutput{
		Devices: infos,
		Count:   len(infos),
	}

	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetDevice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d, ok := s.findDevice(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", id)), nil
	}

	out := GetDeviceOutput{Device: DeviceToInfo(&d, s.store.Rooms())}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSetDeviceState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	args := request.GetArguments()

	// Status can be passed as a nested "status" object or as flat args
	status := device.Status{}
	if raw, ok := args["status"]; ok {
		if sm, ok := raw.(map[string]any); ok {
			status = sm
		}
	} else {
		for k, v := range args {
			if k != "id" {
				status[k] = v
			}
		}
	}

	return s.update(ctx, id, status, "failed to set device state")
}

func (s *Server) handleTurnOn(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	status := device.Status{"state": "on"}
	if b, ok := request.GetArguments()["brightness"].(float64); ok {
		status["brightness"] = b
	}

	return s.update(ctx, id, status, "failed to turn on device")
}

func (s *Server) handleTurnOff(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.update(ctx, id, device.Status{"state": "off"}, "failed to turn off device")
}

func (s *Server) handleRunCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := requiredString(request, "text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), toolTimeout)
	defer cancel()
	res, err := s.commands.Execute(ctx, assistant.Command{Text: text, Source: assistant.SourceText})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("command failed: %s", err)), nil
	}

	out := RunCommandOutput{
		Confirmation: res.Confirmation,
		Suggestions:  res.Suggestions,
		Executed:     res.Executed,
		Skipped:      res.Skipped,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleListScenes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenes := s.store.Scenes()
	out := ListScenesOutput{
		Scenes: scenes,
		Count:  len(scenes),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleApplyScene(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requiredString(request, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sc, ok := scheduler.Resolve(s.store.Scenes(), id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("scene not found: %s", id)), nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), toolTimeout)
	defer cancel()
	if err := s.store.ApplyScene(ctx, sc.ID, device.TriggerManual); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to apply scene: %s", err)), nil
	}

	out := ApplySceneOutput{
		Success: true,
		Message: fmt.Sprintf("Applied scene %q (%d devices)", sc.Name, len(sc.DeviceStates)),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetActivity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := defaultActivityLimit
	if l, ok := request.GetArguments()["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	logs := s.store.ActivityLogs()
	if limit < len(logs) {
		logs = logs[:limit]
	}

	out := GetActivityOutput{
		Activity: logs,
		Count:    len(logs),
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleGetTokenStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatJSON(s.store.TokenStats())), nil
}

// --- helpers ---

func (s *Server) update(ctx context.Context, ref string, status device.Status, failure string) (*mcp.CallToolResult, error) {
	d, ok := s.findDevice(ref)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("device not found: %s", ref)), nil
	}

	updated, err := s.store.UpdateDevice(ctx, d.ID, status, device.TriggerManual)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %s", failure, err)), nil
	}

	out := SetDeviceStateOutput{
		DeviceID: updated.ID,
		Status:   updated.Status,
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

// findDevice resolves a device by ID, then by case-insensitive name.
func (s *Server) findDevice(ref string) (device.Device, bool) {
	if d, ok := s.store.Device(ref); ok {
		return d, true
	}
	for _, d := range s.store.Devices() {
		if strings.EqualFold(d.Name, ref) {
			return d, true
		}
	}
	return device.Device{}, false
}

func requiredString(request mcp.CallToolRequest, key string) (string, error) {
	args := request.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return "", fmt.Errorf("required parameter %q is missing", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(b)
}
