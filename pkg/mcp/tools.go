package mcp

import "github.com/mark3labs/mcp-go/mcp"

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	// Health check
	s.mcpServer.AddTool(
		mcp.NewTool("get_health",
			mcp.WithDescription("Check whether the home panel has loaded its state"),
		),
		s.handleGetHealth,
	)

	// List devices
	s.mcpServer.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List all devices with their room and current status"),
			mcp.WithString("room",
				mcp.Description("Only devices in this room (room ID, slug or name)"),
			),
		),
		s.handleListDevices,
	)

	// Get device
	s.mcpServer.AddTool(
		mcp.NewTool("get_device",
			mcp.WithDescription("Get a device and its current status by ID or name"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device ID or name"),
			),
		),
		s.handleGetDevice,
	)

	// Set device state
	s.mcpServer.AddTool(
		mcp.NewTool("set_device_state",
			mcp.WithDescription("Merge status properties into a device. Properties are validated against the device type; read-only devices are rejected."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device ID or name"),
			),
			mcp.WithObject("status",
				mcp.Required(),
				mcp.Description("Status properties to set (e.g. {\"state\": \"on\", \"brightness\": 70})"),
			),
		),
		s.handleSetDeviceState,
	)

	// Turn on (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("turn_on",
			mcp.WithDescription("Turn on a device, optionally setting brightness"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device ID or name"),
			),
			mcp.WithNumber("brightness",
				mcp.Description("Brightness percentage 0-100 (lights and lamps)"),
			),
		),
		s.handleTurnOn,
	)

	// Turn off (convenience)
	s.mcpServer.AddTool(
		mcp.NewTool("turn_off",
			mcp.WithDescription("Turn off a device"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Device ID or name"),
			),
		),
		s.handleTurnOff,
	)

	// Natural-language command
	if s.commands != nil {
		s.mcpServer.AddTool(
			mcp.NewTool("run_command",
				mcp.WithDescription("Interpret a natural-language home command and execute the resulting device actions"),
				mcp.WithString("text",
					mcp.Required(),
					mcp.Description("Command, e.g. \"dim the bedroom lights to 30%\""),
				),
			),
			s.handleRunCommand,
		)
	}

	// Scenes
	s.mcpServer.AddTool(
		mcp.NewTool("list_scenes",
			mcp.WithDescription("List saved scenes with their steps"),
		),
		s.handleListScenes,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("apply_scene",
			mcp.WithDescription("Apply a scene's device states in order"),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Scene ID or name"),
			),
		),
		s.handleApplyScene,
	)

	// Activity and stats
	s.mcpServer.AddTool(
		mcp.NewTool("get_activity",
			mcp.WithDescription("Recent activity, newest first"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum entries (default 20, max 50)"),
			),
		),
		s.handleGetActivity,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_token_stats",
			mcp.WithDescription("Prompt compression statistics for this session"),
		),
		s.handleGetTokenStats,
	)
}
