package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	homepanelmcp "github.com/urmzd/homepanel/pkg/mcp"
)

// mcpCmd serves the MCP tools. Logging goes to stderr; stdout is the transport.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the device tools over MCP stdio",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		log.Info().Msg("Starting MCP server on stdio")
		return homepanelmcp.NewServer(a.store, a.assistant).ServeStdio()
	},
}
