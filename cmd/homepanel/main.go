package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/urmzd/homepanel/docs"
)

// @title           HomePanel API
// @version         1.0
// @description     Smart-home control panel: rooms, devices, scenes, activity and natural-language commands.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

var configFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "homepanel",
	Short: "Smart-home control panel",
	Long: `homepanel serves a smart-home dashboard backend: rooms and devices,
scenes, an activity log and natural-language commands interpreted by Gemini.

Available subcommands:
  serve - Run the REST API, websocket events and scene schedules
  mcp   - Serve the device tools over MCP stdio
  exec  - Run a single command and print the result`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./homepanel.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(execCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("homepanel failed")
		os.Exit(1)
	}
}
