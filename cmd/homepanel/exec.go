package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/urmzd/homepanel/pkg/assistant"
)

var execVoice bool

// execCmd runs one natural-language command
var execCmd = &cobra.Command{
	Use:   "exec <command>",
	Short: "Run a single command and print the result",
	Long: `Interpret a command with Gemini, apply the resulting device actions and
print the result as JSON.

Example:
  homepanel exec "turn on the living room lights"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		source := assistant.SourceText
		if execVoice {
			source = assistant.SourceVoice
		}

		res, err := a.assistant.Execute(cmd.Context(), assistant.Command{
			Text:   strings.Join(args, " "),
			Source: source,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	execCmd.Flags().BoolVar(&execVoice, "voice", false, "Record the command as a voice transcript")
}
