package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/assistant"
)

// CommandRunner executes natural-language commands.
type CommandRunner interface {
	Execute(ctx context.Context, cmd assistant.Command) (*assistant.Result, error)
}

// CommandsHandler handles natural-language command endpoints
type CommandsHandler struct {
	runner CommandRunner
}

// NewCommandsHandler creates a new commands handler
func NewCommandsHandler(runner CommandRunner) *CommandsHandler {
	return &CommandsHandler{runner: runner}
}

// RunCommand handles POST /commands
// @Summary      Run a command
// @Description  Interprets a typed or transcribed command and executes the resulting device actions
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        request  body      types.CommandRequest  true  "Command text"
// @Success      200      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse  "Invalid request or API key not configured"
// @Failure      409      {object}  types.ErrorResponse  "An action targets a read-only device"
// @Failure      502      {object}  types.ErrorResponse  "Interpreter failure"
// @Failure      504      {object}  types.ErrorResponse  "Command timed out"
// @Router       /commands [post]
func (h *CommandsHandler) RunCommand(c *gin.Context) {
	var req types.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "text is required")
		return
	}
	if req.Source != "" && req.Source != assistant.SourceText && req.Source != assistant.SourceVoice {
		badRequest(c, "source must be text or voice")
		return
	}

	ctx, cancel := operationContext(c)
	defer cancel()
	res, err := h.runner.Execute(ctx, assistant.Command{Text: req.Text, Source: req.Source})
	if err != nil {
		respondError(c, err)
		return
	}

	suggestions := res.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, types.CommandResponse{
		Confirmation: res.Confirmation,
		Suggestions:  suggestions,
		Executed:     res.Executed,
		Skipped:      res.Skipped,
		Usage:        res.Usage,
	})
}

// Suggestions handles GET /commands/suggestions
// @Summary      Quick actions
// @Tags         commands
// @Produce      json
// @Success      200  {object}  types.SuggestionsResponse
// @Router       /commands/suggestions [get]
func (h *CommandsHandler) Suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, types.SuggestionsResponse{Suggestions: assistant.QuickActions})
}
