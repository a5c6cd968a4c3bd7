package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/api/types"
	"github.com/urmzd/homepanel/pkg/assistant"
	"github.com/urmzd/homepanel/pkg/db"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/interpreter"
)

// operationTimeout bounds scene and command runs once they are detached from
// the request.
const operationTimeout = 2 * time.Minute

// operationContext keeps request values but ignores client disconnects, so a
// multi-step run is not abandoned halfway through.
func operationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), operationTimeout)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status, code := classify(err)
	c.JSON(status, types.ErrorResponse{
		Error:   code,
		Message: err.Error(),
	})
}

func classify(err error) (int, string) {
	var ierr *interpreter.Error
	switch {
	case errors.Is(err, device.ErrNotFound),
		errors.Is(err, device.ErrSceneNotFound),
		errors.Is(err, db.ErrRoomNotFound),
		errors.Is(err, db.ErrSettingNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, device.ErrValidation), errors.Is(err, assistant.ErrEmptyCommand):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, device.ErrReadOnly):
		return http.StatusConflict, "read_only"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.As(err, &ierr):
		if ierr.Kind == interpreter.KindConfig {
			return http.StatusBadRequest, "not_configured"
		}
		return http.StatusBadGateway, "interpreter_" + ierr.Kind.String()
	}
	return http.StatusInternalServerError, "internal_error"
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{
		Error:   "invalid_request",
		Message: message,
	})
}
