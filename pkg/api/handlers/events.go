package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urmzd/homepanel/pkg/home"
)

const streamBuffer = 32

// EventsHandler streams store events as Server-Sent Events
type EventsHandler struct {
	store *home.Store
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(store *home.Store) *EventsHandler {
	return &EventsHandler{store: store}
}

// Stream handles GET /events/stream (SSE stream)
// @Summary      Subscribe to store events
// @Description  Server-Sent Events stream of device, activity, scene and settings changes. Events are dropped for clients that fall behind.
// @Tags         events
// @Produce      text/event-stream
// @Success      200  {string}  string  "SSE event stream"
// @Router       /events/stream [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	eventChan := make(chan home.Event, streamBuffer)
	unsubscribe := h.store.Subscribe(func(e home.Event) {
		select {
		case eventChan <- e:
		default:
		}
	})
	defer unsubscribe()

	sendSSEEvent(c.Writer, "connected", map[string]any{
		"timestamp": time.Now(),
		"message":   "Connected to event stream",
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return

		case event := <-eventChan:
			if event.Setting != nil {
				redacted := event.Setting.Redacted()
				event.Setting = &redacted
			}
			sendSSEEvent(c.Writer, string(event.Kind), event)
			c.Writer.Flush()

		case <-ticker.C:
			sendSSEEvent(c.Writer, "heartbeat", map[string]any{
				"timestamp": time.Now(),
			})
			c.Writer.Flush()
		}
	}
}

// sendSSEEvent writes an SSE event to the response
func sendSSEEvent(w io.Writer, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: "+string(jsonData)+"\n\n")
}
