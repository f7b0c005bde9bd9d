package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"tourmail/compose"
	"tourmail/utils"
)

// StatusEvent is a compose-surface phase change pushed to connected clients,
// feeding the passive save indicator next to each surface.
type StatusEvent struct {
	SurfaceID string         `json:"surface_id"`
	Status    compose.Status `json:"status"`
	Time      time.Time      `json:"time"`
}

// StatusHandler fans compose status changes out to SSE and WebSocket
// subscribers.
type StatusHandler struct {
	subscribers map[string]chan StatusEvent
	mu          sync.RWMutex
}

// NewStatusHandler creates a status feed.
func NewStatusHandler() *StatusHandler {
	return &StatusHandler{
		subscribers: make(map[string]chan StatusEvent),
	}
}

// Broadcast pushes a surface's status change to all subscribers. Slow
// subscribers are skipped rather than blocking the compose session.
func (h *StatusHandler) Broadcast(surfaceID string, st compose.Status) {
	event := StatusEvent{
		SurfaceID: surfaceID,
		Status:    st,
		Time:      time.Now(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			utils.Log.Warn("status channel full for subscriber %s", subscriberID)
		}
	}
}

func (h *StatusHandler) subscribe() (string, chan StatusEvent) {
	subscriberID := uuid.New().String()
	ch := make(chan StatusEvent, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = ch
	h.mu.Unlock()

	return subscriberID, ch
}

func (h *StatusHandler) unsubscribe(subscriberID string) {
	h.mu.Lock()
	ch, ok := h.subscribers[subscriberID]
	if ok {
		delete(h.subscribers, subscriberID)
		close(ch)
	}
	h.mu.Unlock()
}

// HandleSSE streams status events as Server-Sent Events.
func (h *StatusHandler) HandleSSE(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")

	subscriberID, eventChan := h.subscribe()
	utils.Log.Info("SSE status subscriber connected: %s", subscriberID)

	ctx := c.Context()
	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.unsubscribe(subscriberID)
			utils.Log.Info("SSE status subscriber disconnected: %s", subscriberID)
		}()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-eventChan:
				if !ok {
					return
				}
				data, _ := json.Marshal(event)
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}))

	return nil
}

// HandleWebSocket streams status events over a WebSocket connection.
func (h *StatusHandler) HandleWebSocket(c *websocket.Conn) {
	subscriberID, eventChan := h.subscribe()

	defer func() {
		h.unsubscribe(subscriberID)
		c.Close()
		utils.Log.Info("WebSocket status subscriber disconnected: %s", subscriberID)
	}()

	utils.Log.Info("WebSocket status subscriber connected: %s", subscriberID)

	for event := range eventChan {
		if err := c.WriteJSON(event); err != nil {
			utils.Log.Error("failed to send status event: %v", err)
			break
		}
	}
}
